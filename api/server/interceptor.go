// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/metric"
)

// APIInterceptor times JSON-RPC methods. Register it on an rpc.Server with
// RegisterInterceptFunc and RegisterAfterFunc.
type APIInterceptor interface {
	InterceptRequest(i *rpc.RequestInfo) *http.Request
	AfterRequest(i *rpc.RequestInfo)
}

type contextKey int

const requestTimestampKey contextKey = iota

type apiInterceptor struct {
	requestDuration metric.HistogramVec
	requestErrors   metric.CounterVec
}

func NewAPIInterceptor(namespace string, registry metric.Registry) (APIInterceptor, error) {
	metricsInstance := metric.NewWithRegistry(namespace, registry)

	return &apiInterceptor{
		requestDuration: metricsInstance.NewHistogramVec(
			"request_duration_seconds",
			"Time spent handling each JSON-RPC method",
			[]string{"method"},
			metric.DefBuckets,
		),
		requestErrors: metricsInstance.NewCounterVec(
			"request_errors_total",
			"Number of JSON-RPC requests that returned an error",
			[]string{"method"},
		),
	}, nil
}

func (*apiInterceptor) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	ctx := i.Request.Context()
	ctx = context.WithValue(ctx, requestTimestampKey, time.Now())
	return i.Request.WithContext(ctx)
}

func (apr *apiInterceptor) AfterRequest(i *rpc.RequestInfo) {
	timestamp, ok := i.Request.Context().Value(requestTimestampKey).(time.Time)
	if !ok {
		return
	}

	apr.requestDuration.With(metric.Labels{
		"method": i.Method,
	}).Observe(time.Since(timestamp).Seconds())
	if i.Error != nil {
		apr.requestErrors.With(metric.Labels{
			"method": i.Method,
		}).Inc()
	}
}
