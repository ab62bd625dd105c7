// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		}, []string{"method", "endpoint"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "api_requests_inflight",
			Help: "Number of inflight API requests",
		}),
	}

	err := errors.Join(
		registerer.Register(m.requests),
		registerer.Register(m.duration),
		registerer.Register(m.inflight),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *serverMetrics) wrapHandler(endpoint string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.WithLabelValues(r.Method, endpoint).Inc()
		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		defer func() {
			m.duration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		}()

		handler.ServeHTTP(w, r)
	})
}
