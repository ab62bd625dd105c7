// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics instruments the transfer coordinator.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bridge"

// Metrics are the coordinator counters.
type Metrics struct {
	initiated      prometheus.Counter
	completed      prometheus.Counter
	cancelled      *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	volume         *prometheus.CounterVec
	pending        prometheus.Gauge
	refundFailures prometheus.Counter
	publishErrors  prometheus.Counter
}

// New registers the coordinator metrics with [registerer].
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		initiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_initiated_total",
			Help:      "Number of transfers initiated",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_completed_total",
			Help:      "Number of transfers confirmed and minted",
		}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_cancelled_total",
			Help:      "Number of transfers cancelled",
		}, []string{"refunded"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Number of rejected coordinator requests",
		}, []string{"op", "reason"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volume_total",
			Help:      "Amount moved across the bridge in base units",
		}, []string{"stage"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_pending",
			Help:      "Number of transfers awaiting confirmation or cancellation",
		}),
		refundFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_failures_total",
			Help:      "Number of cancelled transfers whose refund could not be minted",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Number of lifecycle events that could not be published",
		}),
	}

	err := errors.Join(
		registerer.Register(m.initiated),
		registerer.Register(m.completed),
		registerer.Register(m.cancelled),
		registerer.Register(m.rejected),
		registerer.Register(m.volume),
		registerer.Register(m.pending),
		registerer.Register(m.refundFailures),
		registerer.Register(m.publishErrors),
	)
	return m, err
}

// Noop returns metrics that are never exported.
func Noop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}

func (m *Metrics) Initiated(amount uint64) {
	m.initiated.Inc()
	m.volume.WithLabelValues("initiated").Add(float64(amount))
}

func (m *Metrics) Completed(amount uint64) {
	m.completed.Inc()
	m.volume.WithLabelValues("completed").Add(float64(amount))
}

func (m *Metrics) Cancelled(refunded bool) {
	label := "false"
	if refunded {
		label = "true"
	}
	m.cancelled.WithLabelValues(label).Inc()
}

func (m *Metrics) Rejected(op, reason string) {
	m.rejected.WithLabelValues(op, reason).Inc()
}

func (m *Metrics) SetPending(n uint64) {
	m.pending.Set(float64(n))
}

func (m *Metrics) RefundFailed() {
	m.refundFailures.Inc()
}

func (m *Metrics) PublishFailed() {
	m.publishErrors.Inc()
}
