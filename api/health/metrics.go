// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import "github.com/luxfi/metric"

const namespace = "health"

type healthMetrics struct {
	// failingChecks keeps track of the number of check failing
	failingChecks metric.Gauge
}

func newMetrics(registry metric.Registry) (*healthMetrics, error) {
	metricsInstance := metric.NewWithRegistry(namespace, registry)

	m := &healthMetrics{
		failingChecks: metricsInstance.NewGauge(
			"checks_failing",
			"number of currently failing health checks",
		),
	}
	m.failingChecks.Set(0)
	return m, nil
}
