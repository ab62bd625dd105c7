// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health aggregates liveness checks of the bridge and its backends.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

var errDuplicateCheck = errors.New("duplicated check")

// Checker reports the health of a component. A non-nil error marks the
// component unhealthy; the details are reported either way.
type Checker interface {
	HealthCheck(context.Context) (interface{}, error)
}

type CheckerFunc func(context.Context) (interface{}, error)

func (f CheckerFunc) HealthCheck(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// Result is the outcome of one check.
type Result struct {
	Details   interface{}   `json:"message,omitempty"`
	Error     *string       `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Report is the body served by the health endpoint.
type Report struct {
	Checks  map[string]Result `json:"checks"`
	Healthy bool              `json:"healthy"`
	Version string            `json:"version,omitempty"`
}

type Health struct {
	log     log.Logger
	version string
	timeout time.Duration
	metrics *healthMetrics

	lock   sync.RWMutex
	checks map[string]Checker
}

// New returns an empty Health. Each check gets [timeout] to complete.
func New(log log.Logger, version string, timeout time.Duration, registry metric.Registry) (*Health, error) {
	m, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &Health{
		log:     log,
		version: version,
		timeout: timeout,
		metrics: m,
		checks:  make(map[string]Checker),
	}, nil
}

func (h *Health) Register(name string, checker Checker) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.checks[name]; ok {
		return fmt.Errorf("%w: %q", errDuplicateCheck, name)
	}
	h.checks[name] = checker
	return nil
}

// Report runs every check and returns the combined result.
func (h *Health) Report(ctx context.Context) Report {
	h.lock.RLock()
	names := make([]string, 0, len(h.checks))
	checks := make(map[string]Checker, len(h.checks))
	for name, checker := range h.checks {
		names = append(names, name)
		checks[name] = checker
	}
	h.lock.RUnlock()
	slices.Sort(names)

	report := Report{
		Checks:  make(map[string]Result, len(names)),
		Healthy: true,
		Version: h.version,
	}
	failing := 0
	for _, name := range names {
		result := h.run(ctx, name, checks[name])
		if result.Error != nil {
			failing++
			report.Healthy = false
		}
		report.Checks[name] = result
	}
	h.metrics.failingChecks.Set(float64(failing))
	return report
}

func (h *Health) run(ctx context.Context, name string, checker Checker) Result {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	details, err := checker.HealthCheck(ctx)
	result := Result{
		Details:   details,
		Timestamp: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		errString := err.Error()
		result.Error = &errString
		h.log.Warn("health check failed",
			log.String("check", name),
			log.Err(err),
		)
	}
	return result
}

// Handler serves the report as JSON. Unhealthy reports are served with 503.
func (h *Health) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		report := h.Report(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			h.log.Debug("failed to write health report", log.Err(err))
		}
	})
}
