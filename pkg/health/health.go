// Package health serves liveness and readiness probes backed by periodic
// dependency checks.
//
// A check flips to failing only after FailureThreshold consecutive errors and
// back to passing after SuccessThreshold consecutive successes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Thresholds control how many consecutive results flip a check.
type Thresholds struct {
	Failure int
	Success int
}

// DefaultThresholds tolerates two transient failures.
var DefaultThresholds = Thresholds{Failure: 3, Success: 1}

type check struct {
	name       string
	timeout    time.Duration
	fn         CheckFunc
	thresholds Thresholds

	mu      sync.Mutex
	passing bool
	lastErr error
	fails   int
	oks     int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, t Thresholds) *check {
	return &check{name: name, timeout: timeout, fn: fn, thresholds: t, passing: true}
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= c.thresholds.Failure {
			c.passing = false
		}
		return
	}
	c.fails = 0
	c.oks++
	if c.oks >= c.thresholds.Success {
		c.passing = true
	}
}

// failure returns the reason c is failing, or "" while it passes.
func (c *check) failure() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passing {
		return ""
	}
	if c.lastErr != nil {
		return c.lastErr.Error()
	}
	return "check is failing"
}

// Health aggregates liveness and readiness checks.
type Health struct {
	ready      atomic.Bool
	thresholds Thresholds

	mu        sync.Mutex
	liveness  []*check
	readiness []*check
	stop      context.CancelFunc
	done      chan struct{}
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{thresholds: DefaultThresholds}
}

// SetThresholds changes the thresholds for checks added afterwards.
func (h *Health) SetThresholds(t Thresholds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thresholds = t
}

// AddLivenessCheck registers a process-level check, such as goroutine count.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, h.thresholds))
}

// AddReadinessCheck registers a dependency check, such as a database ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, h.thresholds))
}

// RunOnce executes every registered check concurrently and waits for them.
func (h *Health) RunOnce(ctx context.Context) {
	h.mu.Lock()
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			c.run(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// Start runs all checks immediately and then every interval until Stop or
// ctx cancellation. Calling Start twice without Stop is a no-op.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	if h.stop != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.stop, h.done = cancel, done
	h.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			h.RunOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts background checks and waits for the running round to finish.
// It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// SetReady marks the service as able (or no longer able) to take traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether SetReady(true) was called and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(h.readinessChecks())) == 0
}

func (h *Health) livenessChecks() []*check {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*check(nil), h.liveness...)
}

func (h *Health) readinessChecks() []*check {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*check(nil), h.readiness...)
}

func (h *Health) failures(checks []*check) map[string]string {
	out := make(map[string]string)
	for _, c := range checks {
		if reason := c.failure(); reason != "" {
			out[c.name] = reason
		}
	}
	return out
}

// Status is the JSON body of the probe endpoints.
type Status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while every liveness check passes, 503
// with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(h.livenessChecks()))
}

// ReadyEndpoint serves /readyz. It also fails while the service is not marked
// ready, e.g. during shutdown drain.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(h.readinessChecks())
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	resp, code := Status{Status: "ok"}, http.StatusOK
	if len(failures) > 0 {
		resp, code = Status{Status: "unhealthy", Checks: failures}, http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
