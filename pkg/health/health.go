// Package health implements liveness and readiness probes in the Kubernetes
// style.
//
// Every registered check gets its own background goroutine ticking at a fixed
// interval. State transitions are threshold-gated so a single blip does not
// flip the probe: a check turns unhealthy only after failing
// defaultFailureThreshold times in a row, and turns healthy again after
// defaultSuccessThreshold consecutive passes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. A nil return means healthy; an error
// describes what is wrong.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// check carries the configuration and runtime state of a single probe.
//
// observe() runs on exactly one goroutine (the ticker), so the consecutive
// counters need no synchronization. healthy and lastErr are also read by HTTP
// handlers on arbitrary goroutines and therefore go through atomics.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	streakFail int
	streakOK   int
}

// newCheck builds a probe that starts out healthy: a component is given the
// benefit of the doubt until it has actually failed.
func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{
		name:    name,
		timeout: timeout,
		fn:      fn,
	}
	c.healthy.Store(true)
	return c
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

// lastError returns the error recorded by the most recent observe, or nil.
func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// observe runs the probe once and advances the threshold counters. Must only
// be called from the check's own ticker goroutine.
func (c *check) observe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.streakOK = 0
		c.streakFail++
		if c.streakFail >= defaultFailureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.streakFail = 0
		c.streakOK++
		if c.streakOK >= defaultSuccessThreshold {
			c.healthy.Store(true)
		}
	}
}

// loop re-runs the probe on every tick until ctx is cancelled. The first run
// happens immediately rather than one interval in.
func (c *check) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.observe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.observe(ctx)
		}
	}
}

// Health aggregates the liveness and readiness probes of one service.
type Health struct {
	ready atomic.Bool

	// mu guards the check slices and cancel. Registration happens before
	// Start; HTTP handlers only snapshot the slices under RLock, never
	// holding it across check state.
	mu              sync.RWMutex
	livenessChecks  []*check
	readinessChecks []*check
	cancel          context.CancelFunc
}

// New returns a Health that reports not-ready until SetReady(true) is called
// after service initialization.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe answering "is this process still
// functioning" — goroutine counts, GC pauses, deadlock detection.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.livenessChecks = append(h.livenessChecks, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a probe answering "can this process take
// traffic" — database connectivity, cache warmup, downstream availability.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessChecks = append(h.readinessChecks, newCheck(name, timeout, fn))
}

// Start launches one goroutine per registered check, each ticking at
// interval. Register all checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, 0, len(h.livenessChecks)+len(h.readinessChecks))
	checks = append(checks, h.livenessChecks...)
	checks = append(checks, h.readinessChecks...)
	h.mu.Unlock()

	for _, c := range checks {
		go c.loop(ctx, interval)
	}
}

// SetReady flips the manual readiness gate: true once initialization is done,
// false during graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service can take traffic: the manual gate must
// be open and every readiness probe passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	checks := h.readinessChecks
	h.mu.RUnlock()

	for _, c := range checks {
		if !c.isHealthy() {
			return false
		}
	}
	return true
}

// Stop cancels every probe goroutine. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the /livez probe: 200 {"status":"ok"} while every
// liveness check passes, otherwise 503 with the failing checks listed.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := make([]*check, len(h.livenessChecks))
	copy(checks, h.livenessChecks)
	h.mu.RUnlock()

	writeProbe(w, failingChecks(checks))
}

// ReadyEndpoint serves the /readyz probe: 200 only when the manual gate is
// open and every readiness check passes, otherwise 503 with details.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	checks := make([]*check, len(h.readinessChecks))
	copy(checks, h.readinessChecks)
	h.mu.RUnlock()

	failures := failingChecks(checks)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeProbe(w, failures)
}

// failingChecks maps each unhealthy check to its recorded error message. It
// reads the stored last error rather than re-running the probe.
func failingChecks(checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if c.isHealthy() {
			continue
		}
		if err := c.lastError(); err != nil {
			failures[c.name] = err.Error()
		} else {
			failures[c.name] = "check is unhealthy"
		}
	}
	return failures
}

func writeProbe(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := probeResponse{Status: "ok"}
	status := http.StatusOK

	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)

	// The status line is already out; an encode error here means the client
	// went away.
	_ = json.NewEncoder(w).Encode(resp)
}
