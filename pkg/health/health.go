// Package health serves Kubernetes-style liveness and readiness probes.
//
// Every check runs in its own goroutine on a fixed interval. A check flips to
// unhealthy after failureThreshold consecutive failures and back after
// successThreshold consecutive successes, so a single blip never flaps a
// probe. Informational checks are reported in probe bodies but never fail
// them; they suit dependencies the service can degrade around, such as the
// exchange rate feed.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type kind uint8

const (
	kindLiveness kind = iota
	kindReadiness
	kindInfo
)

// check is the configuration and state of one registered check. run is only
// called from the check's own goroutine (or a test), so the counters need no
// locking; healthy and lastErr are read concurrently by the endpoints.
type check struct {
	name             string
	kind             kind
	timeout          time.Duration
	fn               CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= c.successThreshold {
		c.healthy.Store(true)
	}
}

// status is the probe-body value for c.
func (c *check) status() string {
	if c.isHealthy() {
		return "ok"
	}
	if err := c.lastError(); err != nil {
		return err.Error()
	}
	return "check is unhealthy"
}

// Health manages the probes of one service.
type Health struct {
	ready atomic.Bool

	// mu guards checks and cancel. Endpoints copy the slice under RLock and
	// read check state without holding it.
	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

func (h *Health) add(name string, k kind, timeout time.Duration, fn CheckFunc, failureThreshold int) {
	c := &check{
		name:             name,
		kind:             k,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: failureThreshold,
		successThreshold: 1,
	}
	c.healthy.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// AddLivenessCheck registers a check that fails /livez, e.g. a goroutine
// leak detector.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, kindLiveness, timeout, fn, 3)
}

// AddReadinessCheck registers a check that fails /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, kindReadiness, timeout, fn, 3)
}

// AddInfoCheck registers a check that is listed in the /readyz body but
// never changes its status code. It turns unhealthy on the first failure.
func (h *Health) AddInfoCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, kindInfo, timeout, fn, 1)
}

// Start runs every registered check now and then on each interval until Stop
// or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go loop(ctx, c, interval)
	}
}

func loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the check goroutines. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready after startup, or not ready while it
// drains during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(kindReadiness) {
		if !c.isHealthy() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(kinds ...kind) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*check
	for _, c := range h.checks {
		if slices.Contains(kinds, c.kind) {
			out = append(out, c)
		}
	}
	return out
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while every liveness check
// passes, otherwise 503 {"status":"unhealthy","checks":{name: error}}.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	var failures []failure
	for _, c := range h.snapshot(kindLiveness) {
		if !c.isHealthy() {
			failures = append(failures, failure{c.name, c.status()})
		}
	}
	writeResponse(w, failures, nil)
}

// ReadyEndpoint serves /readyz. It fails while the service is not marked
// ready or a readiness check is unhealthy. Informational checks are always
// listed under "info".
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	var failures, info []failure
	if !h.ready.Load() {
		failures = append(failures, failure{"_readiness", "service is not ready"})
	}
	for _, c := range h.snapshot(kindReadiness, kindInfo) {
		switch {
		case c.kind == kindInfo:
			info = append(info, failure{c.name, c.status()})
		case !c.isHealthy():
			failures = append(failures, failure{c.name, c.status()})
		}
	}
	writeResponse(w, failures, info)
}

type failure struct {
	name   string
	status string
}

func writeResponse(w http.ResponseWriter, failures, info []failure) {
	status, code := "ok", http.StatusOK
	if len(failures) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str(status)
	writeMap(&e, "checks", failures)
	writeMap(&e, "info", info)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func writeMap(e *jx.Encoder, field string, entries []failure) {
	if len(entries) == 0 {
		return
	}
	e.FieldStart(field)
	e.ObjStart()
	for _, f := range entries {
		e.FieldStart(f.name)
		e.Str(f.status)
	}
	e.ObjEnd()
}
