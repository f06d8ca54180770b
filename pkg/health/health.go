// Package health serves liveness and readiness probes for the API server.
//
// Every check runs on its own ticker. A check flips to unhealthy only after
// failureThreshold consecutive failures and back after successThreshold
// consecutive successes, so a single slow ping does not take the pod out of
// rotation.
package health

import (
	"cmp"
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check reports to.
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// Option tunes a single check.
type Option func(*check)

// WithThresholds overrides the default 3 failures / 1 success thresholds.
func WithThresholds(failures, successes int) Option {
	return func(c *check) {
		c.failureThreshold = max(failures, 1)
		c.successThreshold = max(successes, 1)
	}
}

// check is run from a single goroutine; only healthy and lastErr are read
// concurrently by the endpoints.
type check struct {
	name             string
	timeout          time.Duration
	fn               CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
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
		c.oks = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.oks++
	if c.oks >= c.successThreshold {
		c.healthy.Store(true)
	}
}

// Health tracks probe checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks map[Probe][]*check
	cancel context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{checks: make(map[Probe][]*check)}
}

// Add registers a check on probe. Checks start healthy.
func (h *Health) Add(probe Probe, name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	c := &check{
		name:             name,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[probe] = append(h.checks[probe], c)
}

// AddLivenessCheck registers a process-level check (goroutine leaks, GC).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.Add(Liveness, name, timeout, fn, opts...)
}

// AddReadinessCheck registers a dependency check (database, cache).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.Add(Readiness, name, timeout, fn, opts...)
}

func (h *Health) snapshot(probe Probe) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.checks[probe])
}

// Start runs every registered check once immediately and then every
// interval until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	var all []*check
	for _, cs := range h.checks {
		all = append(all, cs...)
	}
	h.mu.Unlock()

	for _, c := range all {
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

// Stop cancels the check goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness flag. It is set after startup and
// cleared at the start of graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the flag is set and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(Readiness) {
		if !c.isHealthy() {
			return false
		}
	}
	return true
}

// Mount registers /livez and /readyz on r.
func (h *Health) Mount(r chi.Router) {
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
}

// LiveEndpoint serves /livez: 200 while every liveness check passes.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.snapshot(Liveness), "")
}

// ReadyEndpoint serves /readyz: 200 when IsReady would return true.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	notReady := ""
	if !h.ready.Load() {
		notReady = "service is not ready"
	}
	writeStatus(w, h.snapshot(Readiness), notReady)
}

// writeStatus writes {"status": ..., "checks": {name: "ok" | error}}. A
// non-empty notReady is reported as the "_readiness" check.
func writeStatus(w http.ResponseWriter, checks []*check, notReady string) {
	slices.SortFunc(checks, func(a, b *check) int {
		return cmp.Compare(a.name, b.name)
	})

	healthy := notReady == ""
	for _, c := range checks {
		healthy = healthy && c.isHealthy()
	}

	var e jx.Encoder
	e.ObjStart()
	e.Field("status", func(e *jx.Encoder) {
		if healthy {
			e.Str("ok")
		} else {
			e.Str("unhealthy")
		}
	})
	if len(checks) > 0 || notReady != "" {
		e.Field("checks", func(e *jx.Encoder) {
			e.ObjStart()
			if notReady != "" {
				e.Field("_readiness", func(e *jx.Encoder) { e.Str(notReady) })
			}
			for _, c := range checks {
				e.Field(c.name, func(e *jx.Encoder) { e.Str(checkState(c)) })
			}
			e.ObjEnd()
		})
	}
	e.ObjEnd()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func checkState(c *check) string {
	if c.isHealthy() {
		return "ok"
	}
	if err := c.lastError(); err != nil {
		return err.Error()
	}
	return "check is unhealthy"
}
