// Package ratelimit implements the process-wide, two-gate rate governor:
// an hourly call-budget counter and a minimum-spacing gate shared by every
// worker. Generalizes the teacher's inline rate.NewLimiter call in
// internal/manager/sync.go into a first-class building block, per
// original_source's executor_helpers.rs can_make_api_call/enforce_rate_limit.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Governor guards the hourly budget with its own mutex and delegates minimum
// spacing to an x/time/rate.Limiter, the same library the teacher reaches
// for to pace campsite-metadata sync requests.
type Governor struct {
	mu              sync.Mutex
	maxCallsPerHour int
	callsThisHour   int
	lastCallAt      time.Time

	spacing *rate.Limiter
}

// New builds a Governor with the hourly budget and minimum spacing from
// spec §4.3's defaults (1000/hour, 5s spacing).
func New(maxCallsPerHour int, minInterval time.Duration) *Governor {
	return &Governor{
		maxCallsPerHour: maxCallsPerHour,
		spacing:         rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Allow reports whether the hourly budget has room for one more call,
// without blocking. The Scheduler uses this as its tick-level admission
// check: when closed, it stops admitting new jobs for the tick rather than
// queuing them.
func (g *Governor) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfStale()
	return g.callsThisHour < g.maxCallsPerHour
}

// Wait blocks until the minimum-spacing gate opens, then records the call
// against the hourly budget. Call this immediately before issuing the
// upstream request it is gating.
func (g *Governor) Wait(ctx context.Context) error {
	if err := g.spacing.Wait(ctx); err != nil {
		return err
	}
	g.recordCall()
	return nil
}

func (g *Governor) recordCall() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfStale()
	g.callsThisHour++
	g.lastCallAt = time.Now()
}

// resetIfStale zeroes the hourly counter whenever the last call is older
// than one hour, per spec §4.3. Must be called with mu held.
func (g *Governor) resetIfStale() {
	if g.lastCallAt.IsZero() {
		return
	}
	if time.Since(g.lastCallAt) > time.Hour {
		g.callsThisHour = 0
	}
}

// Stats is a read-only snapshot for the web status endpoint.
type Stats struct {
	CallsThisHour   int `json:"calls_this_hour"`
	MaxCallsPerHour int `json:"max_calls_per_hour"`
}

func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfStale()
	return Stats{CallsThisHour: g.callsThisHour, MaxCallsPerHour: g.maxCallsPerHour}
}
