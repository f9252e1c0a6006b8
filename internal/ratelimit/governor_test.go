package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllow_ClosesAtHourlyBudget(t *testing.T) {
	g := New(2, time.Millisecond)
	if !g.Allow() {
		t.Fatal("expected budget open before any calls")
	}
	ctx := context.Background()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !g.Allow() {
		t.Fatal("expected budget still open after 1 of 2 calls")
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if g.Allow() {
		t.Fatal("expected budget closed after reaching max_calls_per_hour")
	}
}

func TestAllow_ResetsAfterAnHourElapses(t *testing.T) {
	g := New(1, time.Millisecond)
	ctx := context.Background()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if g.Allow() {
		t.Fatal("expected budget closed immediately after exhausting it")
	}
	// Simulate an hour having passed since the last call.
	g.mu.Lock()
	g.lastCallAt = time.Now().Add(-2 * time.Hour)
	g.mu.Unlock()
	if !g.Allow() {
		t.Fatal("expected budget reset once the last call is over an hour stale")
	}
}

func TestWait_EnforcesMinimumSpacing(t *testing.T) {
	g := New(1000, 50*time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected at least 50ms between two calls, got %v", elapsed)
	}
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	g := New(1000, time.Hour)
	ctx := context.Background()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(cctx); err == nil {
		t.Fatal("expected Wait to respect context cancellation while the spacing gate is closed")
	}
}

func TestStats_ReflectsCallsThisHour(t *testing.T) {
	g := New(10, time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := g.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	stats := g.Stats()
	if stats.CallsThisHour != 3 {
		t.Fatalf("expected 3 calls this hour, got %d", stats.CallsThisHour)
	}
	if stats.MaxCallsPerHour != 10 {
		t.Fatalf("expected max 10, got %d", stats.MaxCallsPerHour)
	}
}
