package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEnsureValid_RefreshesWhenNeverValidated(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(srv.URL, time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 warm request on first EnsureValid, got %d", hits)
	}
	stats := m.Stats()
	if stats.NeverValidated || stats.Invalid || stats.FailureCount != 0 {
		t.Fatalf("expected a clean validated state, got %+v", stats)
	}
}

func TestEnsureValid_NoopWhenFresh(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(srv.URL, time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("first EnsureValid: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("second EnsureValid: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected no second warm request while the session is fresh, got %d hits", hits)
	}
}

func TestEnsureValid_RefreshesAfterValidationIntervalElapses(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(srv.URL, time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("first EnsureValid: %v", err)
	}
	// Force staleness without waiting an hour.
	m.mu.Lock()
	m.lastValidated = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("second EnsureValid: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected a second warm request once the validation interval elapsed, got %d hits", hits)
	}
}

func TestEnsureValid_FailureMarksInvalidAndRetriesNextCall(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m, err := New(srv.URL, time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err == nil {
		t.Fatal("expected an error from a 403 warm response")
	}
	stats := m.Stats()
	if !stats.Invalid || stats.FailureCount != 1 {
		t.Fatalf("expected invalid=true, failure_count=1 after a failed warm, got %+v", stats)
	}

	if err := m.EnsureValid(context.Background()); err == nil {
		t.Fatal("expected the second attempt to also fail against the same 403 server")
	}
	if hits != 2 {
		t.Fatalf("expected EnsureValid to retry since invalid=true short-circuits needsRefresh, got %d hits", hits)
	}
}

func TestReset_ForcesRefreshRegardlessOfFreshness(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(srv.URL, time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("first EnsureValid: %v", err)
	}
	m.Reset()
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("second EnsureValid after Reset: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected Reset to force a second warm request, got %d hits", hits)
	}
}

func TestClient_ReturnsSessionScopedClient(t *testing.T) {
	m, err := New("https://example.invalid", time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Client() == nil {
		t.Fatal("expected a non-nil client")
	}
	if m.Client().Jar == nil {
		t.Fatal("expected the session client to carry its own cookie jar")
	}
}
