package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/engine"
	"github.com/brensch/campwatch/internal/ratelimit"
	"github.com/brensch/campwatch/internal/session"
	"github.com/brensch/campwatch/internal/upstream"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "web_test.db")
	store, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStatusHandler_ReturnsAggregateStats(t *testing.T) {
	store := newTestStore(t)
	registry := upstream.NewRegistry()
	governor := ratelimit.New(100, time.Millisecond)
	eng := engine.New(store, registry, nil, governor, nil, engine.DefaultConfig())
	sess, err := session.New("https://example.invalid", time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	srv := NewServer(":0", store, eng, sess, governor, 5)

	ts := httptest.NewServer(http.HandlerFunc(srv.statusHandler))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Governor.MaxCallsPerHour != 100 {
		t.Fatalf("expected governor stats to reflect max_calls_per_hour=100, got %+v", got.Governor)
	}
	if got.Session.NeverValidated != true {
		t.Fatalf("expected a freshly created session to report never_validated=true, got %+v", got.Session)
	}
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	srv := &Server{}
	ts := httptest.NewServer(http.HandlerFunc(srv.healthHandler))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
