// Package session maintains a long-lived authenticated HTTP session against
// the upstream reservation API: a cookie jar plus a rotating desktop-class
// user agent. Grounded on original_source's session_manager.rs state machine,
// reusing the teacher's internal/httpx browser-profile pool as the rotation
// set instead of the original's three bare strings.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/brensch/campwatch/internal/httpx"
)

// Manager owns the cookie jar and validity state for one upstream base URL.
// Readers take the RLock to fetch the current user agent and validity;
// EnsureValid takes the write lock to refresh.
type Manager struct {
	mu sync.RWMutex

	client  *http.Client
	baseURL string
	logger  *slog.Logger

	validationInterval time.Duration
	maxFailures        int

	neverValidated bool
	invalid        bool
	failureCount   int
	lastValidated  time.Time
}

// New builds a Manager sharing httpx.Default()'s tuned transport but with its
// own cookie jar, since the session's cookies must not bleed into unrelated
// callers of the shared client.
func New(baseURL string, validationInterval time.Duration, maxFailures int, logger *slog.Logger) (*Manager, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("build cookie jar: %w", err)
	}
	base := httpx.Default()
	client := &http.Client{
		Transport: base.Transport,
		Timeout:   base.Timeout,
		Jar:       jar,
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:             client,
		baseURL:            baseURL,
		logger:             logger,
		validationInterval: validationInterval,
		maxFailures:        maxFailures,
		neverValidated:     true,
	}, nil
}

// Client returns the session-scoped HTTP client for upstream calls to share.
func (m *Manager) Client() *http.Client {
	return m.client
}

// needsRefresh reports whether the next call should warm the session first.
// Held under RLock by the caller.
func (m *Manager) needsRefresh() bool {
	if m.neverValidated || m.invalid {
		return true
	}
	if m.failureCount >= m.maxFailures {
		return true
	}
	if time.Since(m.lastValidated) > m.validationInterval {
		return true
	}
	return false
}

// EnsureValid refreshes the session (GET the base URL with a rotated
// desktop-class user agent) when it is stale, invalid, never validated, or
// has tripped the failure-count threshold. A no-op otherwise.
func (m *Manager) EnsureValid(ctx context.Context) error {
	m.mu.RLock()
	stale := m.needsRefresh()
	m.mu.RUnlock()
	if !stale {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-check under the write lock in case another goroutine already refreshed.
	if !m.needsRefresh() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build session warm request: %w", err)
	}
	httpx.ApplyProfileAt(req, m.failureCount)

	resp, err := m.client.Do(req)
	if err != nil {
		m.failureCount++
		m.invalid = true
		return fmt.Errorf("session warm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.failureCount++
		m.invalid = true
		m.logger.Warn("session refresh failed",
			slog.Int("status", resp.StatusCode),
			slog.Int("failure_count", m.failureCount))
		return fmt.Errorf("session warm request returned status %d", resp.StatusCode)
	}

	m.failureCount = 0
	m.invalid = false
	m.neverValidated = false
	m.lastValidated = time.Now()
	m.logger.Info("session refreshed", slog.String("base_url", m.baseURL))
	return nil
}

// Reset forces the next EnsureValid call to refresh, regardless of staleness.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid = true
}

// Stats is a read-only snapshot for the web status endpoint, grounded on
// original_source's session_manager.rs get_session_stats.
type Stats struct {
	NeverValidated bool      `json:"never_validated"`
	Invalid        bool      `json:"invalid"`
	FailureCount   int       `json:"failure_count"`
	LastValidated  time.Time `json:"last_validated"`
}

// Stats returns a snapshot of the session state for operability endpoints.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		NeverValidated: m.neverValidated,
		Invalid:        m.invalid,
		FailureCount:   m.failureCount,
		LastValidated:  m.lastValidated,
	}
}
