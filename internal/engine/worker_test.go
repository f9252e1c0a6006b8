package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/ratelimit"
	"github.com/brensch/campwatch/internal/upstream"
)

// fakeClient is a minimal upstream.Client whose FetchAvailability returns a
// canned snapshot, so the worker pipeline is exercised without a network
// call.
type fakeClient struct {
	name      string
	snapshot  upstream.CampgroundAvailability
	err       error
	fetchCall int
}

func (f *fakeClient) Name() string { return f.name }
func (f *fakeClient) FetchAvailability(ctx context.Context, campgroundID string, from, to time.Time) (upstream.CampgroundAvailability, error) {
	f.fetchCall++
	if f.err != nil {
		return upstream.CampgroundAvailability{}, f.err
	}
	return f.snapshot, nil
}
func (f *fakeClient) FetchMonthlyAvailability(ctx context.Context, campgroundID string, monthAnchor time.Time) (upstream.CampgroundAvailability, error) {
	return upstream.CampgroundAvailability{}, nil
}
func (f *fakeClient) SearchFacilities(ctx context.Context, query, state, activity string) ([]upstream.Facility, error) {
	return nil, nil
}
func (f *fakeClient) GetFacility(ctx context.Context, id string) (upstream.Facility, error) {
	return upstream.Facility{}, nil
}
func (f *fakeClient) FetchAllCampgrounds(ctx context.Context) ([]upstream.CampgroundInfo, error) {
	return nil, nil
}
func (f *fakeClient) CampsiteURL(campgroundID, siteID string) string  { return "" }
func (f *fakeClient) CampgroundURL(campgroundID string) string        { return "" }
func (f *fakeClient) PlanBuckets(dates []time.Time) []upstream.DateRange { return nil }

// fakeNotifier records every Dispatch call instead of sending anything.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []upstream.CampgroundAvailability
	err   error
}

func (f *fakeNotifier) Dispatch(ctx context.Context, campgroundID, campgroundName string, scans []db.UserScan, newSites []upstream.SiteAvailability, snapshot upstream.CampgroundAvailability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, snapshot)
	return f.err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newEngineTestStore(t *testing.T) *db.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine_test.db")
	store, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return tm
}

func TestRunWorker_NewAvailabilityDispatchesAndReleasesSuccess(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()

	future := mustDate(t, time.Now().AddDate(0, 0, 10).Format("2006-01-02"))
	if _, err := store.AddScan(ctx, "u1", "fakeprov", "G1", future, future.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("AddScan: %v", err)
	}
	if err := store.RecalculatePollingJob(ctx, "fakeprov", "G1", 15); err != nil {
		t.Fatalf("RecalculatePollingJob: %v", err)
	}

	client := &fakeClient{name: "fakeprov", snapshot: upstream.CampgroundAvailability{
		CampgroundID: "G1",
		Sites:        []upstream.SiteAvailability{{SiteID: "S1", Date: future, Available: true}},
	}}
	registry := upstream.NewRegistry()
	registry.Register(client)

	notif := &fakeNotifier{}
	governor := ratelimit.New(1000, time.Millisecond)
	cfg := DefaultConfig()
	eng := New(store, registry, nil, governor, notif, cfg)

	due, err := store.SelectDueJobs(ctx, 10, cfg.MaxConsecutiveErrors)
	if err != nil {
		t.Fatalf("SelectDueJobs: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due job, got %d", len(due))
	}
	if err := store.ClaimJob(ctx, "G1"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	eng.claim("G1")

	eng.runWorker(ctx, due[0])

	if client.fetchCall != 1 {
		t.Fatalf("expected 1 fetch call, got %d", client.fetchCall)
	}
	if notif.callCount() != 1 {
		t.Fatalf("expected 1 notifier dispatch, got %d", notif.callCount())
	}
	if eng.isInFlight("G1") {
		t.Fatal("expected the in-memory claim released after the worker completes")
	}

	var consecutiveErrors, beingPolled int
	if err := store.DB.QueryRowContext(ctx, `SELECT consecutive_errors, is_being_polled FROM polling_jobs WHERE campground_id = ?`, "G1").
		Scan(&consecutiveErrors, &beingPolled); err != nil {
		t.Fatalf("query polling_jobs: %v", err)
	}
	if consecutiveErrors != 0 || beingPolled != 0 {
		t.Fatalf("expected a clean success release, got consecutive_errors=%d is_being_polled=%d", consecutiveErrors, beingPolled)
	}
}

func TestRunWorker_NoNewSitesSkipsNotifier(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()

	future := mustDate(t, time.Now().AddDate(0, 0, 10).Format("2006-01-02"))
	if _, err := store.AddScan(ctx, "u1", "fakeprov", "G1", future, future.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("AddScan: %v", err)
	}
	if err := store.RecalculatePollingJob(ctx, "fakeprov", "G1", 15); err != nil {
		t.Fatalf("RecalculatePollingJob: %v", err)
	}
	// Seed the snapshot as already-known so the diff produces nothing new.
	if err := store.WriteSnapshot(ctx, upstream.CampgroundAvailability{
		CampgroundID: "G1",
		Sites:        []upstream.SiteAvailability{{SiteID: "S1", Date: future, Available: true}},
	}); err != nil {
		t.Fatalf("seed WriteSnapshot: %v", err)
	}

	client := &fakeClient{name: "fakeprov", snapshot: upstream.CampgroundAvailability{
		CampgroundID: "G1",
		Sites:        []upstream.SiteAvailability{{SiteID: "S1", Date: future, Available: true}},
	}}
	registry := upstream.NewRegistry()
	registry.Register(client)

	notif := &fakeNotifier{}
	governor := ratelimit.New(1000, time.Millisecond)
	eng := New(store, registry, nil, governor, notif, DefaultConfig())

	due, err := store.SelectDueJobs(ctx, 10, 5)
	if err != nil {
		t.Fatalf("SelectDueJobs: %v", err)
	}
	if err := store.ClaimJob(ctx, "G1"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	eng.claim("G1")
	eng.runWorker(ctx, due[0])

	if notif.callCount() != 0 {
		t.Fatalf("expected no notifier dispatch when nothing newly available, got %d", notif.callCount())
	}
}

func TestRunWorker_FetchErrorBacksOffJob(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()

	future := mustDate(t, time.Now().AddDate(0, 0, 10).Format("2006-01-02"))
	if _, err := store.AddScan(ctx, "u1", "fakeprov", "G1", future, future.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("AddScan: %v", err)
	}
	if err := store.RecalculatePollingJob(ctx, "fakeprov", "G1", 15); err != nil {
		t.Fatalf("RecalculatePollingJob: %v", err)
	}

	client := &fakeClient{name: "fakeprov", err: &upstream.Error{Kind: upstream.ApiError, Err: context.DeadlineExceeded}}
	registry := upstream.NewRegistry()
	registry.Register(client)

	notif := &fakeNotifier{}
	governor := ratelimit.New(1000, time.Millisecond)
	eng := New(store, registry, nil, governor, notif, DefaultConfig())

	due, err := store.SelectDueJobs(ctx, 10, 5)
	if err != nil {
		t.Fatalf("SelectDueJobs: %v", err)
	}
	if err := store.ClaimJob(ctx, "G1"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	eng.claim("G1")
	eng.runWorker(ctx, due[0])

	var consecutiveErrors int
	if err := store.DB.QueryRowContext(ctx, `SELECT consecutive_errors FROM polling_jobs WHERE campground_id = ?`, "G1").
		Scan(&consecutiveErrors); err != nil {
		t.Fatalf("query consecutive_errors: %v", err)
	}
	if consecutiveErrors != 1 {
		t.Fatalf("expected consecutive_errors incremented to 1, got %d", consecutiveErrors)
	}
	if notif.callCount() != 0 {
		t.Fatalf("expected no notification dispatch on a fetch error, got %d", notif.callCount())
	}
}

func TestRunWorker_NoEligibleScansReleasesAsSuccess(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()

	future := mustDate(t, time.Now().AddDate(0, 0, 10).Format("2006-01-02"))
	if _, err := store.AddScan(ctx, "u1", "fakeprov", "G1", future, future.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("AddScan: %v", err)
	}
	if err := store.RecalculatePollingJob(ctx, "fakeprov", "G1", 15); err != nil {
		t.Fatalf("RecalculatePollingJob: %v", err)
	}
	due, err := store.SelectDueJobs(ctx, 10, 5)
	if err != nil {
		t.Fatalf("SelectDueJobs: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due job, got %d", len(due))
	}
	job := due[0]

	// Cancel the scan after the job was selected but before the worker runs,
	// simulating active_scan_count racing ahead of the scan's own lifecycle.
	var scanID int64
	if err := store.DB.QueryRowContext(ctx, `SELECT id FROM user_scans WHERE campground_id = ?`, "G1").Scan(&scanID); err != nil {
		t.Fatalf("query scan id: %v", err)
	}
	if err := store.DeactivateScan(ctx, scanID, "u1"); err != nil {
		t.Fatalf("DeactivateScan: %v", err)
	}

	client := &fakeClient{name: "fakeprov"}
	registry := upstream.NewRegistry()
	registry.Register(client)
	notif := &fakeNotifier{}
	governor := ratelimit.New(1000, time.Millisecond)
	eng := New(store, registry, nil, governor, notif, DefaultConfig())

	if err := store.ClaimJob(ctx, "G1"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	eng.claim("G1")
	eng.runWorker(ctx, job)

	if client.fetchCall != 0 {
		t.Fatalf("expected no fetch when there are no eligible scans, got %d", client.fetchCall)
	}
	var beingPolled int
	if err := store.DB.QueryRowContext(ctx, `SELECT is_being_polled FROM polling_jobs WHERE campground_id = ?`, "G1").Scan(&beingPolled); err != nil {
		t.Fatalf("query is_being_polled: %v", err)
	}
	if beingPolled != 0 {
		t.Fatal("expected the job released even with zero eligible scans")
	}
}
