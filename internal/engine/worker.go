package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/diffengine"
	"github.com/brensch/campwatch/internal/upstream"
)

// runWorker implements spec §4.7's per-job pipeline: load eligible scans,
// fetch the window they collectively cover, diff against the last known
// snapshot, persist, and dispatch notifications for anything newly
// available. Always releases the in-memory claim; the database row is
// released on every exit path except an aborted governor wait, which leaves
// is_being_polled set for the stale-in-flight sweep.
func (e *Engine) runWorker(ctx context.Context, job db.PollingJob) {
	defer e.release(job.CampgroundID)

	logger := e.logger.With(slog.String("campground", job.CampgroundID), slog.String("provider", job.Provider))

	scans, err := e.store.ListEligibleScans(ctx, job.CampgroundID)
	if err != nil {
		logger.Error("list eligible scans failed", slog.Any("err", err))
		e.releaseError(ctx, job, err)
		return
	}
	if len(scans) == 0 {
		// active_scan_count raced ahead of a scan's expiry or cancellation.
		// Nothing to do; treat it like a successful no-op poll.
		logger.Info("no eligible scans at claim time; skipping")
		if err := e.store.ReleaseJobSuccess(ctx, job.CampgroundID, e.pollFrequency(job)); err != nil {
			logger.Error("release job success failed", slog.Any("err", err))
		}
		return
	}

	from, to := scanWindow(scans)

	client, ok := e.registry.Get(job.Provider)
	if !ok {
		logger.Error("no registered client for provider")
		e.releaseError(ctx, job, nil)
		return
	}

	if e.session != nil {
		if err := e.session.EnsureValid(ctx); err != nil {
			logger.Warn("session refresh failed", slog.Any("err", err))
			e.writeErrorAndRelease(ctx, job, from, err)
			return
		}
	}

	if err := e.governor.Wait(ctx); err != nil {
		// Context cancelled while waiting on the spacing gate; leave the job
		// claimed so the stale-in-flight sweep (or a future release) tidies
		// it up rather than racing a half-issued request.
		logger.Debug("governor wait aborted", slog.Any("err", err))
		return
	}

	current, err := client.FetchAvailability(ctx, job.CampgroundID, from, to)
	if err != nil {
		if uerr, ok := err.(*upstream.Error); ok && uerr.Kind == upstream.AuthenticationFailed && e.session != nil {
			e.session.Reset()
		}
		logger.Warn("fetch availability failed", slog.Any("err", err))
		e.writeErrorAndRelease(ctx, job, from, err)
		return
	}

	previous, err := e.store.ReadRange(ctx, job.CampgroundID, from, to)
	if err != nil {
		// A database failure here is a storage-layer fault, not a polling
		// failure: best-effort release the in-flight claim without touching
		// consecutive_errors or next_poll_at.
		logger.Error("read previous availability failed", slog.Any("err", err))
		e.bestEffortClaimRelease(job.CampgroundID)
		return
	}

	newSites := diffengine.Diff(previous, current)

	if err := e.store.WriteSnapshot(ctx, current); err != nil {
		logger.Error("write snapshot failed", slog.Any("err", err))
		e.bestEffortClaimRelease(job.CampgroundID)
		return
	}

	if len(newSites) > 0 && e.notifier != nil {
		name := job.CampgroundID
		if cg, ok, cerr := e.store.GetCampgroundByID(ctx, job.Provider, job.CampgroundID); cerr == nil && ok {
			name = cg.Name
		}
		if err := e.notifier.Dispatch(ctx, job.CampgroundID, name, scans, newSites, current); err != nil {
			logger.Error("notification dispatch failed", slog.Any("err", err))
		}
	}

	if err := e.store.ReleaseJobSuccess(ctx, job.CampgroundID, e.pollFrequency(job)); err != nil {
		logger.Error("release job success failed", slog.Any("err", err))
	}
}

// writeErrorAndRelease records the failed check as one error row at date
// (callers pass the window start), then releases the job as an error; the
// job-level release carries the actual backoff state.
func (e *Engine) writeErrorAndRelease(ctx context.Context, job db.PollingJob, date time.Time, cause error) {
	if err := e.store.WriteError(ctx, job.CampgroundID, date, cause.Error()); err != nil {
		e.logger.Error("write error row failed", slog.String("campground", job.CampgroundID), slog.Any("err", err))
	}
	e.releaseError(ctx, job, cause)
}

func (e *Engine) releaseError(ctx context.Context, job db.PollingJob, _ error) {
	if err := e.store.ReleaseJobError(ctx, job.CampgroundID, e.cfg.MaxConsecutiveErrors, e.cfg.ErrorBackoffDuration, e.pollFrequency(job)); err != nil {
		e.logger.Error("release job error failed", slog.String("campground", job.CampgroundID), slog.Any("err", err))
	}
}

// bestEffortClaimRelease clears only the in-flight DB flag, leaving
// consecutive_errors and next_poll_at untouched: storage faults are not the
// job's fault.
func (e *Engine) bestEffortClaimRelease(campgroundID string) {
	if err := e.store.ReleaseClaimOnly(context.Background(), campgroundID); err != nil {
		e.logger.Error("release claim failed", slog.String("campground", campgroundID), slog.Any("err", err))
	}
}

func (e *Engine) pollFrequency(job db.PollingJob) time.Duration {
	if job.PollFrequencyMinutes <= 0 {
		return e.cfg.DefaultPollFrequency
	}
	return time.Duration(job.PollFrequencyMinutes) * time.Minute
}

// scanWindow computes the earliest check-in and latest check-out across a
// set of scans, the union window spec §4.7 says the Worker fetches once per
// job rather than once per scan.
func scanWindow(scans []db.UserScan) (time.Time, time.Time) {
	from := scans[0].CheckIn
	to := scans[0].CheckOut
	for _, sc := range scans[1:] {
		if sc.CheckIn.Before(from) {
			from = sc.CheckIn
		}
		if sc.CheckOut.After(to) {
			to = sc.CheckOut
		}
	}
	return from, to
}
