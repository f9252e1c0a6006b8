package db

import (
	"context"
	"database/sql"
	"time"
)

// PollingJob mirrors spec §3's PollingJob: one row per campground being
// watched, bookkeeping for the Scheduler.
type PollingJob struct {
	CampgroundID          string
	Provider              string
	ActiveScanCount       int
	LastPolled            *time.Time
	NextPollAt            time.Time
	PollFrequencyMinutes  int
	ConsecutiveErrors     int
	IsBeingPolled         bool
	Priority              int
	UpdatedAt             time.Time
}

// RecalculatePollingJob is the application-level aggregator spec §2 allows
// as an alternative to a database trigger: it recounts eligible scans for a
// campground and upserts the polling_jobs row, seeding next_poll_at to now
// so a brand-new campground is picked up on the next tick.
func (s *Store) RecalculatePollingJob(ctx context.Context, provider, campgroundID string, defaultPollFrequencyMinutes int) error {
	var count int
	if err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_scans
		WHERE campground_id = ? AND status = 'active'
		  AND date(check_out_date) >= date('now')
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`, campgroundID).Scan(&count); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO polling_jobs (campground_id, provider, active_scan_count, next_poll_at, poll_frequency_minutes, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(campground_id) DO UPDATE SET
			active_scan_count = excluded.active_scan_count,
			provider = excluded.provider,
			updated_at = CURRENT_TIMESTAMP`,
		campgroundID, provider, count, defaultPollFrequencyMinutes)
	return err
}

// SelectDueJobs implements scheduler tick step 1: up to limit candidates
// where active_scan_count > 0, next_poll_at <= now, is_being_polled = false,
// consecutive_errors < maxConsecutiveErrors, ordered by priority DESC then
// next_poll_at ASC (earlier next_poll_at wins a priority tie, per spec §8).
func (s *Store) SelectDueJobs(ctx context.Context, limit, maxConsecutiveErrors int) ([]PollingJob, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT campground_id, provider, active_scan_count, last_polled, next_poll_at,
		       poll_frequency_minutes, consecutive_errors, is_being_polled, priority, updated_at
		FROM polling_jobs
		WHERE active_scan_count > 0
		  AND is_being_polled = 0
		  AND next_poll_at <= CURRENT_TIMESTAMP
		  AND consecutive_errors < ?
		ORDER BY priority DESC, next_poll_at ASC
		LIMIT ?`, maxConsecutiveErrors, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PollingJob
	for rows.Next() {
		var j PollingJob
		var lastPolled sql.NullTime
		var beingPolled int
		if err := rows.Scan(&j.CampgroundID, &j.Provider, &j.ActiveScanCount, &lastPolled, &j.NextPollAt,
			&j.PollFrequencyMinutes, &j.ConsecutiveErrors, &beingPolled, &j.Priority, &j.UpdatedAt); err != nil {
			return nil, err
		}
		if lastPolled.Valid {
			t := lastPolled.Time
			j.LastPolled = &t
		}
		j.IsBeingPolled = beingPolled != 0
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimJob transitions a job Due -> InFlight: sets is_being_polled, the
// database-side coarse hint described in spec §5 (the in-memory in-flight
// set in internal/engine is the actual mutual-exclusion authority).
func (s *Store) ClaimJob(ctx context.Context, campgroundID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE polling_jobs SET is_being_polled = 1, updated_at = CURRENT_TIMESTAMP WHERE campground_id = ?`,
		campgroundID)
	return err
}

// ReleaseJobSuccess implements the InFlight -> Idle success transition:
// consecutive_errors resets to 0, next_poll_at advances by poll_frequency.
func (s *Store) ReleaseJobSuccess(ctx context.Context, campgroundID string, pollFrequency time.Duration) error {
	next := time.Now().Add(pollFrequency)
	_, err := s.DB.ExecContext(ctx, `
		UPDATE polling_jobs
		SET is_being_polled = 0, consecutive_errors = 0, last_polled = CURRENT_TIMESTAMP,
		    next_poll_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE campground_id = ?`, next, campgroundID)
	return err
}

// ReleaseJobError implements the InFlight -> Idle/Backoff failure transition:
// consecutive_errors increments; once it reaches maxConsecutiveErrors,
// next_poll_at is pushed out by errorBackoff instead of pollFrequency.
func (s *Store) ReleaseJobError(ctx context.Context, campgroundID string, maxConsecutiveErrors int, errorBackoff, pollFrequency time.Duration) error {
	var consecutiveErrors int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT consecutive_errors FROM polling_jobs WHERE campground_id = ?`, campgroundID).
		Scan(&consecutiveErrors); err != nil {
		return err
	}
	consecutiveErrors++

	next := time.Now().Add(pollFrequency)
	if consecutiveErrors >= maxConsecutiveErrors {
		next = time.Now().Add(errorBackoff)
	}

	_, err := s.DB.ExecContext(ctx, `
		UPDATE polling_jobs
		SET is_being_polled = 0, consecutive_errors = ?, next_poll_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE campground_id = ?`, consecutiveErrors, next, campgroundID)
	return err
}

// ReleaseClaimOnly clears is_being_polled without touching consecutive_errors
// or next_poll_at, for storage-layer faults spec §4.7 treats as distinct from
// a polling failure (the fetch itself may have succeeded).
func (s *Store) ReleaseClaimOnly(ctx context.Context, campgroundID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE polling_jobs SET is_being_polled = 0, updated_at = CURRENT_TIMESTAMP WHERE campground_id = ?`,
		campgroundID)
	return err
}

// SweepStaleInFlight clears is_being_polled for rows that have been stuck
// since before the threshold, the startup sweep spec §5 says implementers
// SHOULD perform (a crashed process leaves is_being_polled=true rows behind).
func (s *Store) SweepStaleInFlight(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.DB.ExecContext(ctx, `
		UPDATE polling_jobs SET is_being_polled = 0, updated_at = CURRENT_TIMESTAMP
		WHERE is_being_polled = 1 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// JobStats is a read-only snapshot for the web status endpoint.
type JobStats struct {
	TotalJobs     int `json:"total_jobs"`
	DueJobs       int `json:"due_jobs"`
	InFlightJobs  int `json:"in_flight_jobs"`
	BackoffJobs   int `json:"backoff_jobs"`
}

func (s *Store) GetJobStats(ctx context.Context, maxConsecutiveErrors int) (JobStats, error) {
	var stats JobStats
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM polling_jobs`).Scan(&stats.TotalJobs); err != nil {
		return JobStats{}, err
	}
	if err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM polling_jobs
		WHERE active_scan_count > 0 AND is_being_polled = 0 AND next_poll_at <= CURRENT_TIMESTAMP AND consecutive_errors < ?`,
		maxConsecutiveErrors).Scan(&stats.DueJobs); err != nil {
		return JobStats{}, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM polling_jobs WHERE is_being_polled = 1`).Scan(&stats.InFlightJobs); err != nil {
		return JobStats{}, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM polling_jobs WHERE consecutive_errors >= ?`,
		maxConsecutiveErrors).Scan(&stats.BackoffJobs); err != nil {
		return JobStats{}, err
	}
	return stats, nil
}
