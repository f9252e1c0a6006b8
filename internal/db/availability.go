// Availability persistence: spec §4.4's Availability Store operations
// (read_range, write_snapshot, write_error) over the campground_availability
// table, keyed by (campground_id, date). Grounded on the teacher's
// UpsertCampsiteAvailabilityBatch (batch upsert inside a transaction,
// idempotent-on-composite-key) generalized from per-campsite rows to the
// per-date snapshot shape SPEC_FULL.md's schema uses.
package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brensch/campwatch/internal/upstream"
)

const (
	CheckStatusSuccess = "success"
	CheckStatusError   = "error"
)

// dateSites groups one campground's sites by ISO date for write_snapshot and
// for the Diff Engine's "previous" argument shape.
func dateSites(sites []upstream.SiteAvailability) map[string][]upstream.SiteAvailability {
	out := map[string][]upstream.SiteAvailability{}
	for _, s := range sites {
		key := s.Date.Format("2006-01-02")
		out[key] = append(out[key], s)
	}
	return out
}

// WriteSnapshot upserts one row per date present in snap.Sites: spec §4.4
// says this replaces available_sites, total_sites, availability_data, and
// last_checked, and clears error_message, setting check_status=success.
// All per-date upserts run in one transaction, so a failure mid-loop rolls
// back every date and none of the snapshot is written.
func (s *Store) WriteSnapshot(ctx context.Context, snap upstream.CampgroundAvailability) error {
	byDate := dateSites(snap.Sites)
	if len(byDate) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campground_availability
			(campground_id, date, available_sites, total_sites, availability_data, check_status, error_message, last_checked)
		VALUES (?, ?, ?, ?, ?, ?, NULL, CURRENT_TIMESTAMP)
		ON CONFLICT(campground_id, date) DO UPDATE SET
			available_sites = excluded.available_sites,
			total_sites = excluded.total_sites,
			availability_data = excluded.availability_data,
			check_status = excluded.check_status,
			error_message = NULL,
			last_checked = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for date, sites := range byDate {
		payload, err := json.Marshal(sites)
		if err != nil {
			return err
		}
		available := 0
		for _, site := range sites {
			if site.Available {
				available++
			}
		}
		if _, err := stmt.ExecContext(ctx, snap.CampgroundID, date, available, len(sites), string(payload), CheckStatusSuccess); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// WriteError upserts an error row for (campground, date), per spec §4.4:
// check_status=error, error_message set, availability_data left untouched
// (or NULL if the row is new) rather than cleared, so a transient fetch
// failure does not discard the last-known-good snapshot callers may still
// want to read.
func (s *Store) WriteError(ctx context.Context, campgroundID string, date time.Time, message string) error {
	dateKey := date.Format("2006-01-02")
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO campground_availability (campground_id, date, check_status, error_message, last_checked)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(campground_id, date) DO UPDATE SET
			check_status = excluded.check_status,
			error_message = excluded.error_message,
			last_checked = CURRENT_TIMESTAMP`,
		campgroundID, dateKey, CheckStatusError, message)
	return err
}

// ReadRange returns the success-status sites for campgroundID across
// [from, to], keyed by ISO date, per spec §4.4. Missing dates (never
// polled, or last poll errored) are simply absent from the map — the Diff
// Engine treats an absent key as "no prior data".
func (s *Store) ReadRange(ctx context.Context, campgroundID string, from, to time.Time) (map[string][]upstream.SiteAvailability, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT date, availability_data FROM campground_availability
		WHERE campground_id = ? AND date BETWEEN ? AND ? AND check_status = ? AND availability_data IS NOT NULL`,
		campgroundID, from.Format("2006-01-02"), to.Format("2006-01-02"), CheckStatusSuccess)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]upstream.SiteAvailability{}
	for rows.Next() {
		var date, payload string
		if err := rows.Scan(&date, &payload); err != nil {
			return nil, err
		}
		var sites []upstream.SiteAvailability
		if err := json.Unmarshal([]byte(payload), &sites); err != nil {
			return nil, err
		}
		out[date] = sites
	}
	return out, rows.Err()
}

// AvailabilitySummary is a read-only row for the web status endpoint and
// for GetCurrentAvailability.
type AvailabilitySummary struct {
	Date            string
	AvailableSites  int
	TotalSites      int
	CheckStatus     string
	ErrorMessage    string
	LastChecked     time.Time
}

// GetCurrentAvailability reads the latest per-date counts for a campground
// over [from, to], success and error rows alike, for presentation.
func (s *Store) GetCurrentAvailability(ctx context.Context, campgroundID string, from, to time.Time) ([]AvailabilitySummary, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT date, available_sites, total_sites, check_status, coalesce(error_message, ''), last_checked
		FROM campground_availability
		WHERE campground_id = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`,
		campgroundID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilitySummary
	for rows.Next() {
		var a AvailabilitySummary
		if err := rows.Scan(&a.Date, &a.AvailableSites, &a.TotalSites, &a.CheckStatus, &a.ErrorMessage, &a.LastChecked); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
