// Campground metadata: ambient presentation data (name, coordinates,
// rating, amenities) used by the bot's autocomplete and by notification
// content, not part of the core's testable properties. Grounded on the
// teacher's ListCampgrounds/UpsertCampground/GetCampgroundByID fuzzy-search
// and sync-bookkeeping shape, trimmed to the single `campgrounds` table
// SPEC_FULL.md's schema carries (provider, id, name, lat, lon, rating,
// amenities, image_url).
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Campground struct {
	Provider  string
	ID        string
	Name      string
	Lat       float64
	Lon       float64
	Rating    float64
	Amenities map[string]string
	ImageURL  string
	UpdatedAt time.Time
}

// UpsertCampground stores one campground's metadata, called by the periodic
// campground sync in cmd/campwatch.
func (s *Store) UpsertCampground(ctx context.Context, provider, id, name string, lat, lon, rating float64, amenities map[string]string, imageURL string) error {
	amenitiesJSON, err := json.Marshal(amenities)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO campgrounds (provider, id, name, lat, lon, rating, amenities, image_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider, id) DO UPDATE SET
			name = excluded.name, lat = excluded.lat, lon = excluded.lon, rating = excluded.rating,
			amenities = excluded.amenities, image_url = excluded.image_url, updated_at = CURRENT_TIMESTAMP`,
		provider, id, name, lat, lon, rating, string(amenitiesJSON), imageURL)
	return err
}

// ListCampgrounds fuzzy-searches campground names for the bot's autocomplete,
// ranking exact matches first, then prefix matches, then substring matches,
// same tie-break order as the teacher's ListCampgrounds.
func (s *Store) ListCampgrounds(ctx context.Context, like string) ([]Campground, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT provider, id, name, lat, lon, rating
		FROM campgrounds
		WHERE lower(name) LIKE '%' || lower(?) || '%'
		ORDER BY
			CASE
				WHEN lower(name) = lower(?) THEN 0
				WHEN lower(name) LIKE lower(?) || '%' THEN 1
				ELSE 2
			END,
			name
		LIMIT 25`, like, like, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campground
	for rows.Next() {
		var c Campground
		if err := rows.Scan(&c.Provider, &c.ID, &c.Name, &c.Lat, &c.Lon, &c.Rating); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCampgroundByID(ctx context.Context, provider, id string) (Campground, bool, error) {
	var c Campground
	var amenities sql.NullString
	err := s.DB.QueryRowContext(ctx, `
		SELECT provider, id, name, lat, lon, rating, amenities, image_url, updated_at
		FROM campgrounds WHERE provider = ? AND id = ?`, provider, id).
		Scan(&c.Provider, &c.ID, &c.Name, &c.Lat, &c.Lon, &c.Rating, &amenities, &c.ImageURL, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return Campground{}, false, nil
	}
	if err != nil {
		return Campground{}, false, err
	}
	if amenities.Valid {
		_ = json.Unmarshal([]byte(amenities.String), &c.Amenities)
	}
	return c, true, nil
}

// MetadataSyncLog records one campground-metadata sync pass, spec §9's
// supplemented ambient sync bookkeeping.
type MetadataSyncLog struct {
	SyncType     string
	Provider     string
	CampgroundID string
	StartedAt    time.Time
	FinishedAt   time.Time
	Count        int
}

func (s *Store) RecordMetadataSync(ctx context.Context, l MetadataSyncLog) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO metadata_sync_log (sync_type, provider, campground_id, started_at, finished_at, count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.SyncType, l.Provider, l.CampgroundID, l.StartedAt, l.FinishedAt, l.Count)
	return err
}

// GetLastSuccessfulMetadataSync lets the periodic sync skip a re-run within
// the refresh window, per the teacher's RunCampgroundSync/GetLastSuccessfulMetadataSync
// pairing (every recorded sync here is already success-only, unlike the
// teacher's, which also logs failures).
func (s *Store) GetLastSuccessfulMetadataSync(ctx context.Context, syncType, provider string) (time.Time, bool, error) {
	var t time.Time
	err := s.DB.QueryRowContext(ctx, `
		SELECT finished_at FROM metadata_sync_log
		WHERE sync_type = ? AND provider = ?
		ORDER BY finished_at DESC LIMIT 1`, syncType, provider).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
