// Package db is the SQLite persistence layer: embedded schema migration,
// driver wrapped with slow-query logging, and CRUD for scans, polling jobs,
// availability, notifications, and campground metadata. Grounded on the
// teacher's internal/db/store.go (driver wrapping, embedded schema.sql,
// struct/db-tag conventions) with the data model replaced per SPEC_FULL.md's
// schema (one row per (campground, date) instead of the teacher's
// (provider, campground, campsite, date) granularity).
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stephennancekivell/querypulse"
)

//go:embed schema.sql
var schemaFS embed.FS

type Store struct {
	DB *sql.DB
}

// Open opens (creating if absent) a read-write SQLite database at path,
// wrapping the driver with querypulse so slow queries get logged, exactly
// as the teacher's db.Open does.
func Open(path string) (*Store, error) {
	driverName, err := querypulse.Register("sqlite3", querypulse.Options{
		OnSuccess: func(ctx context.Context, query string, args []any, duration time.Duration) {
			if duration > 10*time.Millisecond {
				slog.Info("slow query succeeded", slog.Any("args", args), slog.String("query", query), slog.Duration("took", duration))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("register query logging driver: %w", err)
	}

	database, err := sql.Open(driverName, path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := database.Ping(); err != nil {
		return nil, err
	}
	if err := migrate(database); err != nil {
		return nil, err
	}
	return &Store{DB: database}, nil
}

// OpenReadOnly opens the database in read-only mode, for operational tools
// that must not race the running engine's writes.
func OpenReadOnly(path string) (*Store, error) {
	driverName, err := querypulse.Register("sqlite3", querypulse.Options{
		OnSuccess: func(ctx context.Context, query string, args []any, duration time.Duration) {
			if duration > 10*time.Millisecond {
				slog.Debug("query succeeded", slog.String("query", query), slog.Duration("took", duration))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("register query logging driver: %w", err)
	}

	database, err := sql.Open(driverName, path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := database.Ping(); err != nil {
		return nil, err
	}
	return &Store{DB: database}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func migrate(database *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = database.Exec(string(schemaBytes))
	return err
}

// Scan status values, spec §3.
const (
	ScanActive    = "active"
	ScanPaused    = "paused"
	ScanCompleted = "completed"
	ScanCancelled = "cancelled"
)

// UserScan mirrors spec §3's UserScan: owned by the external CRUD path,
// read-only to the core (the core only writes notification_sent).
type UserScan struct {
	ID                int64
	UserID            string
	CampgroundID      string
	Provider          string
	CheckIn           time.Time
	CheckOut          time.Time
	Nights            int
	Status            string
	NotificationSent  bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         *time.Time
}

// AddScan inserts a new scan, ensuring a minimal users row exists so the
// notifier always has a projection to read (this single-process deployment
// has no separate signup flow; the bot is the CRUD collaborator for scans
// and contact info both).
func (s *Store) AddScan(ctx context.Context, userID, provider, campgroundID string, checkIn, checkOut time.Time) (UserScan, error) {
	if !checkOut.After(checkIn) {
		return UserScan{}, fmt.Errorf("check_out_date must be after check_in_date")
	}
	nights := int(checkOut.Sub(checkIn).Hours() / 24)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return UserScan{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, email, notify_email, notify_sms) VALUES (?, '', 0, 0)`,
		userID); err != nil {
		return UserScan{}, fmt.Errorf("ensure user row: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO user_scans (user_id, campground_id, provider, check_in_date, check_out_date, nights, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, campgroundID, provider, checkIn, checkOut, nights, ScanActive)
	if err != nil {
		return UserScan{}, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return UserScan{}, err
	}

	if err := tx.Commit(); err != nil {
		return UserScan{}, err
	}

	return UserScan{
		ID: id, UserID: userID, CampgroundID: campgroundID, Provider: provider,
		CheckIn: checkIn, CheckOut: checkOut, Nights: nights, Status: ScanActive,
	}, nil
}

// ListUserActiveScans lists a user's non-terminal scans.
func (s *Store) ListUserActiveScans(ctx context.Context, userID string) ([]UserScan, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, campground_id, provider, check_in_date, check_out_date, nights, status, notification_sent, created_at, updated_at, expires_at
		FROM user_scans WHERE user_id = ? AND status IN ('active','paused') ORDER BY check_in_date ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserScans(rows)
}

// ListEligibleScans returns the scans for a campground that are eligible per
// spec §3: status=active, check-out >= today, and (expires is null or in the
// future).
func (s *Store) ListEligibleScans(ctx context.Context, campgroundID string) ([]UserScan, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, campground_id, provider, check_in_date, check_out_date, nights, status, notification_sent, created_at, updated_at, expires_at
		FROM user_scans
		WHERE campground_id = ? AND status = 'active'
		  AND date(check_out_date) >= date('now')
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		ORDER BY check_in_date ASC`, campgroundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserScans(rows)
}

func scanUserScans(rows *sql.Rows) ([]UserScan, error) {
	var out []UserScan
	for rows.Next() {
		var u UserScan
		var notif int
		var expires sql.NullTime
		if err := rows.Scan(&u.ID, &u.UserID, &u.CampgroundID, &u.Provider, &u.CheckIn, &u.CheckOut,
			&u.Nights, &u.Status, &notif, &u.CreatedAt, &u.UpdatedAt, &expires); err != nil {
			return nil, err
		}
		u.NotificationSent = notif != 0
		if expires.Valid {
			t := expires.Time
			u.ExpiresAt = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeactivateScan cancels a scan owned by userID.
func (s *Store) DeactivateScan(ctx context.Context, id int64, userID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE user_scans SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		ScanCancelled, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("scan %d not found for user", id)
	}
	return nil
}

// MarkScanNotified sets the at-most-once latch. Per spec §4.8, this
// transitions false→true only and is never cleared by the core.
func (s *Store) MarkScanNotified(ctx context.Context, scanID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE user_scans SET notification_sent = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, scanID)
	return err
}

// ScanTarget identifies the campground a scan polls.
type ScanTarget struct {
	Provider     string
	CampgroundID string
}

// DeactivateExpiredScans marks scans whose check-out has passed as
// completed, mirroring the teacher's DeactivateExpiredRequests. It returns
// the distinct (provider, campground) pairs affected so the caller can
// recalculate polling_jobs.active_scan_count, the application-level
// aggregator spec §2 uses in place of a database trigger.
func (s *Store) DeactivateExpiredScans(ctx context.Context) ([]ScanTarget, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT provider, campground_id FROM user_scans
		WHERE status = 'active' AND date(check_out_date) < date('now')`)
	if err != nil {
		return nil, err
	}
	var targets []ScanTarget
	for rows.Next() {
		var t ScanTarget
		if err := rows.Scan(&t.Provider, &t.CampgroundID); err != nil {
			rows.Close()
			return nil, err
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if _, err := s.DB.ExecContext(ctx, `
		UPDATE user_scans SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status = 'active' AND date(check_out_date) < date('now')`, ScanCompleted); err != nil {
		return nil, err
	}
	return targets, nil
}

// User is the read-only projection the notifier reads, spec §3.
type User struct {
	ID            string
	Email         string
	Name          string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	NotifyEmail   bool
	NotifySms     bool
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, bool, error) {
	var u User
	var emailVerified, phoneVerified, notifyEmail, notifySms int
	var phone sql.NullString
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, name, phone, email_verified, phone_verified, notify_email, notify_sms
		FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Email, &u.Name, &phone, &emailVerified, &phoneVerified, &notifyEmail, &notifySms)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	u.Phone = phone.String
	u.EmailVerified = emailVerified != 0
	u.PhoneVerified = phoneVerified != 0
	u.NotifyEmail = notifyEmail != 0
	u.NotifySms = notifySms != 0
	return u, true, nil
}

// UpsertUserContact lets the CRUD collaborator (here, the bot) supply the
// contact details the notifier needs; the core never calls this itself.
func (s *Store) UpsertUserContact(ctx context.Context, u User) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, name, phone, email_verified, phone_verified, notify_email, notify_sms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email, name = excluded.name, phone = excluded.phone,
			email_verified = excluded.email_verified, phone_verified = excluded.phone_verified,
			notify_email = excluded.notify_email, notify_sms = excluded.notify_sms`,
		u.ID, u.Email, u.Name, u.Phone, boolToInt(u.EmailVerified), boolToInt(u.PhoneVerified),
		boolToInt(u.NotifyEmail), boolToInt(u.NotifySms))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
