package db

import (
	"context"
	"time"
)

// Notification statuses, spec §3's NotificationRecord.
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// NotificationRecord is the append-only per-send log spec §3 describes:
// every attempt is logged, including repeats after a partial failure, so the
// at-most-once guarantee lives on user_scans.notification_sent instead of
// here.
type NotificationRecord struct {
	ID                  int64
	UserID              string
	UserScanID           int64
	Type                string
	Recipient           string
	Subject             string
	Message             string
	AvailabilityDetails string
	Status              string
	SentAt              *time.Time
	ExternalID          string
	CreatedAt           time.Time
}

// RecordNotification inserts one NotificationRecord row, called once per
// transport attempt regardless of outcome.
func (s *Store) RecordNotification(ctx context.Context, n NotificationRecord) (int64, error) {
	var sentAt *time.Time
	if n.Status == NotificationSent {
		now := time.Now()
		sentAt = &now
	}
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO notifications (user_id, user_scan_id, type, recipient, subject, message, availability_details, status, sent_at, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.UserScanID, n.Type, n.Recipient, n.Subject, n.Message, n.AvailabilityDetails, n.Status, sentAt, n.ExternalID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotificationsForScan supports the web status endpoint and tests:
// every dispatch attempt recorded for one scan, newest first.
func (s *Store) ListNotificationsForScan(ctx context.Context, userScanID int64) ([]NotificationRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, user_scan_id, type, recipient, coalesce(subject, ''), message,
		       coalesce(availability_details, ''), status, sent_at, coalesce(external_id, ''), created_at
		FROM notifications WHERE user_scan_id = ? ORDER BY created_at DESC`, userScanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationRecord
	for rows.Next() {
		var n NotificationRecord
		var sentAt *time.Time
		if err := rows.Scan(&n.ID, &n.UserID, &n.UserScanID, &n.Type, &n.Recipient, &n.Subject, &n.Message,
			&n.AvailabilityDetails, &n.Status, &sentAt, &n.ExternalID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.SentAt = sentAt
		out = append(out, n)
	}
	return out, rows.Err()
}
