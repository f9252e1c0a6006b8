// Package notifier implements spec §4.8: per-scan filtering, content
// composition, transport fan-out, NotificationRecord logging, and the
// at-most-once notification_sent latch. Grounded on the teacher's
// internal/manager/notifications.go notification-batching shape (one
// dispatch per affected scan, google/uuid batch id, BuildNotificationEmbed
// content assembly), generalized from the teacher's Discord-embed-only
// output to the email/SMS pair spec §4.9 names plus a bonus Discord
// transport, and adding the at-most-once latch the teacher has no concept
// of (it re-notifies on every state change).
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/transport"
	"github.com/brensch/campwatch/internal/upstream"
	"github.com/google/uuid"
)

const maxListedSites = 5

// Notifier fans out a campground's newly available sites to every eligible,
// not-yet-notified scan. Satisfies internal/engine.Notifier structurally.
type Notifier struct {
	store   *db.Store
	email   transport.EmailTransport
	sms     transport.SmsTransport
	discord transport.DiscordTransport
	logger  *slog.Logger
}

// discord is the bonus third channel (see DOMAIN STACK); a nil value
// disables it entirely, e.g. in tests or a deployment with no Discord bot.
func New(store *db.Store, email transport.EmailTransport, sms transport.SmsTransport, discord transport.DiscordTransport, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{store: store, email: email, sms: sms, discord: discord, logger: logger}
}

// Dispatch implements spec §4.8's per-(scan, new_sites) loop. Errors from
// individual scans are joined and returned to the caller for logging; one
// scan's failure never stops the others from being attempted.
func (n *Notifier) Dispatch(ctx context.Context, campgroundID, campgroundName string, scans []db.UserScan, newSites []upstream.SiteAvailability, snapshot upstream.CampgroundAvailability) error {
	batchID := uuid.NewString()
	snapshotAvailable := countAvailable(snapshot)
	var errs []error

	for _, scan := range scans {
		if scan.NotificationSent {
			continue
		}

		filtered := filterForScan(scan, newSites)
		if len(filtered) == 0 {
			continue
		}

		if err := n.dispatchScan(ctx, campgroundName, scan, filtered, snapshotAvailable); err != nil {
			n.logger.Error("scan notification failed",
				slog.String("batch_id", batchID), slog.Int64("scan_id", scan.ID), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("scan %d: %w", scan.ID, err))
		}
	}

	return errors.Join(errs...)
}

// filterForScan implements step 1: new_sites whose date falls within the
// scan's half-open [check_in, check_out) window.
func filterForScan(scan db.UserScan, newSites []upstream.SiteAvailability) []upstream.SiteAvailability {
	var out []upstream.SiteAvailability
	for _, s := range newSites {
		if !s.Date.Before(scan.CheckIn) && s.Date.Before(scan.CheckOut) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// dispatchScan implements steps 2-4 for one scan: compose content, send
// through every eligible transport in order, record each attempt, and set
// the at-most-once latch after the first success.
func (n *Notifier) dispatchScan(ctx context.Context, campgroundName string, scan db.UserScan, sites []upstream.SiteAvailability, snapshotAvailable int) error {
	user, ok, err := n.store.GetUser(ctx, scan.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s has no contact projection", scan.UserID)
	}

	details := marshalSites(sites)
	notifiedAny := false

	if user.NotifyEmail && user.EmailVerified && n.email != nil {
		subject, body := composeEmail(campgroundName, scan, sites)
		externalID, sendErr := n.email.SendEmail(transport.EmailMessage{To: user.Email, Subject: subject, Body: body})
		status := db.NotificationSent
		if sendErr != nil {
			status = db.NotificationFailed
		}
		if _, recErr := n.store.RecordNotification(ctx, db.NotificationRecord{
			UserID: scan.UserID, UserScanID: scan.ID, Type: "email", Recipient: user.Email,
			Subject: subject, Message: body, AvailabilityDetails: details, Status: status, ExternalID: externalID,
		}); recErr != nil {
			n.logger.Error("record email notification failed", slog.Any("err", recErr))
		}
		if sendErr != nil {
			// Email failed: per spec §4.8 step 4, abort the remaining
			// transports for this scan.
			return fmt.Errorf("send email: %w", sendErr)
		}
		notifiedAny = true
	}

	if user.NotifySms && user.PhoneVerified && user.Phone != "" && n.sms != nil {
		body := composeSMS(campgroundName, scan, snapshotAvailable)
		externalID, sendErr := n.sms.SendSMS(user.Phone, body)
		status := db.NotificationSent
		if sendErr != nil {
			status = db.NotificationFailed
		}
		if _, recErr := n.store.RecordNotification(ctx, db.NotificationRecord{
			UserID: scan.UserID, UserScanID: scan.ID, Type: "sms", Recipient: user.Phone,
			Message: body, AvailabilityDetails: details, Status: status, ExternalID: externalID,
		}); recErr != nil {
			n.logger.Error("record sms notification failed", slog.Any("err", recErr))
		}
		if sendErr != nil {
			if notifiedAny {
				// Email already succeeded; still latch notified even though
				// SMS failed, but surface the failure to the caller for
				// logging.
				if err := n.store.MarkScanNotified(ctx, scan.ID); err != nil {
					return fmt.Errorf("mark scan notified: %w", err)
				}
			}
			return fmt.Errorf("send sms: %w", sendErr)
		}
		notifiedAny = true
	}

	if n.discord != nil {
		body := composeSMS(campgroundName, scan, snapshotAvailable)
		externalID, sendErr := n.discord.SendDiscordDM(scan.UserID, body)
		status := db.NotificationSent
		if sendErr != nil {
			status = db.NotificationFailed
			n.logger.Warn("discord DM failed", slog.Int64("scan_id", scan.ID), slog.Any("err", sendErr))
		}
		if _, recErr := n.store.RecordNotification(ctx, db.NotificationRecord{
			UserID: scan.UserID, UserScanID: scan.ID, Type: "discord", Recipient: scan.UserID,
			Message: body, AvailabilityDetails: details, Status: status, ExternalID: externalID,
		}); recErr != nil {
			n.logger.Error("record discord notification failed", slog.Any("err", recErr))
		}
		if sendErr == nil {
			notifiedAny = true
		}
	}

	if notifiedAny {
		if err := n.store.MarkScanNotified(ctx, scan.ID); err != nil {
			return fmt.Errorf("mark scan notified: %w", err)
		}
	}
	return nil
}

func composeEmail(campgroundName string, scan db.UserScan, sites []upstream.SiteAvailability) (subject, body string) {
	subject = fmt.Sprintf("🏕️ Campsite Available: %s (%s - %s)",
		campgroundName, scan.CheckIn.Format("01/02"), scan.CheckOut.Format("01/02"))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s - %s (%d nights)\n\n",
		campgroundName, scan.CheckIn.Format("01/02/2006"), scan.CheckOut.Format("01/02/2006"), scan.Nights)

	shown := sites
	if len(shown) > maxListedSites {
		fmt.Fprintf(&b, "%d sites available (showing first 5):\n", len(sites))
		shown = shown[:maxListedSites]
	}
	for _, s := range shown {
		line := fmt.Sprintf("• %s on %s", siteLabel(s), s.Date.Format("01/02/2006"))
		if s.Price != nil {
			line += fmt.Sprintf(" ($%.2f)", *s.Price)
		}
		b.WriteString(line + "\n")
	}

	return subject, b.String()
}

// composeSMS implements spec §4.8 step 2's SMS template. Unlike the email
// body (which lists the sites newly available within this scan's window),
// N here is the count of every available=true site in the poll's snapshot,
// not just the ones filtered to this scan's date range.
func composeSMS(campgroundName string, scan db.UserScan, snapshotAvailable int) string {
	return fmt.Sprintf("🏕️ %d campsites available at %s for %s-%s! Check reservation site to book. -Campsite Tracker",
		snapshotAvailable, campgroundName, scan.CheckIn.Format("01/02"), scan.CheckOut.Format("01/02"))
}

func countAvailable(snapshot upstream.CampgroundAvailability) int {
	n := 0
	for _, s := range snapshot.Sites {
		if s.Available {
			n++
		}
	}
	return n
}

func siteLabel(s upstream.SiteAvailability) string {
	if s.SiteName != "" {
		return s.SiteName
	}
	return s.SiteID
}

func marshalSites(sites []upstream.SiteAvailability) string {
	var b strings.Builder
	b.WriteString("[")
	for i, s := range sites {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"site_id":%q,"date":%q,"available":%t}`, s.SiteID, s.Date.Format(time.RFC3339), s.Available)
	}
	b.WriteString("]")
	return b.String()
}
