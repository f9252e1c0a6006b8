// Command campwatch runs the Scan Execution Engine end to end: the
// Scheduler/Worker pipeline, the Discord CRUD collaborator, and the web
// status endpoint, sharing one discordgo.Session and one *db.Store across
// all three, the same wiring shape as the teacher's cmd/schniffer/main.go.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/campwatch/internal/bot"
	"github.com/brensch/campwatch/internal/config"
	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/engine"
	"github.com/brensch/campwatch/internal/notifier"
	"github.com/brensch/campwatch/internal/ratelimit"
	"github.com/brensch/campwatch/internal/session"
	"github.com/brensch/campwatch/internal/transport"
	"github.com/brensch/campwatch/internal/upstream"
	"github.com/brensch/campwatch/internal/web"
	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	sess, err := session.New(cfg.UpstreamBaseURL, cfg.SessionValidationInterval, cfg.SessionMaxFailures, logger)
	if err != nil {
		logger.Error("create session manager failed", slog.Any("err", err))
		os.Exit(1)
	}

	governor := ratelimit.New(cfg.MaxCallsPerHour, cfg.MinAPIInterval)

	registry := upstream.NewRegistry()
	recGov := upstream.NewRecreationGov(sess.Client(), cfg.UpstreamAPIKey, cfg.UpstreamBaseURL)
	registry.Register(recGov)
	reserveCA := upstream.NewReserveCalifornia(sess.Client(), cfg.ReserveCaliforniaBaseURL)
	registry.Register(reserveCA)

	discordSession, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Error("create discord session failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := discordSession.Open(); err != nil {
		logger.Error("open discord session failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer discordSession.Close()

	emailTransport, smsTransport := buildTransports(cfg, logger)
	discordTransport := transport.NewDiscordTransport(discordSession)
	notif := notifier.New(store, emailTransport, smsTransport, discordTransport, logger)

	engineCfg := engine.DefaultConfig()
	engineCfg.PollCheckInterval = cfg.PollCheckInterval
	engineCfg.DefaultPollFrequency = cfg.DefaultPollFrequency
	engineCfg.MaxConsecutiveErrors = cfg.MaxConsecutiveErrors
	engineCfg.ErrorBackoffDuration = cfg.ErrorBackoffDuration

	eng := engine.New(store, registry, sess, governor, notif, engineCfg)
	eng.Sweep(ctx)
	go eng.Run(ctx)

	discordBot, err := bot.New(store, discordSession, registry, cfg.GuildID, !cfg.Prod, int(cfg.DefaultPollFrequency.Minutes()))
	if err != nil {
		logger.Error("create bot failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := discordBot.MountHandlers(); err != nil {
		logger.Error("mount bot handlers failed", slog.Any("err", err))
		os.Exit(1)
	}

	webServer := web.NewServer(cfg.WebAddr, store, eng, sess, governor, cfg.MaxConsecutiveErrors)
	go func() {
		if err := webServer.Run(ctx); err != nil {
			logger.Error("web server stopped", slog.Any("err", err))
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc("@every 6h", func() {
		syncCampgrounds(ctx, store, recGov, logger)
		syncCampgrounds(ctx, store, reserveCA, logger)
	}); err != nil {
		logger.Error("schedule campground sync failed", slog.Any("err", err))
	}
	if _, err := c.AddFunc("@daily", func() { deactivateExpired(ctx, store, cfg, logger) }); err != nil {
		logger.Error("schedule expired-scan cleanup failed", slog.Any("err", err))
	}
	c.Start()
	defer c.Stop()

	// Run an initial campground sync immediately so autocomplete has data
	// before the first 6-hour tick.
	go syncCampgrounds(ctx, store, recGov, logger)
	go syncCampgrounds(ctx, store, reserveCA, logger)

	logger.Info("campwatch running")
	<-ctx.Done()
	logger.Info("shutting down")
}

// buildTransports wires SendGrid/Twilio when credentials are present, the
// dev stub otherwise, per spec §4.9's "development stub ... or a
// cloud-provider adapter".
func buildTransports(cfg config.Config, logger *slog.Logger) (transport.EmailTransport, transport.SmsTransport) {
	var email transport.EmailTransport
	if cfg.SendGridAPIKey != "" {
		email = transport.NewSendGridTransport(cfg.SendGridAPIKey, "Campsite Tracker", cfg.EmailFrom)
	} else {
		logger.Warn("SENDGRID_API_KEY not set; using stub email transport")
		email = transport.NewStubTransport(logger)
	}

	var sms transport.SmsTransport
	if cfg.SmsAccountSID != "" && cfg.SmsAuthToken != "" {
		sms = transport.NewTwilioTransport(cfg.SmsAccountSID, cfg.SmsAuthToken, cfg.SmsFromNumber, cfg.SmsAPIBaseURL)
	} else {
		logger.Warn("SMS_ACCOUNT_SID/SMS_AUTH_TOKEN not set; using stub sms transport")
		sms = transport.NewStubTransport(logger)
	}
	return email, sms
}

// syncCampgrounds refreshes campground metadata for autocomplete and
// presentation, the supplemented ambient sync the teacher's
// RunCampgroundSync cron job performs.
func syncCampgrounds(ctx context.Context, store *db.Store, client upstream.Client, logger *slog.Logger) {
	started := time.Now()
	campgrounds, err := client.FetchAllCampgrounds(ctx)
	if err != nil {
		logger.Error("fetch all campgrounds failed", slog.Any("err", err))
		return
	}
	for _, cg := range campgrounds {
		if err := store.UpsertCampground(ctx, client.Name(), cg.ID, cg.Name, cg.Lat, cg.Lon, cg.Rating, cg.Amenities, cg.ImageURL); err != nil {
			logger.Warn("upsert campground failed", slog.String("campground", cg.ID), slog.Any("err", err))
		}
	}
	if err := store.RecordMetadataSync(ctx, db.MetadataSyncLog{
		SyncType: "campgrounds", Provider: client.Name(), StartedAt: started, FinishedAt: time.Now(), Count: len(campgrounds),
	}); err != nil {
		logger.Warn("record metadata sync failed", slog.Any("err", err))
	}
	logger.Info("campground sync complete", slog.Int("count", len(campgrounds)))
}

func deactivateExpired(ctx context.Context, store *db.Store, cfg config.Config, logger *slog.Logger) {
	targets, err := store.DeactivateExpiredScans(ctx)
	if err != nil {
		logger.Error("deactivate expired scans failed", slog.Any("err", err))
		return
	}
	if len(targets) == 0 {
		return
	}
	logger.Info("deactivated expired scans", slog.Int("campgrounds", len(targets)))
	defaultPollFrequencyMin := int(cfg.DefaultPollFrequency.Minutes())
	for _, t := range targets {
		if err := store.RecalculatePollingJob(ctx, t.Provider, t.CampgroundID, defaultPollFrequencyMin); err != nil {
			logger.Warn("recalculate polling job failed", slog.String("campground", t.CampgroundID), slog.Any("err", err))
		}
	}
}
