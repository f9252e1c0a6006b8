// Package config centralizes environment-driven configuration for the scan
// engine and its ambient infrastructure, the same "read with os.Getenv, fall
// back to a default on empty or unparsable" pattern cmd/schniffer/main.go
// used for DB_PATH/GUILD_ID/WEB_ADDR.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every knob spec §6 names plus the ambient ones the teacher's
// main.go read inline (DB path, listen address, Discord credentials).
type Config struct {
	// Engine knobs (spec §6)
	MinAPIInterval        time.Duration
	MaxCallsPerHour        int
	PollCheckInterval      time.Duration
	DefaultPollFrequency   time.Duration
	MaxConsecutiveErrors   int
	ErrorBackoffDuration   time.Duration
	SessionValidationInterval time.Duration
	SessionMaxFailures     int
	UpstreamAPIKey         string
	UpstreamBaseURL        string
	ReserveCaliforniaBaseURL string

	// Ambient knobs
	DBPath           string
	WebAddr          string
	DiscordToken     string
	GuildID          string
	Prod             bool

	// Transport credentials
	SendGridAPIKey string
	EmailFrom      string
	SmsAPIBaseURL  string
	SmsAccountSID  string
	SmsAuthToken   string
	SmsFromNumber  string
}

// Load reads the process environment and fills in defaults for anything
// absent or unparsable, mirroring the teacher's inline os.Getenv style.
func Load() Config {
	return Config{
		MinAPIInterval:            durationEnv("MIN_API_INTERVAL", 5*time.Second),
		MaxCallsPerHour:           intEnv("MAX_CALLS_PER_HOUR", 1000),
		PollCheckInterval:         durationEnv("POLL_CHECK_INTERVAL", 30*time.Second),
		DefaultPollFrequency:      durationEnv("DEFAULT_POLL_FREQUENCY", 15*time.Minute),
		MaxConsecutiveErrors:      intEnv("MAX_CONSECUTIVE_ERRORS", 5),
		ErrorBackoffDuration:      durationEnv("ERROR_BACKOFF_DURATION", 1*time.Hour),
		SessionValidationInterval: durationEnv("SESSION_VALIDATION_INTERVAL", 30*time.Minute),
		SessionMaxFailures:        intEnv("SESSION_MAX_FAILURES", 3),
		UpstreamAPIKey:            os.Getenv("UPSTREAM_API_KEY"),
		UpstreamBaseURL:           stringEnv("UPSTREAM_BASE_URL", "https://www.recreation.gov"),
		ReserveCaliforniaBaseURL:  stringEnv("RESERVE_CALIFORNIA_BASE_URL", "https://calirdr.usedirect.com/RDR/rdr"),

		DBPath:       stringEnv("DB_PATH", "campwatch.db"),
		WebAddr:      stringEnv("WEB_ADDR", ":8080"),
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		GuildID:      os.Getenv("GUILD_ID"),
		Prod:         boolEnv("PROD", false),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:      stringEnv("EMAIL_FROM", "alerts@campwatch.example"),
		SmsAPIBaseURL:  stringEnv("SMS_API_BASE_URL", "https://api.twilio.com"),
		SmsAccountSID:  os.Getenv("SMS_ACCOUNT_SID"),
		SmsAuthToken:   os.Getenv("SMS_AUTH_TOKEN"),
		SmsFromNumber:  os.Getenv("SMS_FROM_NUMBER"),
	}
}

func stringEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
