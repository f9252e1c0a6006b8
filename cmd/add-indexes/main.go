package main

import (
	"log"
	"os"

	"github.com/brensch/campwatch/internal/db"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "campwatch.db"
	}

	store, err := db.Open(dbPath)
	if err != nil {
		log.Fatal("Failed to open store:", err)
	}
	defer store.Close()

	log.Println("Adding performance indexes...")

	// Supplemental indexes beyond schema.sql's defaults, for the scheduler's
	// due-job scan and the engine's notification/availability lookups.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_polling_jobs_provider ON polling_jobs(provider, next_poll_at)`,
		`CREATE INDEX IF NOT EXISTS idx_campground_availability_checked ON campground_availability(campground_id, last_checked)`,
		`CREATE INDEX IF NOT EXISTS idx_user_scans_notified ON user_scans(campground_id, notification_sent, status)`,
	}

	for _, indexSQL := range indexes {
		_, err = store.DB.Exec(indexSQL)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		} else {
			log.Printf("Created index: %s", indexSQL)
		}
	}

	log.Println("Index creation complete")
}
