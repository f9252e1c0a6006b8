// Package diffengine implements spec §4.5's pure previous-vs-current
// availability diff. Grounded on the teacher's
// internal/db/store.go UpsertCampsiteAvailabilityBatch state-change
// detection ("no prior entry, or prior was unavailable, means new"), lifted
// out of the DB transaction into a standalone pure function per
// original_source's executor_helpers.rs find_new_availability.
package diffengine

import "github.com/brensch/campwatch/internal/upstream"

// Diff returns the sites in current that are newly available relative to
// previous. previous is keyed by ISO-8601 date (YYYY-MM-DD) and holds the
// site list known as of the last successful poll for that date; missing
// dates are treated as "no prior data". Order of current.Sites is
// preserved in the result. Pure; no I/O.
func Diff(previous map[string][]upstream.SiteAvailability, current upstream.CampgroundAvailability) []upstream.SiteAvailability {
	var newSites []upstream.SiteAvailability
	for _, s := range current.Sites {
		if !s.Available {
			continue
		}
		dateKey := s.Date.Format("2006-01-02")
		priorForDate, ok := previous[dateKey]
		if !ok {
			newSites = append(newSites, s)
			continue
		}
		if !wasAvailable(priorForDate, s.SiteID) {
			newSites = append(newSites, s)
		}
	}
	return newSites
}

func wasAvailable(prior []upstream.SiteAvailability, siteID string) bool {
	for _, p := range prior {
		if p.SiteID == siteID && p.Available {
			return true
		}
	}
	return false
}
