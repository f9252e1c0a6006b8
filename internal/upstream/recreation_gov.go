package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/httpx"
)

const defaultRecGovBaseURL = "https://www.recreation.gov"

// RecreationGov is the Client implementation for recreation.gov, matching
// spec §6's External Interfaces table exactly. Keeps the teacher's HTTP call
// shape (httpx.SpoofChromeHeaders per request, clipBody for error logging,
// month-anchor loop) and extends its status decode from a bare
// `status == "Available"` check to the full table in spec §4.1, grounded on
// original_source/.../rec_gov_client.rs.
type RecreationGov struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewRecreationGov takes the session-scoped HTTP client (internal/session's
// cookie-jar-bearing client, or httpx.Default() if the caller has no session
// manager) so cookies warmed by the session survive across calls. baseURL is
// spec §6's configurable upstream host (config.UpstreamBaseURL); an empty
// string falls back to the production host.
func NewRecreationGov(client *http.Client, apiKey, baseURL string) *RecreationGov {
	if client == nil {
		client = httpx.Default()
	}
	if baseURL == "" {
		baseURL = defaultRecGovBaseURL
	}
	return &RecreationGov{client: client, apiKey: apiKey, baseURL: baseURL}
}

func (r *RecreationGov) Name() string { return "recreation_gov" }

func (r *RecreationGov) CampsiteURL(_ string, siteID string) string {
	if siteID == "" {
		return ""
	}
	return r.baseURL + "/camping/campsites/" + siteID
}

func (r *RecreationGov) CampgroundURL(campgroundID string) string {
	if campgroundID == "" {
		return ""
	}
	return r.baseURL + "/camping/campgrounds/" + campgroundID
}

// recGovResp mirrors the monthly-availability response: campsite id ->
// {availabilities: date -> status string, campsite_type, loop}.
type recGovResp struct {
	Campsites map[string]struct {
		Name           string            `json:"site"`
		Availabilities map[string]string `json:"availabilities"`
		CampsiteType   string            `json:"campsite_type"`
		Loop           string            `json:"loop"`
	} `json:"campsites"`
}

// decodeStatus implements spec §4.1's status decode table: a total function,
// every input status yields a defined (available, price) pair.
func decodeStatus(status string) (available bool, price *float64) {
	switch status {
	case "Available", "A":
		return true, nil
	case "Reserved", "Not Available", "Not Reservable", "Walk-up", "R", "X", "W", "N":
		return false, nil
	}
	if strings.HasPrefix(status, "$") {
		if v, err := strconv.ParseFloat(strings.TrimPrefix(status, "$"), 64); err == nil {
			return true, &v
		}
	}
	return false, nil
}

// FetchMonthlyAvailability issues the single anchored call spec §4.1 names:
// the endpoint takes the first day of the month containing monthAnchor.
func (r *RecreationGov) FetchMonthlyAvailability(ctx context.Context, campgroundID string, monthAnchor time.Time) (CampgroundAvailability, error) {
	anchor := time.Date(monthAnchor.Year(), monthAnchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	base := fmt.Sprintf("%s/api/camps/availability/campground/%s/month", r.baseURL, campgroundID)
	u, err := url.Parse(base)
	if err != nil {
		return CampgroundAvailability{}, &Error{Kind: DataFormat, Err: fmt.Errorf("invalid base url: %w", err)}
	}
	q := u.Query()
	q.Set("start_date", anchor.UTC().Format("2006-01-02T15:04:05.000Z"))
	if r.apiKey != "" {
		q.Set("apikey", r.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return CampgroundAvailability{}, &Error{Kind: Network, Err: err}
	}
	httpx.SpoofChromeHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return CampgroundAvailability{}, &Error{Kind: Network, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CampgroundAvailability{}, &Error{Kind: Network, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return CampgroundAvailability{}, &Error{
			Kind:   KindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Body:   clipBody(body),
			Err:    fmt.Errorf("recreation.gov availability status %d", resp.StatusCode),
		}
	}

	var parsed recGovResp
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CampgroundAvailability{}, &Error{Kind: DataFormat, Body: clipBody(body), Err: fmt.Errorf("decode availability: %w", err)}
	}

	out := CampgroundAvailability{CampgroundID: campgroundID}
	for siteID, data := range parsed.Campsites {
		for dateStr, status := range data.Availabilities {
			d, err := time.Parse(time.RFC3339, dateStr)
			if err != nil {
				slog.Warn("bad date from recreation.gov", slog.String("date", dateStr))
				continue
			}
			available, price := decodeStatus(status)
			name := data.Name
			if name == "" {
				name = siteID
			}
			out.Sites = append(out.Sites, SiteAvailability{
				SiteID:    siteID,
				SiteName:  name,
				Date:      d,
				Available: available,
				Price:     price,
			})
		}
	}
	return out, nil
}

// FetchAvailability covers [from, to) with one month-anchored request per
// calendar month spanned, per spec §9's monthly-window open question:
// resolved in favor of the two-(or-more)-call fix, since the teacher's loop
// already issues one anchor per month rather than a single anchor for the
// whole window.
func (r *RecreationGov) FetchAvailability(ctx context.Context, campgroundID string, from, to time.Time) (CampgroundAvailability, error) {
	out := CampgroundAvailability{CampgroundID: campgroundID}
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	endMonth := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(endMonth) {
		month, err := r.FetchMonthlyAvailability(ctx, campgroundID, cur)
		if err != nil {
			return CampgroundAvailability{}, err
		}
		out.Sites = append(out.Sites, month.Sites...)
		cur = cur.AddDate(0, 1, 0)
	}
	return out, nil
}

// PlanBuckets groups requested dates by calendar month, one DateRange per
// month spanning its first to last day.
func (r *RecreationGov) PlanBuckets(dates []time.Time) []DateRange {
	if len(dates) == 0 {
		return nil
	}
	seen := map[time.Time]struct{}{}
	for _, d := range dates {
		d = d.UTC()
		m := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		seen[m] = struct{}{}
	}
	out := make([]DateRange, 0, len(seen))
	for m := range seen {
		out = append(out, DateRange{Start: m, End: m.AddDate(0, 1, -1)})
	}
	return out
}

// SearchFacilities is the supplemented search_facilities operation from
// spec §4.1 / §6. The bot's campground autocomplete does not call it; it
// reads the stored campgrounds table filled by FetchAllCampgrounds.
func (r *RecreationGov) SearchFacilities(ctx context.Context, query, state, activity string) ([]Facility, error) {
	u, _ := url.Parse(r.baseURL + "/api/v1/facilities")
	q := u.Query()
	q.Set("limit", "50")
	q.Set("offset", "0")
	q.Set("query", query)
	if state != "" {
		q.Set("state", state)
	}
	if activity != "" {
		q.Set("activity", activity)
	}
	if r.apiKey != "" {
		q.Set("apikey", r.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: Network, Err: err}
	}
	httpx.SpoofChromeHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: Network, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: Network, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindForStatus(resp.StatusCode), Status: resp.StatusCode, Body: clipBody(body), Err: fmt.Errorf("facilities search status %d", resp.StatusCode)}
	}

	var parsed struct {
		RECDATA []struct {
			FacilityID   string `json:"FacilityID"`
			FacilityName string `json:"FacilityName"`
			FacilityLatitude  float64 `json:"FacilityLatitude"`
			FacilityLongitude float64 `json:"FacilityLongitude"`
		} `json:"RECDATA"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Kind: DataFormat, Body: clipBody(body), Err: err}
	}
	out := make([]Facility, 0, len(parsed.RECDATA))
	for _, f := range parsed.RECDATA {
		out = append(out, Facility{ID: f.FacilityID, Name: f.FacilityName, Lat: f.FacilityLatitude, Lon: f.FacilityLongitude})
	}
	return out, nil
}

// GetFacility is the supplemented get_facility operation from spec §4.1.
func (r *RecreationGov) GetFacility(ctx context.Context, id string) (Facility, error) {
	u := fmt.Sprintf("%s/api/v1/facilities/%s", r.baseURL, id)
	if r.apiKey != "" {
		u += "?apikey=" + r.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Facility{}, &Error{Kind: Network, Err: err}
	}
	httpx.SpoofChromeHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return Facility{}, &Error{Kind: Network, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Facility{}, &Error{Kind: Network, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Facility{}, &Error{Kind: KindForStatus(resp.StatusCode), Status: resp.StatusCode, Body: clipBody(body), Err: fmt.Errorf("facility detail status %d", resp.StatusCode)}
	}

	var parsed struct {
		RECDATA struct {
			FacilityID        string  `json:"FacilityID"`
			FacilityName       string `json:"FacilityName"`
			FacilityLatitude  float64 `json:"FacilityLatitude"`
			FacilityLongitude float64 `json:"FacilityLongitude"`
		} `json:"RECDATA"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Facility{}, &Error{Kind: DataFormat, Body: clipBody(body), Err: err}
	}
	return Facility{
		ID:   parsed.RECDATA.FacilityID,
		Name: parsed.RECDATA.FacilityName,
		Lat:  parsed.RECDATA.FacilityLatitude,
		Lon:  parsed.RECDATA.FacilityLongitude,
	}, nil
}

// FetchAllCampgrounds pages through the search API, kept from the teacher
// near-verbatim (it's already exactly spec-shaped: page until a short page).
func (r *RecreationGov) FetchAllCampgrounds(ctx context.Context) ([]CampgroundInfo, error) {
	start := 0
	size := 100
	var all []CampgroundInfo

	for {
		endpoint := fmt.Sprintf("%s/api/search?fq=entity_type%%3Acampground&size=%d&start=%d", r.baseURL, size, start)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, &Error{Kind: Network, Err: err}
		}
		httpx.SpoofChromeHeaders(req)
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, &Error{Kind: Network, Err: err}
		}
		body, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if rerr != nil {
			return nil, &Error{Kind: Network, Err: rerr}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &Error{Kind: KindForStatus(resp.StatusCode), Status: resp.StatusCode, Body: clipBody(body), Err: fmt.Errorf("search status %d", resp.StatusCode)}
		}

		var page struct {
			Results []struct {
				Name          string  `json:"name"`
				EntityID      string  `json:"entity_id"`
				Latitude      string  `json:"latitude"`
				Longitude     string  `json:"longitude"`
				ParentName    string  `json:"parent_name"`
				Reservable    bool    `json:"reservable"`
				AverageRating float64 `json:"average_rating"`
				Activities    []struct {
					ActivityName string `json:"activity_name"`
				} `json:"activities"`
				PreviewImageURL string `json:"preview_image_url"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &Error{Kind: DataFormat, Body: clipBody(body), Err: err}
		}

		for _, result := range page.Results {
			if !result.Reservable {
				continue
			}
			var lat, lon float64
			if v, err := strconv.ParseFloat(result.Latitude, 64); err == nil {
				lat = v
			}
			if v, err := strconv.ParseFloat(result.Longitude, 64); err == nil {
				lon = v
			}
			name := result.Name
			if result.ParentName != "" {
				name = result.ParentName + ": " + result.Name
			}
			amenities := map[string]string{}
			for _, a := range result.Activities {
				amenities[strings.ToLower(a.ActivityName)] = "true"
			}
			all = append(all, CampgroundInfo{
				ID:        result.EntityID,
				Name:      name,
				Lat:       lat,
				Lon:       lon,
				Rating:    result.AverageRating,
				Amenities: amenities,
				ImageURL:  result.PreviewImageURL,
			})
		}

		if len(page.Results) < size || len(page.Results) == 0 {
			break
		}
		start += len(page.Results)
	}
	return all, nil
}

// clipBody returns a short string version of a response body for error
// messages, bounded to avoid logging huge payloads.
func clipBody(b []byte) string {
	const max = 2048
	if len(b) == 0 {
		return ""
	}
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
