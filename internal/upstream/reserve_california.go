package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/httpx"
)

const defaultReserveCaliforniaBaseURL = "https://calirdr.usedirect.com/RDR/rdr"

// ReserveCalifornia is the Client implementation for the ReserveCalifornia
// UseDirect API, the second backend the teacher's internal/providers
// package carries alongside recreation.gov. Campground IDs are composite
// "parentPlaceID/facilityID" pairs, matching the teacher's ID scheme, since
// a bare facility ID is ambiguous across parks.
type ReserveCalifornia struct {
	client  *http.Client
	baseURL string
}

// NewReserveCalifornia takes the same session-scoped client argument as
// NewRecreationGov for symmetry, even though ReserveCalifornia's grid
// endpoint does not require a warmed session cookie the way recreation.gov
// does; baseURL is configurable for the same testability reason as
// NewRecreationGov's.
func NewReserveCalifornia(client *http.Client, baseURL string) *ReserveCalifornia {
	if client == nil {
		client = httpx.Default()
	}
	if baseURL == "" {
		baseURL = defaultReserveCaliforniaBaseURL
	}
	return &ReserveCalifornia{client: client, baseURL: baseURL}
}

func (r *ReserveCalifornia) Name() string { return "reserve_california" }

func splitCompositeID(campgroundID string) (parentID, facilityID string) {
	parts := strings.SplitN(campgroundID, "/", 2)
	if len(parts) != 2 {
		return "", campgroundID
	}
	return parts[0], parts[1]
}

func (r *ReserveCalifornia) CampsiteURL(campgroundID, _ string) string {
	return r.CampgroundURL(campgroundID)
}

func (r *ReserveCalifornia) CampgroundURL(campgroundID string) string {
	parentID, facilityID := splitCompositeID(campgroundID)
	if parentID == "" {
		return "https://reservecalifornia.com/"
	}
	return fmt.Sprintf("https://reservecalifornia.com/Web/#!park/%s/%s", parentID, facilityID)
}

// PlanBuckets collapses the requested dates to a single [min, max] range:
// the grid endpoint accepts an arbitrary date span per facility, unlike
// recreation.gov's month-anchored call.
func (r *ReserveCalifornia) PlanBuckets(dates []time.Time) []DateRange {
	if len(dates) == 0 {
		return nil
	}
	min := dates[0].UTC()
	min = time.Date(min.Year(), min.Month(), min.Day(), 0, 0, 0, 0, time.UTC)
	max := min
	for _, d := range dates[1:] {
		dd := d.UTC()
		dd = time.Date(dd.Year(), dd.Month(), dd.Day(), 0, 0, 0, 0, time.UTC)
		if dd.Before(min) {
			min = dd
		}
		if dd.After(max) {
			max = dd
		}
	}
	return []DateRange{{Start: min, End: max}}
}

type gridRequest struct {
	IsADA             bool   `json:"IsADA"`
	MinVehicleLength  int    `json:"MinVehicleLength"`
	UnitCategoryId    int    `json:"UnitCategoryId"`
	StartDate         string `json:"StartDate"`
	WebOnly           bool   `json:"WebOnly"`
	UnitTypesGroupIds []int  `json:"UnitTypesGroupIds"`
	SleepingUnitId    int    `json:"SleepingUnitId"`
	EndDate           string `json:"EndDate"`
	UnitSort          string `json:"UnitSort"`
	InSeasonOnly      bool   `json:"InSeasonOnly"`
	FacilityId        string `json:"FacilityId"`
	RestrictADA       bool   `json:"RestrictADA"`
}

type gridResponse struct {
	Facility struct {
		Units map[string]struct {
			UnitId int    `json:"UnitId"`
			Name   string `json:"Name"`
			Slices map[string]struct {
				Date      string `json:"Date"`
				IsFree    bool   `json:"IsFree"`
				IsBlocked bool   `json:"IsBlocked"`
			} `json:"Slices"`
		} `json:"Units"`
	} `json:"Facility"`
}

func (r *ReserveCalifornia) postGrid(ctx context.Context, facilityID string, start, end time.Time) (gridResponse, []byte, error) {
	payload := gridRequest{
		StartDate:         start.UTC().Format("2006-01-02"),
		WebOnly:           true,
		UnitTypesGroupIds: []int{},
		EndDate:           end.UTC().Format("2006-01-02"),
		UnitSort:          "orderby",
		InSeasonOnly:      true,
		FacilityId:        facilityID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return gridResponse{}, nil, &Error{Kind: DataFormat, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/search/grid", bytes.NewReader(body))
	if err != nil {
		return gridResponse{}, nil, &Error{Kind: Network, Err: err}
	}
	httpx.SpoofChromeHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://reservecalifornia.com")
	req.Header.Set("Referer", "https://reservecalifornia.com/")

	resp, err := r.client.Do(req)
	if err != nil {
		return gridResponse{}, nil, &Error{Kind: Network, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gridResponse{}, nil, &Error{Kind: Network, Err: fmt.Errorf("read grid body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return gridResponse{}, raw, &Error{
			Kind:   KindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Body:   clipBody(raw),
			Err:    fmt.Errorf("reservecalifornia grid status %d", resp.StatusCode),
		}
	}
	var parsed gridResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return gridResponse{}, raw, &Error{Kind: DataFormat, Body: clipBody(raw), Err: fmt.Errorf("decode grid: %w", err)}
	}
	return parsed, raw, nil
}

// FetchMonthlyAvailability anchors to the first and last day of the month
// containing monthAnchor, translating recreation.gov's month-window call
// into a single grid request spanning that same window.
func (r *ReserveCalifornia) FetchMonthlyAvailability(ctx context.Context, campgroundID string, monthAnchor time.Time) (CampgroundAvailability, error) {
	start := time.Date(monthAnchor.Year(), monthAnchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return r.fetchGridRange(ctx, campgroundID, start, end)
}

// FetchAvailability issues a single grid request across [from, to), since
// ReserveCalifornia's grid endpoint accepts an arbitrary date span per
// facility rather than requiring recreation.gov's per-month anchoring.
func (r *ReserveCalifornia) FetchAvailability(ctx context.Context, campgroundID string, from, to time.Time) (CampgroundAvailability, error) {
	return r.fetchGridRange(ctx, campgroundID, from, to)
}

func (r *ReserveCalifornia) fetchGridRange(ctx context.Context, campgroundID string, from, to time.Time) (CampgroundAvailability, error) {
	if campgroundID == "" {
		return CampgroundAvailability{}, &Error{Kind: DataFormat, Err: fmt.Errorf("campground id required")}
	}
	_, facilityID := splitCompositeID(campgroundID)

	parsed, raw, err := r.postGrid(ctx, facilityID, from, to)
	if err != nil {
		return CampgroundAvailability{}, err
	}

	out := CampgroundAvailability{CampgroundID: campgroundID}
	for unitKey, u := range parsed.Facility.Units {
		siteID := strconv.Itoa(u.UnitId)
		if siteID == "0" {
			siteID = unitKey
		}
		name := u.Name
		if name == "" {
			name = siteID
		}
		for _, s := range u.Slices {
			d, derr := time.Parse("2006-01-02", s.Date)
			if derr != nil {
				continue
			}
			out.Sites = append(out.Sites, SiteAvailability{
				SiteID:    siteID,
				SiteName:  name,
				Date:      d,
				Available: s.IsFree && !s.IsBlocked,
			})
		}
	}
	_ = raw
	return out, nil
}

// SearchFacilities and GetFacility have no dedicated ReserveCalifornia
// endpoint the way recreation.gov's /api/v1/facilities does; both are
// served by filtering FetchAllCampgrounds, the same place/facility crawl
// ReserveCalifornia already needs for metadata sync.
func (r *ReserveCalifornia) SearchFacilities(ctx context.Context, query, state, _ string) ([]Facility, error) {
	all, err := r.FetchAllCampgrounds(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Facility
	for _, c := range all {
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) {
			continue
		}
		out = append(out, Facility{ID: c.ID, Name: c.Name, Lat: c.Lat, Lon: c.Lon, State: state})
	}
	return out, nil
}

func (r *ReserveCalifornia) GetFacility(ctx context.Context, id string) (Facility, error) {
	all, err := r.FetchAllCampgrounds(ctx)
	if err != nil {
		return Facility{}, err
	}
	for _, c := range all {
		if c.ID == id {
			return Facility{ID: c.ID, Name: c.Name, Lat: c.Lat, Lon: c.Lon}, nil
		}
	}
	return Facility{}, &Error{Kind: NotFound, Err: fmt.Errorf("facility %q not found", id)}
}

type cityParkEntry struct {
	CityParkId int     `json:"CityParkId"`
	Name       string  `json:"Name"`
	Latitude   float64 `json:"Latitude"`
	Longitude  float64 `json:"Longitude"`
	PlaceId    int     `json:"PlaceId"`
	IsActive   bool    `json:"IsActive"`
}

type placeResponse struct {
	SelectedPlace struct {
		PlaceId       int     `json:"PlaceId"`
		Name          string  `json:"Name"`
		Latitude      float64 `json:"Latitude"`
		Longitude     float64 `json:"Longitude"`
		ImageUrl      string  `json:"ImageUrl"`
		Allhighlights string  `json:"Allhighlights"`
		Facilities    map[string]struct {
			FacilityId    int     `json:"FacilityId"`
			Name          string  `json:"Name"`
			Latitude      float64 `json:"Latitude"`
			Longitude     float64 `json:"Longitude"`
			Category      string  `json:"Category"`
			Allhighlights string  `json:"Allhighlights"`
		} `json:"Facilities"`
	} `json:"SelectedPlace"`
}

// FetchAllCampgrounds crawls the city-park -> place -> facility hierarchy,
// kept from the teacher near-verbatim: enumerate parks, fetch each park's
// facilities, keep the ones categorized as campgrounds, and key them by the
// composite "parentPlaceID/facilityID" ID the rest of this client expects.
func (r *ReserveCalifornia) FetchAllCampgrounds(ctx context.Context) ([]CampgroundInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/fd/citypark", nil)
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
		return nil, &Error{Kind: KindForStatus(resp.StatusCode), Status: resp.StatusCode, Body: clipBody(body), Err: fmt.Errorf("citypark status %d", resp.StatusCode)}
	}
	var parks map[string]cityParkEntry
	if err := json.Unmarshal(body, &parks); err != nil {
		return nil, &Error{Kind: DataFormat, Body: clipBody(body), Err: err}
	}

	var out []CampgroundInfo
	for _, p := range parks {
		if !p.IsActive || p.PlaceId == 0 {
			continue
		}
		pr, _ := json.Marshal(map[string]string{"PlaceId": strconv.Itoa(p.PlaceId)})
		req2, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/search/place", bytes.NewReader(pr))
		if err != nil {
			continue
		}
		httpx.SpoofChromeHeaders(req2)
		req2.Header.Set("Content-Type", "application/json")
		req2.Header.Set("Origin", "https://reservecalifornia.com")
		req2.Header.Set("Referer", "https://reservecalifornia.com/")

		resp2, err := r.client.Do(req2)
		if err != nil {
			continue
		}
		body2, rerr := io.ReadAll(resp2.Body)
		resp2.Body.Close()
		if rerr != nil || resp2.StatusCode != http.StatusOK {
			continue
		}
		var place placeResponse
		if err := json.Unmarshal(body2, &place); err != nil {
			continue
		}

		parentID := strconv.Itoa(place.SelectedPlace.PlaceId)
		parentName := place.SelectedPlace.Name
		for _, f := range place.SelectedPlace.Facilities {
			if !strings.Contains(strings.ToLower(f.Category), "campground") {
				continue
			}
			highlights := f.Allhighlights
			if highlights == "" {
				highlights = place.SelectedPlace.Allhighlights
			}
			amenities := map[string]string{}
			for _, h := range strings.Split(highlights, "<br>") {
				h = strings.ToLower(strings.TrimSpace(h))
				if h != "" {
					amenities[h] = "true"
				}
			}
			lat, lon := f.Latitude, f.Longitude
			if lat == 0 && lon == 0 {
				lat, lon = place.SelectedPlace.Latitude, place.SelectedPlace.Longitude
			}
			out = append(out, CampgroundInfo{
				ID:        parentID + "/" + strconv.Itoa(f.FacilityId),
				Name:      parentName + ": " + f.Name,
				Lat:       lat,
				Lon:       lon,
				Amenities: amenities,
				ImageURL:  place.SelectedPlace.ImageUrl,
			})
		}
	}
	return out, nil
}
