package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDecodeStatus_TotalFunction(t *testing.T) {
	cases := []struct {
		status        string
		wantAvailable bool
		wantPrice     *float64
	}{
		{"Available", true, nil},
		{"Reserved", false, nil},
		{"Not Available", false, nil},
		{"Not Reservable", false, nil},
		{"Walk-up", false, nil},
		{"A", true, nil},
		{"R", false, nil},
		{"X", false, nil},
		{"W", false, nil},
		{"N", false, nil},
		{"$12.50", true, floatPtr(12.50)},
		{"$0", true, floatPtr(0)},
		{"totally-unrecognized", false, nil},
		{"", false, nil},
	}
	for _, c := range cases {
		gotAvail, gotPrice := decodeStatus(c.status)
		if gotAvail != c.wantAvailable {
			t.Errorf("decodeStatus(%q) available = %v, want %v", c.status, gotAvail, c.wantAvailable)
		}
		if (gotPrice == nil) != (c.wantPrice == nil) {
			t.Errorf("decodeStatus(%q) price nilness mismatch: got %v, want %v", c.status, gotPrice, c.wantPrice)
			continue
		}
		if gotPrice != nil && *gotPrice != *c.wantPrice {
			t.Errorf("decodeStatus(%q) price = %v, want %v", c.status, *gotPrice, *c.wantPrice)
		}
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestKindForStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		429: RateLimited,
		401: AuthenticationFailed,
		403: AuthenticationFailed,
		404: NotFound,
		500: ApiError,
		503: ApiError,
	}
	for status, want := range cases {
		if got := KindForStatus(status); got != want {
			t.Errorf("KindForStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

// TestFetchAvailability_MonthStraddle verifies spec §9's resolved open
// question: a window spanning two calendar months issues one anchored
// request per month and returns the union of both.
func TestFetchAvailability_MonthStraddle(t *testing.T) {
	var anchors []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/camps/availability/campground/G1/month", func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start_date")
		anchors = append(anchors, start)
		month := start[:7] // YYYY-MM
		resp := recGovResp{Campsites: map[string]struct {
			Name           string            `json:"site"`
			Availabilities map[string]string `json:"availabilities"`
			CampsiteType   string            `json:"campsite_type"`
			Loop           string            `json:"loop"`
		}{
			"site-" + month: {
				Name:           "Site " + month,
				Availabilities: map[string]string{month + "-15T00:00:00Z": "Available"},
			},
		}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rg := NewRecreationGov(srv.Client(), "", srv.URL)

	from := time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	out, err := rg.FetchAvailability(context.Background(), "G1", from, to)
	if err != nil {
		t.Fatalf("FetchAvailability: %v", err)
	}
	if len(anchors) != 2 {
		t.Fatalf("expected 2 month-anchored requests, got %d: %v", len(anchors), anchors)
	}
	if len(out.Sites) != 2 {
		t.Fatalf("expected sites from both months, got %d: %+v", len(out.Sites), out.Sites)
	}
}

func TestFetchMonthlyAvailability_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	rg := NewRecreationGov(srv.Client(), "", srv.URL)
	_, err := rg.FetchMonthlyAvailability(context.Background(), "G1", time.Now())
	if err == nil {
		t.Fatal("expected an error for a 429 response")
	}
	uerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *upstream.Error, got %T", err)
	}
	if uerr.Kind != RateLimited {
		t.Fatalf("expected RateLimited kind, got %v", uerr.Kind)
	}
}

func TestNewRecreationGov_DefaultsBaseURL(t *testing.T) {
	rg := NewRecreationGov(nil, "", "")
	if got := rg.CampgroundURL("G1"); got != "https://www.recreation.gov/camping/campgrounds/G1" {
		t.Fatalf("expected production host default, got %q", got)
	}
}

func TestPlanBuckets_GroupsByMonth(t *testing.T) {
	rg := NewRecreationGov(nil, "", "")
	dates := []time.Time{
		time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	buckets := rg.PlanBuckets(dates)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 month buckets, got %d: %+v", len(buckets), buckets)
	}
}

func TestPlanBuckets_Empty(t *testing.T) {
	rg := NewRecreationGov(nil, "", "")
	if got := rg.PlanBuckets(nil); got != nil {
		t.Fatalf("expected nil buckets for empty input, got %+v", got)
	}
}
