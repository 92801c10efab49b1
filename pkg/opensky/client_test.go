package opensky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

const statesBody = `{
	"time": 1700000000,
	"states": [
		["abc123", " KLM123 ", "Netherlands", 1700000000, 1700000000, 4.9, 52.3, 1000, false, 200, 90, null, null, null, null, null, 0]
	]
}`

// countingServer wraps httptest.NewServer with a request counter, so tests can
// verify that argument validation happens before any network I/O.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// TestNewClient tests client construction defaults.
func TestNewClient(t *testing.T) {
	client := NewClient(Config{})

	if client.baseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %s", client.baseURL)
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.httpClient.Timeout)
	}
	if client.decoder.ObservationLag != DefaultObservationLag {
		t.Errorf("Expected default observation lag, got %v", client.decoder.ObservationLag)
	}
	if client.rateLimit != nil {
		t.Error("Expected nil rate limit state before first request")
	}
}

// TestFetchStates tests state vector retrieval.
func TestFetchStates(t *testing.T) {
	t.Run("Successful request", func(t *testing.T) {
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/states/all" {
				t.Errorf("Expected path /states/all, got %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("time") != "0" {
				t.Errorf("Expected time=0 for latest, got %q", q.Get("time"))
			}
			if _, ok := q["icao24"]; !ok {
				t.Error("Expected icao24 parameter to be present")
			}
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		snap, err := client.FetchStates(context.Background(), StatesRequest{})

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if snap.Len() != 1 {
			t.Fatalf("Expected 1 state, got %d", snap.Len())
		}
		sv, ok := snap.States["abc123"]
		if !ok {
			t.Fatal("Expected abc123 in snapshot")
		}
		if sv.Callsign != "KLM123" {
			t.Errorf("Expected callsign KLM123, got %q", sv.Callsign)
		}
		if calls.Load() != 1 {
			t.Errorf("Expected 1 request, got %d", calls.Load())
		}
	})

	t.Run("At time and ICAO24 filter forwarded", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("time") != "1700000000" {
				t.Errorf("Expected time=1700000000, got %q", q.Get("time"))
			}
			if q.Get("icao24") != "abc123" {
				t.Errorf("Expected icao24=abc123, got %q", q.Get("icao24"))
			}
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.FetchStates(context.Background(), StatesRequest{
			At:     time.Unix(1700000000, 0),
			ICAO24: "abc123",
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("Bounding box forwarded", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("lamin") != "45.8389" || q.Get("lamax") != "47.8229" {
				t.Errorf("Unexpected latitude bounds: %s / %s", q.Get("lamin"), q.Get("lamax"))
			}
			if q.Get("lomin") != "5.9962" || q.Get("lomax") != "10.5226" {
				t.Errorf("Unexpected longitude bounds: %s / %s", q.Get("lomin"), q.Get("lomax"))
			}
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.FetchStates(context.Background(), StatesRequest{
			Bounds: &BoundingBox{MinLat: 45.8389, MaxLat: 47.8229, MinLon: 5.9962, MaxLon: 10.5226},
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("Invalid bounding box fails before any network call", func(t *testing.T) {
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(statesBody))
		})
		client := NewClient(Config{BaseURL: server.URL})

		boxes := []BoundingBox{
			{MinLat: -91, MaxLat: 45, MinLon: 0, MaxLon: 10},
			{MinLat: 0, MaxLat: 90.5, MinLon: 0, MaxLon: 10},
			{MinLat: 0, MaxLat: 45, MinLon: -181, MaxLon: 10},
			{MinLat: 0, MaxLat: 45, MinLon: 0, MaxLon: 200},
		}
		for _, box := range boxes {
			_, err := client.FetchStates(context.Background(), StatesRequest{Bounds: &box})
			if _, ok := IsInvalidArgument(err); !ok {
				t.Errorf("Expected InvalidArgumentError for box %+v, got %v", box, err)
			}
		}
		if calls.Load() != 0 {
			t.Errorf("Expected no requests for invalid boxes, got %d", calls.Load())
		}
	})

	t.Run("Basic credentials attached when configured", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "observer" || pass != "hunter2" {
				t.Errorf("Expected basic auth observer/hunter2, got %s/%s (%v)", user, pass, ok)
			}
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL, Username: "observer", Password: "hunter2"})
		if _, err := client.FetchStates(context.Background(), StatesRequest{}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("Anonymous requests carry no credentials", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if _, _, ok := r.BasicAuth(); ok {
				t.Error("Expected no basic auth header")
			}
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		if _, err := client.FetchStates(context.Background(), StatesRequest{}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("Unparseable 200 body yields empty snapshot", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"time": null, "states": null`))
		})

		client := NewClient(Config{BaseURL: server.URL})
		snap, err := client.FetchStates(context.Background(), StatesRequest{})

		if err != nil {
			t.Fatalf("Expected no error for unparseable body, got: %v", err)
		}
		if snap.Len() != 0 {
			t.Errorf("Expected empty snapshot, got %d states", snap.Len())
		}
	})
}

// TestErrorTaxonomy tests the mapping of failures onto typed errors.
func TestErrorTaxonomy(t *testing.T) {
	t.Run("429 raises RateLimited without retrying", func(t *testing.T) {
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Rate-Limit-Retry-After-Seconds", "42")
			w.Header().Set("X-Rate-Limit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.FetchStates(context.Background(), StatesRequest{})

		rle, ok := IsRateLimited(err)
		if !ok {
			t.Fatalf("Expected RateLimitError, got %v", err)
		}
		if rle.RetryAfterSeconds != 42 {
			t.Errorf("Expected retry after 42s, got %d", rle.RetryAfterSeconds)
		}
		if calls.Load() != 1 {
			t.Errorf("Expected exactly 1 request (no retry), got %d", calls.Load())
		}

		// Rate limit state updated from the failed attempt
		state, err := client.RateLimit(context.Background())
		if err != nil {
			t.Fatalf("Expected cached state, got error: %v", err)
		}
		if state.RetryAfterSeconds == nil || *state.RetryAfterSeconds != 42 {
			t.Errorf("Expected retry-after 42 in state, got %v", state.RetryAfterSeconds)
		}
		if state.RemainingRequests == nil || *state.RemainingRequests != 0 {
			t.Errorf("Expected remaining 0 in state, got %v", state.RemainingRequests)
		}
		if calls.Load() != 1 {
			t.Errorf("Expected RateLimit to reuse cached state, got %d calls", calls.Load())
		}
	})

	t.Run("Non-200 raises UpstreamError with status", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.FetchStates(context.Background(), StatesRequest{})

		ue, ok := IsUpstream(err)
		if !ok {
			t.Fatalf("Expected UpstreamError, got %v", err)
		}
		if ue.StatusCode != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", ue.StatusCode)
		}
		if ue.Status == "" {
			t.Error("Expected non-empty status line")
		}
	})

	t.Run("Connection failure raises TransportError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // refuse connections

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.FetchStates(context.Background(), StatesRequest{})

		te, ok := IsTransport(err)
		if !ok {
			t.Fatalf("Expected TransportError, got %v", err)
		}
		if te.Unwrap() == nil {
			t.Error("Expected wrapped cause")
		}
	})
}

// TestFetchFlights tests flight interval queries.
func TestFetchFlights(t *testing.T) {
	flightsBody := `[
		{"icao24": "aaa", "callsign": "ONE", "firstSeen": 100, "lastSeen": 300},
		{"icao24": "bbb", "callsign": "TWO", "firstSeen": 50, "lastSeen": 100}
	]`

	t.Run("Interval over 2 hours fails before any network call", func(t *testing.T) {
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(flightsBody))
		})
		client := NewClient(Config{BaseURL: server.URL})

		begin := time.Unix(1700000000, 0)
		end := begin.Add(2*time.Hour + time.Second)
		_, err := client.FetchFlights(context.Background(), begin, end)

		if _, ok := IsInvalidArgument(err); !ok {
			t.Fatalf("Expected InvalidArgumentError, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("Expected no requests, got %d", calls.Load())
		}
	})

	t.Run("Explicit interval forwarded and results sorted", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/flights/all" {
				t.Errorf("Expected path /flights/all, got %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("begin") != "1700000000" || q.Get("end") != "1700003600" {
				t.Errorf("Unexpected interval: begin=%s end=%s", q.Get("begin"), q.Get("end"))
			}
			w.Write([]byte(flightsBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		begin := time.Unix(1700000000, 0)
		records, err := client.FetchFlights(context.Background(), begin, begin.Add(time.Hour))

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].ICAO24 != "bbb" || records[1].ICAO24 != "aaa" {
			t.Errorf("Expected ascending lastSeen order, got %s then %s",
				records[0].ICAO24, records[1].ICAO24)
		}
	})

	t.Run("Zero interval defaults to trailing 24 hours", func(t *testing.T) {
		now := time.Unix(1700086400, 0)
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("end") != "1700086400" {
				t.Errorf("Expected end=now, got %s", q.Get("end"))
			}
			if q.Get("begin") != "1700000000" {
				t.Errorf("Expected begin=now-24h, got %s", q.Get("begin"))
			}
			w.Write([]byte(flightsBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		client.now = func() time.Time { return now }

		if _, err := client.FetchFlights(context.Background(), time.Time{}, time.Time{}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("By-aircraft query forwards icao24", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/flights/aircraft" {
				t.Errorf("Expected path /flights/aircraft, got %s", r.URL.Path)
			}
			if r.URL.Query().Get("icao24") != "abc123" {
				t.Errorf("Expected icao24=abc123, got %s", r.URL.Query().Get("icao24"))
			}
			w.Write([]byte(flightsBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		begin := time.Unix(1700000000, 0)
		if _, err := client.FetchFlightsByAircraft(context.Background(), "abc123", begin, begin.Add(time.Hour)); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})
}

// TestFetchArrivalsDepartures tests airport queries and callsign filtering.
func TestFetchArrivalsDepartures(t *testing.T) {
	mixedBody := `[
		{"icao24": "aaa", "callsign": "KLM123", "firstSeen": 100, "lastSeen": 200, "estArrivalAirport": "EHAM"},
		{"icao24": "bbb", "callsign": "  ", "firstSeen": 100, "lastSeen": 150},
		{"icao24": "ccc", "callsign": null, "firstSeen": 100, "lastSeen": 120}
	]`

	t.Run("Arrivals filter blank callsigns", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/flights/arrival" {
				t.Errorf("Expected path /flights/arrival, got %s", r.URL.Path)
			}
			if r.URL.Query().Get("airport") != "EHAM" {
				t.Errorf("Expected airport=EHAM, got %s", r.URL.Query().Get("airport"))
			}
			w.Write([]byte(mixedBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		records, err := client.FetchArrivals(context.Background(), "EHAM", time.Time{}, time.Time{})

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record with callsign, got %d", len(records))
		}
		if records[0].Callsign != "KLM123" {
			t.Errorf("Expected KLM123, got %q", records[0].Callsign)
		}
	})

	t.Run("Departure window defaults to trailing day", func(t *testing.T) {
		now := time.Unix(1700086400, 0)
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/flights/departure" {
				t.Errorf("Expected path /flights/departure, got %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("begin") != "1700000000" || q.Get("end") != "1700086400" {
				t.Errorf("Unexpected default window: begin=%s end=%s", q.Get("begin"), q.Get("end"))
			}
			w.Write([]byte(mixedBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		client.now = func() time.Time { return now }

		if _, err := client.FetchDepartures(context.Background(), "EHAM", time.Time{}, time.Time{}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("Arrival window defaults to trailing 2 days", func(t *testing.T) {
		now := time.Unix(1700172800, 0)
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("begin") != "1700000000" {
				t.Errorf("Expected begin=now-48h, got %s", q.Get("begin"))
			}
			w.Write([]byte(mixedBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		client.now = func() time.Time { return now }

		if _, err := client.FetchArrivals(context.Background(), "EHAM", time.Time{}, time.Time{}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})
}

// TestFetchCoverage tests coverage retrieval.
func TestFetchCoverage(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/range/coverage" {
			t.Errorf("Expected path /range/coverage, got %s", r.URL.Path)
		}
		w.Write([]byte(`[[52.0, 4.0, 1000], [48.9, 2.5, 0]]`))
	})

	client := NewClient(Config{BaseURL: server.URL})
	points, err := client.FetchCoverage(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
}

// TestFetchTrack tests the stubbed trajectory endpoint.
func TestFetchTrack(t *testing.T) {
	client := NewClient(Config{})
	if err := client.FetchTrack(context.Background(), "abc123"); err != ErrNotImplemented {
		t.Errorf("Expected ErrNotImplemented, got %v", err)
	}
}

// TestRateLimit tests lazy quota discovery.
func TestRateLimit(t *testing.T) {
	t.Run("Lazily issues one request", func(t *testing.T) {
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Rate-Limit-Remaining", "399")
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		state, err := client.RateLimit(context.Background())

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if state.RemainingRequests == nil || *state.RemainingRequests != 399 {
			t.Errorf("Expected remaining 399, got %v", state.RemainingRequests)
		}
		if calls.Load() != 1 {
			t.Errorf("Expected 1 probing request, got %d", calls.Load())
		}

		// Second call reuses the cached state
		if _, err := client.RateLimit(context.Background()); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("Expected no additional requests, got %d", calls.Load())
		}
	})

	t.Run("Updated on every fetch", func(t *testing.T) {
		var remaining atomic.Int64
		remaining.Store(100)
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Rate-Limit-Remaining", strconv.FormatInt(remaining.Add(-1), 10))
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		for i := 0; i < 3; i++ {
			if _, err := client.FetchStates(context.Background(), StatesRequest{}); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
		}

		state, _ := client.RateLimit(context.Background())
		if state.RemainingRequests == nil || *state.RemainingRequests != 97 {
			t.Errorf("Expected remaining 97 after 3 fetches, got %v", state.RemainingRequests)
		}
	})

	t.Run("Headers absent leaves fields nil", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(statesBody))
		})

		client := NewClient(Config{BaseURL: server.URL})
		state, err := client.RateLimit(context.Background())

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if state.RemainingRequests != nil || state.RetryAfterSeconds != nil {
			t.Errorf("Expected nil fields without headers, got %+v", state)
		}
	})
}
