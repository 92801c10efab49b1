package opensky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the OpenSky Network REST API base URL.
	DefaultBaseURL = "https://opensky-network.org/api"

	// DefaultTimeout is the fixed per-request timeout.
	DefaultTimeout = 15 * time.Second

	// MaxFlightInterval is the hard upstream limit on /flights/all queries.
	MaxFlightInterval = 2 * time.Hour

	// TimeResolutionAuth and TimeResolutionAnon are the server-side time
	// resolutions in seconds. Anonymous users get coarser snapshots and the
	// time parameter is ignored for them; this is a server behavior the
	// client cannot enforce.
	TimeResolutionAuth = 5
	TimeResolutionAnon = 10
)

// Default trailing query windows, matching upstream conventions.
const (
	defaultFlightsWindow    = 24 * time.Hour
	defaultArrivalsWindow   = 48 * time.Hour
	defaultDeparturesWindow = 24 * time.Hour
)

// Config contains configuration for the OpenSky client.
type Config struct {
	// BaseURL overrides the API endpoint (useful for testing).
	BaseURL string

	// Username and Password are HTTP basic credentials. Leave empty for
	// anonymous access; the server then applies coarser time resolution.
	Username string
	Password string

	// Timeout is the per-request HTTP timeout (default 15s).
	Timeout time.Duration

	// ObservationLag is the decoder's substitute reporting delay for state
	// rows without a position timestamp (default 15s).
	ObservationLag time.Duration
}

// Client fetches live state vectors and flight legs from the OpenSky REST API.
//
// The client performs no retries and no backoff of its own: every failure is
// surfaced as a typed error and quota handling belongs to the caller. One
// client instance is not safe for concurrent use without external
// synchronization; the rate-limit state is rewritten after each request and
// the last writer wins.
type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	decoder    *Decoder

	// rateLimit is nil until the first request completes.
	rateLimit *RateLimitState

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewClient creates an OpenSky API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	decoder := NewDecoder()
	if cfg.ObservationLag != 0 {
		decoder.ObservationLag = cfg.ObservationLag
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		username: cfg.Username,
		password: cfg.Password,
		decoder:  decoder,
		now:      time.Now,
	}
}

// BoundingBox restricts a state query to a geographic area.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// validate checks the box against valid coordinate ranges.
func (b BoundingBox) validate() error {
	for _, lat := range []float64{b.MinLat, b.MaxLat} {
		if lat < -90 || lat > 90 {
			return &InvalidArgumentError{
				Reason: fmt.Sprintf("latitude %f out of range [-90, 90]", lat),
			}
		}
	}
	for _, lon := range []float64{b.MinLon, b.MaxLon} {
		if lon < -180 || lon > 180 {
			return &InvalidArgumentError{
				Reason: fmt.Sprintf("longitude %f out of range [-180, 180]", lon),
			}
		}
	}
	return nil
}

// StatesRequest selects which state vectors to fetch. The zero value requests
// the latest snapshot of all tracked aircraft.
type StatesRequest struct {
	// At requests the snapshot at a specific time. Zero means latest;
	// the server interprets an omitted/zero time the same way.
	At time.Time

	// ICAO24 restricts the query to one transponder address.
	ICAO24 string

	// Bounds restricts the query to a geographic area. Validated before any
	// network call.
	Bounds *BoundingBox
}

// FetchStates retrieves a snapshot of current state vectors.
//
// Rows whose identity field fails to decode are dropped rather than failing
// the batch, and a 200 response without a decodable body yields an empty
// snapshot (nothing currently reported) rather than an error.
func (c *Client) FetchStates(ctx context.Context, req StatesRequest) (Snapshot, error) {
	if req.Bounds != nil {
		if err := req.Bounds.validate(); err != nil {
			return Snapshot{}, err
		}
	}

	var at int64
	if !req.At.IsZero() {
		at = req.At.Unix()
	}

	params := url.Values{}
	params.Set("time", strconv.FormatInt(at, 10))
	params.Set("icao24", req.ICAO24)
	if b := req.Bounds; b != nil {
		params.Set("lamin", formatCoord(b.MinLat))
		params.Set("lamax", formatCoord(b.MaxLat))
		params.Set("lomin", formatCoord(b.MinLon))
		params.Set("lomax", formatCoord(b.MaxLon))
	}

	body, err := c.get(ctx, "/states/all", params)
	if err != nil {
		return Snapshot{}, err
	}
	return c.decoder.DecodeSnapshot(body), nil
}

// FetchFlights retrieves flight legs that departed and arrived within
// [begin, end]. The upstream rejects intervals longer than 2 hours; the
// check happens before any network call. Zero begin/end default to a
// trailing 24-hour window ending now.
func (c *Client) FetchFlights(ctx context.Context, begin, end time.Time) ([]FlightRecord, error) {
	if !begin.IsZero() && !end.IsZero() && end.Sub(begin) > MaxFlightInterval {
		return nil, &InvalidArgumentError{
			Reason: fmt.Sprintf("interval %v exceeds the 2 hour upstream limit", end.Sub(begin)),
		}
	}
	begin, end = c.defaultWindow(begin, end, defaultFlightsWindow)

	return c.fetchFlights(ctx, "/flights/all", url.Values{
		"begin": []string{epoch(begin)},
		"end":   []string{epoch(end)},
	}, false)
}

// FetchFlightsByAircraft retrieves flight legs for one aircraft within
// [begin, end], defaulting to a trailing 24-hour window.
func (c *Client) FetchFlightsByAircraft(ctx context.Context, icao24 string, begin, end time.Time) ([]FlightRecord, error) {
	begin, end = c.defaultWindow(begin, end, defaultFlightsWindow)

	return c.fetchFlights(ctx, "/flights/aircraft", url.Values{
		"icao24": []string{icao24},
		"begin":  []string{epoch(begin)},
		"end":    []string{epoch(end)},
	}, false)
}

// FetchArrivals retrieves flights that arrived at an airport within
// [begin, end], defaulting to a trailing 2-day window. Entries without a
// callsign are filtered out: a blank callsign marks an unreliable airport
// attribution upstream.
func (c *Client) FetchArrivals(ctx context.Context, airport string, begin, end time.Time) ([]FlightRecord, error) {
	begin, end = c.defaultWindow(begin, end, defaultArrivalsWindow)

	return c.fetchFlights(ctx, "/flights/arrival", url.Values{
		"airport": []string{airport},
		"begin":   []string{epoch(begin)},
		"end":     []string{epoch(end)},
	}, true)
}

// FetchDepartures retrieves flights that departed from an airport within
// [begin, end], defaulting to a trailing 1-day window. Entries without a
// callsign are filtered out.
func (c *Client) FetchDepartures(ctx context.Context, airport string, begin, end time.Time) ([]FlightRecord, error) {
	begin, end = c.defaultWindow(begin, end, defaultDeparturesWindow)

	return c.fetchFlights(ctx, "/flights/departure", url.Values{
		"airport": []string{airport},
		"begin":   []string{epoch(begin)},
		"end":     []string{epoch(end)},
	}, true)
}

// FetchCoverage retrieves the receiver coverage outline as raw
// [lat, lon, alt] triples.
func (c *Client) FetchCoverage(ctx context.Context) ([]CoveragePoint, error) {
	body, err := c.get(ctx, "/range/coverage", nil)
	if err != nil {
		return nil, err
	}
	return c.decoder.DecodeCoverage(body), nil
}

// FetchTrack would retrieve the simplified trajectory for one aircraft.
// The upstream documents the endpoint but has never implemented it.
func (c *Client) FetchTrack(ctx context.Context, icao24 string) error {
	return ErrNotImplemented
}

// RateLimit returns the server-advertised quota state, lazily issuing one
// request if none has been made yet so the caller can learn its remaining
// quota before proceeding. The returned state may be non-nil even when the
// probing request failed, since rate-limit headers arrive on failures too.
func (c *Client) RateLimit(ctx context.Context) (*RateLimitState, error) {
	if c.rateLimit != nil {
		return c.rateLimit, nil
	}
	_, err := c.get(ctx, "/states/all", nil)
	if c.rateLimit != nil {
		return c.rateLimit, nil
	}
	return nil, err
}

// fetchFlights shares the fetch-and-decode path of the /flights endpoints.
func (c *Client) fetchFlights(ctx context.Context, path string, params url.Values, requireCallsign bool) ([]FlightRecord, error) {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return c.decoder.DecodeFlights(body, requireCallsign), nil
}

// get issues one GET request and maps the outcome onto the error taxonomy.
// The rate-limit state is refreshed from response headers on every attempt
// that produced a response, success or failure.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.rateLimit = rateLimitFromHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		rle := &RateLimitError{}
		if c.rateLimit.RetryAfterSeconds != nil {
			rle.RetryAfterSeconds = *c.rateLimit.RetryAfterSeconds
		}
		return nil, rle
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return body, nil
}

// defaultWindow fills zero bounds with a trailing window ending now.
func (c *Client) defaultWindow(begin, end time.Time, window time.Duration) (time.Time, time.Time) {
	if end.IsZero() {
		end = c.now()
	}
	if begin.IsZero() {
		begin = end.Add(-window)
	}
	return begin, end
}

// rateLimitFromHeaders parses the quota headers of one response.
func rateLimitFromHeaders(headers http.Header) *RateLimitState {
	state := &RateLimitState{}
	if v := headers.Get("X-Rate-Limit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.RemainingRequests = &n
		}
	}
	if v := headers.Get("X-Rate-Limit-Retry-After-Seconds"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.RetryAfterSeconds = &n
		}
	}
	return state
}

func epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
