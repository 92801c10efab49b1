// Package opensky provides a client for the OpenSky Network REST API.
//
// The API is a polling-only telemetry source: it refreshes state vectors every
// few seconds and enforces per-user request quotas, signalled through the
// X-Rate-Limit-Remaining and X-Rate-Limit-Retry-After-Seconds response headers
// and HTTP 429. The client surfaces every failure to the caller and never
// retries internally; backoff policy belongs to whoever drives the poll loop.
//
// API Documentation: https://opensky-network.org/apidoc/rest.html
package opensky

import (
	"sort"
	"time"

	"github.com/skywatch/opensky-scope/pkg/geodesy"
)

// StateVector is one tracked aircraft's instantaneous state from /states/all.
// Values are immutable once decoded; a new poll produces a new snapshot rather
// than mutating the previous one.
type StateVector struct {
	// ICAO24 is the unique 24-bit ICAO transponder address in hex (e.g., "4840d6").
	// Stable across polls for the same physical aircraft.
	ICAO24 string

	// Callsign is the flight number or registration, whitespace-trimmed.
	// May be empty.
	Callsign string

	// OriginCountry is the country of registration as reported upstream.
	OriginCountry string

	// ObservedAt is when the position was measured. When the upstream omits
	// time_position the decoder substitutes "now minus the observation lag"
	// to reflect typical reporting delay.
	ObservedAt time.Time

	// Longitude and Latitude in decimal degrees. Nil when the source has no
	// position fix for this aircraft.
	Longitude *float64
	Latitude  *float64

	// BaroAltitude is the barometric altitude in meters (0 when absent).
	BaroAltitude float64

	// OnGround reports whether the aircraft is on the ground.
	OnGround bool

	// Velocity is the ground speed in meters/second (0 when absent).
	Velocity float64

	// TrueTrack is the ground track in degrees clockwise from north (0 when absent).
	TrueTrack float64

	// Pass-through fields, kept opaque.
	VerticalRate *float64
	SensorIDs    []int64
	GeoAltitude  *float64
	Squawk       string
	SPI          bool
}

// HasPosition reports whether the state vector carries a position fix.
func (s StateVector) HasPosition() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Position returns the aircraft position. Only meaningful when HasPosition is true.
func (s StateVector) Position() geodesy.Point {
	if !s.HasPosition() {
		return geodesy.Point{}
	}
	return geodesy.Point{Latitude: *s.Latitude, Longitude: *s.Longitude}
}

// Snapshot is a point-in-time mapping of ICAO24 address to state vector.
// Each ICAO24 keys exactly one record within a snapshot.
type Snapshot struct {
	// Time is the server-reported snapshot timestamp.
	Time time.Time

	// States maps ICAO24 address to the aircraft's state.
	States map[string]StateVector
}

// Len returns the number of tracked aircraft in the snapshot.
func (s Snapshot) Len() int {
	return len(s.States)
}

// Vectors returns the state vectors ordered by ICAO24 address.
// Map iteration order is not stable, so callers that need deterministic
// output (ranking, display, storage) should start from this.
func (s Snapshot) Vectors() []StateVector {
	ids := make([]string, 0, len(s.States))
	for id := range s.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vectors := make([]StateVector, 0, len(ids))
	for _, id := range ids {
		vectors = append(vectors, s.States[id])
	}
	return vectors
}

// FlightRecord is one historical flight leg (departure/arrival pairing)
// from the /flights endpoints.
type FlightRecord struct {
	ICAO24    string
	Callsign  string
	FirstSeen time.Time
	LastSeen  time.Time

	// DepartureAirport and ArrivalAirport are ICAO airport codes.
	// Empty when the upstream could not attribute an airport.
	DepartureAirport string
	ArrivalAirport   string
}

// CoveragePoint is one [latitude, longitude, altitude] triple from /range/coverage,
// passed through unmodified.
type CoveragePoint [3]float64

// RateLimitState is the server-advertised quota snapshot, parsed from response
// headers after every request. Fields are nil when the server did not send the
// corresponding header.
type RateLimitState struct {
	// RemainingRequests is the X-Rate-Limit-Remaining header value.
	RemainingRequests *int

	// RetryAfterSeconds is the X-Rate-Limit-Retry-After-Seconds header value.
	RetryAfterSeconds *int
}
