package opensky

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// DefaultObservationLag is substituted for a missing time_position field.
// State vectors typically reach the API a number of seconds after the
// position was actually measured.
const DefaultObservationLag = 15 * time.Second

// Decoder converts raw upstream payloads into typed records.
//
// Decoding is total over well-formed input: individual rows that cannot be
// decoded are skipped, never fatal to the batch. A partially-decodable batch
// is still useful.
type Decoder struct {
	// ObservationLag is subtracted from "now" when a state row carries no
	// time_position. It affects downstream prediction accuracy, so it is
	// configurable rather than hardwired.
	ObservationLag time.Duration

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewDecoder creates a decoder with the default observation lag.
func NewDecoder() *Decoder {
	return &Decoder{
		ObservationLag: DefaultObservationLag,
		now:            time.Now,
	}
}

// stateField binds one positional column of a raw state row to its
// StateVector field. The upstream row is a fixed-position heterogeneous
// array; decoding zips array position to field semantics via this table.
// Columns with a nil assign are present on the wire but not carried.
type stateField struct {
	name   string
	assign func(d *Decoder, v any, sv *StateVector)
}

// stateColumns is the ordered field-spec table for /states/all rows.
// Numeric defaults use explicit null checks: a reported value of exactly 0
// is a valid measurement, never "missing".
var stateColumns = []stateField{
	{"icao24", func(_ *Decoder, v any, sv *StateVector) {
		sv.ICAO24 = stringOf(v)
	}},
	{"callsign", func(_ *Decoder, v any, sv *StateVector) {
		sv.Callsign = strings.TrimSpace(stringOf(v))
	}},
	{"origin_country", func(_ *Decoder, v any, sv *StateVector) {
		sv.OriginCountry = stringOf(v)
	}},
	{"time_position", func(d *Decoder, v any, sv *StateVector) {
		if ts, ok := v.(float64); ok {
			sv.ObservedAt = time.Unix(int64(ts), 0)
		} else {
			sv.ObservedAt = d.now().Add(-d.ObservationLag)
		}
	}},
	{"last_contact", nil},
	{"longitude", func(_ *Decoder, v any, sv *StateVector) {
		sv.Longitude = floatOrNil(v)
	}},
	{"latitude", func(_ *Decoder, v any, sv *StateVector) {
		sv.Latitude = floatOrNil(v)
	}},
	{"baro_altitude", func(_ *Decoder, v any, sv *StateVector) {
		sv.BaroAltitude = floatOrZero(v)
	}},
	{"on_ground", func(_ *Decoder, v any, sv *StateVector) {
		sv.OnGround = boolOf(v)
	}},
	{"velocity", func(_ *Decoder, v any, sv *StateVector) {
		sv.Velocity = floatOrZero(v)
	}},
	{"true_track", func(_ *Decoder, v any, sv *StateVector) {
		sv.TrueTrack = floatOrZero(v)
	}},
	{"vertical_rate", func(_ *Decoder, v any, sv *StateVector) {
		sv.VerticalRate = floatOrNil(v)
	}},
	{"sensors", func(_ *Decoder, v any, sv *StateVector) {
		sv.SensorIDs = intsOf(v)
	}},
	{"geo_altitude", func(_ *Decoder, v any, sv *StateVector) {
		sv.GeoAltitude = floatOrNil(v)
	}},
	{"squawk", func(_ *Decoder, v any, sv *StateVector) {
		sv.Squawk = stringOf(v)
	}},
	{"spi", func(_ *Decoder, v any, sv *StateVector) {
		sv.SPI = boolOf(v)
	}},
	{"position_source", nil},
}

// DecodeState decodes a single positional state row.
// Returns false when the row has no usable identity; such rows are dropped
// by DecodeSnapshot rather than failing the batch.
func (d *Decoder) DecodeState(row []any) (StateVector, bool) {
	var sv StateVector
	for i, col := range stateColumns {
		if col.assign == nil {
			continue
		}
		var v any
		if i < len(row) {
			v = row[i]
		}
		col.assign(d, v, &sv)
	}
	if sv.ICAO24 == "" {
		return StateVector{}, false
	}
	return sv, true
}

// DecodeSnapshot decodes a /states/all response body into a Snapshot.
// A body that does not match the expected shape decodes to an empty snapshot:
// "nothing currently reported" is distinct from "request failed".
func (d *Decoder) DecodeSnapshot(body []byte) Snapshot {
	var raw struct {
		Time   int64   `json:"time"`
		States [][]any `json:"states"`
	}
	snap := Snapshot{States: make(map[string]StateVector)}

	if err := json.Unmarshal(body, &raw); err != nil {
		return snap
	}
	if raw.Time != 0 {
		snap.Time = time.Unix(raw.Time, 0)
	}

	for _, row := range raw.States {
		sv, ok := d.DecodeState(row)
		if !ok {
			continue
		}
		snap.States[sv.ICAO24] = sv
	}
	return snap
}

// flightRow mirrors the recognized keys of a /flights response object.
// Additional keys are ignored.
type flightRow struct {
	ICAO24              string  `json:"icao24"`
	Callsign            *string `json:"callsign"`
	FirstSeen           int64   `json:"firstSeen"`
	LastSeen            int64   `json:"lastSeen"`
	EstDepartureAirport *string `json:"estDepartureAirport"`
	EstArrivalAirport   *string `json:"estArrivalAirport"`
}

// DecodeFlights decodes a /flights response body into flight records sorted
// ascending by last-seen time. When requireCallsign is set, rows with a blank
// callsign are excluded: for arrival/departure queries a blank callsign marks
// an unreliable airport attribution upstream.
//
// A body that does not match the expected shape decodes to an empty slice, and
// malformed individual rows are skipped.
func (d *Decoder) DecodeFlights(body []byte, requireCallsign bool) []FlightRecord {
	var rawRows []json.RawMessage
	if err := json.Unmarshal(body, &rawRows); err != nil {
		return []FlightRecord{}
	}

	records := make([]FlightRecord, 0, len(rawRows))
	for _, raw := range rawRows {
		var row flightRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if row.ICAO24 == "" {
			continue
		}

		rec := FlightRecord{
			ICAO24:    row.ICAO24,
			FirstSeen: time.Unix(row.FirstSeen, 0),
			LastSeen:  time.Unix(row.LastSeen, 0),
		}
		if row.Callsign != nil {
			rec.Callsign = strings.TrimSpace(*row.Callsign)
		}
		if requireCallsign && rec.Callsign == "" {
			continue
		}
		if row.EstDepartureAirport != nil {
			rec.DepartureAirport = *row.EstDepartureAirport
		}
		if row.EstArrivalAirport != nil {
			rec.ArrivalAirport = *row.EstArrivalAirport
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastSeen.Before(records[j].LastSeen)
	})
	return records
}

// DecodeCoverage decodes a /range/coverage response body. The [lat, lon, alt]
// triples pass through unmodified; rows that are not three-element numeric
// arrays are skipped.
func (d *Decoder) DecodeCoverage(body []byte) []CoveragePoint {
	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return []CoveragePoint{}
	}

	points := make([]CoveragePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) != 3 {
			continue
		}
		points = append(points, CoveragePoint{row[0], row[1], row[2]})
	}
	return points
}

// stringOf coerces a JSON value to string, empty for null or non-strings.
func stringOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// boolOf coerces a JSON value to bool, false for null or non-bools.
func boolOf(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// floatOrNil returns the numeric value or nil when absent.
func floatOrNil(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

// floatOrZero returns the numeric value or 0 when absent.
// The nil check is explicit so that a reported 0 survives intact.
func floatOrZero(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

// intsOf coerces a JSON array of numbers to sensor serial IDs, nil otherwise.
func intsOf(v any) []int64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(arr))
	for _, e := range arr {
		if f, ok := e.(float64); ok {
			ids = append(ids, int64(f))
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}
