package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/skywatch/opensky-scope/pkg/opensky"
)

// SnapshotRepository persists the current snapshot. The table holds exactly
// one row per aircraft; storing a new snapshot upserts its vectors and
// removes rows for aircraft that are no longer present.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Store replaces the persisted snapshot with snap inside one transaction.
func (r *SnapshotRepository) Store(ctx context.Context, snap opensky.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sv := range snap.States {
		if err := upsertVector(ctx, tx, sv, snap); err != nil {
			return err
		}
	}

	// Drop aircraft that fell out of the feed
	ids := make([]string, 0, len(snap.States))
	for id := range snap.States {
		ids = append(ids, id)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM state_vectors WHERE NOT (icao24 = ANY($1))`,
		pq.Array(ids),
	); err != nil {
		return fmt.Errorf("failed to remove stale vectors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}

func upsertVector(ctx context.Context, tx *sql.Tx, sv opensky.StateVector, snap opensky.Snapshot) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO state_vectors (
			icao24, callsign, origin_country, observed_at, snapshot_time,
			latitude, longitude, baro_altitude_m, on_ground,
			velocity_mps, true_track_deg, vertical_rate,
			geo_altitude_m, squawk, spi
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (icao24) DO UPDATE SET
			callsign = EXCLUDED.callsign,
			origin_country = EXCLUDED.origin_country,
			observed_at = EXCLUDED.observed_at,
			snapshot_time = EXCLUDED.snapshot_time,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			baro_altitude_m = EXCLUDED.baro_altitude_m,
			on_ground = EXCLUDED.on_ground,
			velocity_mps = EXCLUDED.velocity_mps,
			true_track_deg = EXCLUDED.true_track_deg,
			vertical_rate = EXCLUDED.vertical_rate,
			geo_altitude_m = EXCLUDED.geo_altitude_m,
			squawk = EXCLUDED.squawk,
			spi = EXCLUDED.spi`,
		sv.ICAO24, sv.Callsign, sv.OriginCountry, sv.ObservedAt, snap.Time,
		nullFloat(sv.Latitude), nullFloat(sv.Longitude), sv.BaroAltitude, sv.OnGround,
		sv.Velocity, sv.TrueTrack, nullFloat(sv.VerticalRate),
		nullFloat(sv.GeoAltitude), sv.Squawk, sv.SPI,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vector %s: %w", sv.ICAO24, err)
	}
	return nil
}

// Load reads the persisted snapshot back. The snapshot time is the most
// recent snapshot_time across all rows.
func (r *SnapshotRepository) Load(ctx context.Context) (opensky.Snapshot, error) {
	snap := opensky.Snapshot{States: make(map[string]opensky.StateVector)}

	rows, err := r.db.QueryContext(ctx,
		`SELECT icao24, callsign, origin_country, observed_at, snapshot_time,
		        latitude, longitude, baro_altitude_m, on_ground,
		        velocity_mps, true_track_deg, vertical_rate,
		        geo_altitude_m, squawk, spi
		 FROM state_vectors`,
	)
	if err != nil {
		return snap, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sv opensky.StateVector
		var snapTime sql.NullTime
		var lat, lon, vrate, geoAlt sql.NullFloat64
		if err := rows.Scan(
			&sv.ICAO24, &sv.Callsign, &sv.OriginCountry, &sv.ObservedAt, &snapTime,
			&lat, &lon, &sv.BaroAltitude, &sv.OnGround,
			&sv.Velocity, &sv.TrueTrack, &vrate,
			&geoAlt, &sv.Squawk, &sv.SPI,
		); err != nil {
			return snap, fmt.Errorf("failed to scan vector: %w", err)
		}
		sv.Latitude = floatPtrOf(lat)
		sv.Longitude = floatPtrOf(lon)
		sv.VerticalRate = floatPtrOf(vrate)
		sv.GeoAltitude = floatPtrOf(geoAlt)
		if snapTime.Valid && snapTime.Time.After(snap.Time) {
			snap.Time = snapTime.Time
		}
		snap.States[sv.ICAO24] = sv
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to iterate vectors: %w", err)
	}

	return snap, nil
}

// Clear removes all persisted vectors.
func (r *SnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM state_vectors`); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtrOf(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
