// Package tracking extrapolates and ranks live state vectors.
//
// Projection is plain dead reckoning: each vector advances along a great
// circle at its reported ground speed and true track. Vectors without a
// position pass through projection untouched and are excluded from
// distance ranking.
package tracking

import (
	"time"

	"github.com/skywatch/opensky-scope/pkg/geodesy"
	"github.com/skywatch/opensky-scope/pkg/opensky"
)

// ProjectVector returns a copy of sv with its position advanced to target
// along a great circle. The elapsed interval is target minus the vector's
// observation time, so projecting an already-projected vector to the same
// target is a no-op. ObservedAt is left as is.
func ProjectVector(sv opensky.StateVector, target time.Time) opensky.StateVector {
	if !sv.HasPosition() {
		return sv
	}

	elapsed := target.Sub(sv.ObservedAt).Seconds()
	lat, lon := geodesy.Project(*sv.Latitude, *sv.Longitude, sv.TrueTrack, sv.Velocity, elapsed)

	out := sv
	out.Latitude = &lat
	out.Longitude = &lon
	return out
}

// ProjectSnapshot dead-reckons every vector in snap to target and returns
// a new snapshot stamped with the target time. The input is not modified.
func ProjectSnapshot(snap opensky.Snapshot, target time.Time) opensky.Snapshot {
	out := opensky.Snapshot{
		Time:   target,
		States: make(map[string]opensky.StateVector, len(snap.States)),
	}
	for id, sv := range snap.States {
		out.States[id] = ProjectVector(sv, target)
	}
	return out
}
