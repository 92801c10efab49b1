package tracking

import (
	"sort"

	"github.com/skywatch/opensky-scope/pkg/geodesy"
	"github.com/skywatch/opensky-scope/pkg/opensky"
)

// RankedVector pairs a state vector with its great-circle distance from a
// reference point.
type RankedVector struct {
	opensky.StateVector

	// DistanceKm is the haversine distance to the reference point.
	DistanceKm float64

	// BearingDeg is the initial bearing from the reference point to the
	// aircraft, 0-360 clockwise from north.
	BearingDeg float64
}

// SortByDistance ranks the vectors in vectors by ascending great-circle
// distance from ref. Vectors without a position are dropped. The sort is
// stable, so vectors at equal distance keep their input order.
func SortByDistance(vectors []opensky.StateVector, ref geodesy.Point) []RankedVector {
	ranked := make([]RankedVector, 0, len(vectors))
	for _, sv := range vectors {
		if !sv.HasPosition() {
			continue
		}
		pos := sv.Position()
		ranked = append(ranked, RankedVector{
			StateVector: sv,
			DistanceKm:  geodesy.Distance(ref, pos),
			BearingDeg:  geodesy.Bearing(ref, pos),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}

// Nearest returns the closest n ranked vectors to ref, fewer if the input
// has fewer positioned vectors.
func Nearest(vectors []opensky.StateVector, ref geodesy.Point, n int) []RankedVector {
	ranked := SortByDistance(vectors, ref)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
