package geodesy

import "math"

// Constants for great-circle calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's mean radius in kilometers (spherical model)
	EarthRadiusKm = 6371.0
)

// Point is a position on Earth's surface in decimal degrees.
// Positive latitude = North, positive longitude = East.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Distance calculates the great-circle distance between two points.
// Uses the Haversine formula on a spherical Earth model.
// Returns distance in kilometers. Symmetric; zero iff a == b.
func Distance(a, b Point) float64 {
	lat1Rad := a.Latitude * DegreesToRadians
	lat2Rad := b.Latitude * DegreesToRadians

	dLat := (b.Latitude - a.Latitude) * DegreesToRadians
	dLon := (b.Longitude - a.Longitude) * DegreesToRadians

	// Haversine formula
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Project calculates the point reached by travelling speedMPS*elapsedSec meters
// from (lat, lon) along the initial great-circle bearing bearingDeg.
// This is the forward azimuth (direct geodesic) formula from spherical trigonometry.
//
// Inputs and outputs are decimal degrees; bearing is clockwise from north.
// elapsedSec may be negative to project backward along the same bearing.
//
// A zero speed or zero elapsed time returns the input point unchanged: the
// bearing term is undefined at distance 0, so the formula is short-circuited.
func Project(lat, lon, bearingDeg, speedMPS, elapsedSec float64) (float64, float64) {
	distanceKm := speedMPS * elapsedSec / 1000.0
	if distanceKm == 0 {
		return lat, lon
	}

	latRad := lat * DegreesToRadians
	lonRad := lon * DegreesToRadians
	bearingRad := bearingDeg * DegreesToRadians

	// Angular distance along the great circle
	angularDistance := distanceKm / EarthRadiusKm

	// lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(bearing))
	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(angularDistance) +
			math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad),
	)

	// lon2 = lon1 + atan2(sin(bearing)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
	newLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	newLat := newLatRad * RadiansToDegrees
	newLon := newLonRad * RadiansToDegrees

	// Normalize longitude to [-180, 180]
	if newLon > 180.0 {
		newLon -= 360.0
	} else if newLon < -180.0 {
		newLon += 360.0
	}

	return newLat, newLon
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	// Normalize to 0-360
	if bearing < 0 {
		bearing += 360
	}

	return bearing
}
