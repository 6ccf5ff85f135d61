package geo

import (
	"math"

	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// EarthRadiusMeters is the mean earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the geofence radius of ten miles.
const DefaultRadiusMeters = 16093.44

// Distance returns the great-circle distance between a and b in metres, using the haversine
// formula.
func Distance(a model.Coordinate, b model.Coordinate) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinRadius reports whether point lies within radius metres of center.
func WithinRadius(center model.Coordinate, point model.Coordinate, radius float64) bool {
	return Distance(center, point) <= radius
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
