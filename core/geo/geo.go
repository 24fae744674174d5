package geo

import "math"

// earthRadius is the mean Earth radius in meters used by the haversine
// formula.
const earthRadius = 6372800

// homeRadius is the distance in meters within which a vehicle counts as
// home.
const homeRadius = 100

// Classification values published as the device tracker state.
const (
	StateHome    = "home"
	StateNotHome = "not_home"
)

// Point is a GPS coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dphi := radians(b.Lat - a.Lat)
	dlambda := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dphi/2), 2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dlambda/2), 2)

	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Classifier decides whether a coordinate is home or away relative to a
// configured home point.
type Classifier struct {
	// Home is the reference coordinate. When nil the vehicle is always
	// considered home.
	Home *Point
}

// Classify returns StateHome or StateNotHome for the given point.
func (c Classifier) Classify(p Point) string {
	if c.Home == nil {
		return StateHome
	}
	if Haversine(*c.Home, p) > homeRadius {
		return StateNotHome
	}
	return StateHome
}
