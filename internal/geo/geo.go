// Package geo holds the great-circle math used by the detection rules.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Haversine
const EarthRadiusMeters = 6371e3

// Point is a WGS84 coordinate in decimal degrees
type Point struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Route is an ordered sequence of points, oldest first
type Route []Point

// Haversine returns the great-circle distance between a and b in meters
func Haversine(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// RouteDeviation averages the index-aligned distances between two routes,
// truncated to the shorter one. Either route being empty yields 0.
func RouteDeviation(recent, normal Route) float64 {
	n := min(len(recent), len(normal))
	if n == 0 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		total += Haversine(recent[i], normal[i])
	}
	return total / float64(n)
}

// NearestDistance returns the distance from p to the closest point of any
// route. ok is false when the routes contain no points at all.
func NearestDistance(p Point, routes []Route) (distance float64, ok bool) {
	distance = math.Inf(1)
	for _, route := range routes {
		for _, q := range route {
			if d := Haversine(p, q); d < distance {
				distance = d
				ok = true
			}
		}
	}
	if !ok {
		return 0, false
	}
	return distance, true
}
