package geometry

import "math"

type Point struct {
	Latitude  float64
	Longitude float64
}

func (p Point) Equals(other Point) bool {
	return p.Latitude == other.Latitude && p.Longitude == other.Longitude
}

// PlanarDistance is the euclidean distance between two points in coordinate
// units. GTFS coordinates are WGS84 degrees, which is fine for measures along
// a single line as long as the same units are used throughout.
func (p Point) PlanarDistance(other Point) float64 {
	dx := p.Longitude - other.Longitude
	dy := p.Latitude - other.Latitude
	return math.Sqrt(dx*dx + dy*dy)
}

// HaversineMeters returns the great-circle distance between two points in meters
func HaversineMeters(a Point, b Point) float64 {
	const earthRadiusMeters = 6371000.0

	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	la1 := a.Latitude * math.Pi / 180
	la2 := b.Latitude * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}
