package geometry

// Polyline is an ordered line geometry, usually a route shape
type Polyline struct {
	Points []Point
}

// Length returns the total planar length of the line in coordinate units
func (l Polyline) Length() float64 {
	total := 0.0
	for i := 1; i < len(l.Points); i++ {
		total += l.Points[i-1].PlanarDistance(l.Points[i])
	}
	return total
}

// GeodesicLength returns the real-world length of the line in the given unit
func (l Polyline) GeodesicLength(unit Unit) float64 {
	meters := 0.0
	for i := 1; i < len(l.Points); i++ {
		meters += HaversineMeters(l.Points[i-1], l.Points[i])
	}
	return unit.FromMeters(meters)
}

// MeasureAlongLine projects a point onto the line and returns the planar
// distance from the line's start to the projected location. The point snaps
// to the nearest location on the nearest segment.
func (l Polyline) MeasureAlongLine(p Point) float64 {
	if len(l.Points) == 0 {
		return 0
	}
	if len(l.Points) == 1 {
		return 0
	}

	bestDistance := -1.0
	bestMeasure := 0.0

	cumulative := 0.0
	for i := 1; i < len(l.Points); i++ {
		a := l.Points[i-1]
		b := l.Points[i]
		segmentLength := a.PlanarDistance(b)

		param, distance := projectOntoSegment(p, a, b)

		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestMeasure = cumulative + param*segmentLength
		}

		cumulative += segmentLength
	}

	return bestMeasure
}

// SubSegment clips the line between two measures along it. Measures are
// clamped to [0, Length]. A start >= end produces a zero length segment.
func (l Polyline) SubSegment(start float64, end float64) Polyline {
	length := l.Length()
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if len(l.Points) < 2 || start >= end {
		point := l.PointAtMeasure(start)
		return Polyline{Points: []Point{point, point}}
	}

	var points []Point
	cumulative := 0.0
	for i := 1; i < len(l.Points); i++ {
		a := l.Points[i-1]
		b := l.Points[i]
		segmentLength := a.PlanarDistance(b)
		segmentStart := cumulative
		segmentEnd := cumulative + segmentLength
		cumulative = segmentEnd

		if segmentEnd < start || segmentStart > end {
			continue
		}

		if len(points) == 0 {
			points = append(points, interpolate(a, b, fraction(start-segmentStart, segmentLength)))
		}

		if segmentEnd <= end {
			points = append(points, b)
		} else {
			points = append(points, interpolate(a, b, fraction(end-segmentStart, segmentLength)))
			break
		}
	}

	if len(points) < 2 {
		point := l.PointAtMeasure(start)
		return Polyline{Points: []Point{point, point}}
	}

	return Polyline{Points: points}
}

// PointAtMeasure returns the location on the line at a planar measure
func (l Polyline) PointAtMeasure(measure float64) Point {
	if len(l.Points) == 0 {
		return Point{}
	}
	if measure <= 0 {
		return l.Points[0]
	}

	cumulative := 0.0
	for i := 1; i < len(l.Points); i++ {
		a := l.Points[i-1]
		b := l.Points[i]
		segmentLength := a.PlanarDistance(b)

		if cumulative+segmentLength >= measure {
			return interpolate(a, b, fraction(measure-cumulative, segmentLength))
		}

		cumulative += segmentLength
	}

	return l.Points[len(l.Points)-1]
}

// projectOntoSegment finds the closest location on segment a-b to point p,
// returning the position as a fraction of the segment and the planar distance
// from p to that location.
// Shameless taken 'inspiration' from https://stackoverflow.com/a/6853926
func projectOntoSegment(p Point, a Point, b Point) (float64, float64) {
	A := p.Longitude - a.Longitude
	B := p.Latitude - a.Latitude
	C := b.Longitude - a.Longitude
	D := b.Latitude - a.Latitude

	dot := A*C + B*D
	lenSq := C*C + D*D

	param := 0.0
	if lenSq != 0 {
		param = dot / lenSq
	}

	if param < 0 {
		param = 0
	} else if param > 1 {
		param = 1
	}

	projected := interpolate(a, b, param)

	return param, p.PlanarDistance(projected)
}

func interpolate(a Point, b Point, t float64) Point {
	return Point{
		Latitude:  a.Latitude + t*(b.Latitude-a.Latitude),
		Longitude: a.Longitude + t*(b.Longitude-a.Longitude),
	}
}

func fraction(distance float64, segmentLength float64) float64 {
	if segmentLength == 0 {
		return 0
	}
	return distance / segmentLength
}
