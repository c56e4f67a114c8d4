package geo

import "math"

const earthRadiusMeters = 6371000

// Coordinate is a WGS84 point. Longitude first, matching GeoJSON order.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// DistanceMeters calculates the great-circle distance between two points
// in meters using the haversine formula. Good to sub-meter accuracy for
// the spans urban navigation cares about.
func DistanceMeters(a, b Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaPhi := (b.Lat - a.Lat) * math.Pi / 180
	deltaLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// BearingDegrees calculates the bearing from a to b in degrees (0-360).
func BearingDegrees(a, b Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaLambda := (b.Lon - a.Lon) * math.Pi / 180

	x := math.Sin(deltaLambda) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// Interpolate linearly interpolates between two points.
func Interpolate(a, b Coordinate, fraction float64) Coordinate {
	return Coordinate{
		Lon: a.Lon + (b.Lon-a.Lon)*fraction,
		Lat: a.Lat + (b.Lat-a.Lat)*fraction,
	}
}

// Projection is the result of projecting a point onto a segment.
type Projection struct {
	Point          Coordinate // closest point on the segment
	Fraction       float64    // position along the segment, clamped to [0,1]
	DistanceMeters float64    // lateral distance from the input point
}

// ProjectOntoSegment returns the closest point on the segment [start,end]
// to p. The math runs in a local equirectangular plane centered on the
// segment start, which is plenty accurate for the short segments a route
// polyline is made of.
func ProjectOntoSegment(p, start, end Coordinate) Projection {
	cosLat := math.Cos(start.Lat * math.Pi / 180)

	// Meters per degree in the local plane.
	const mPerDegLat = earthRadiusMeters * math.Pi / 180
	mPerDegLon := mPerDegLat * cosLat

	px := (p.Lon - start.Lon) * mPerDegLon
	py := (p.Lat - start.Lat) * mPerDegLat
	ex := (end.Lon - start.Lon) * mPerDegLon
	ey := (end.Lat - start.Lat) * mPerDegLat

	segLenSq := ex*ex + ey*ey
	var fraction float64
	if segLenSq > 0 {
		fraction = Clamp((px*ex+py*ey)/segLenSq, 0, 1)
	}

	closest := Interpolate(start, end, fraction)
	return Projection{
		Point:          closest,
		Fraction:       fraction,
		DistanceMeters: DistanceMeters(p, closest),
	}
}

// PathLength calculates the total length of a polyline in meters.
func PathLength(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += DistanceMeters(coords[i-1], coords[i])
	}
	return total
}

// CumulativeDistances returns the along-path distance in meters at every
// vertex of the polyline. The result has the same length as coords and
// starts at 0.
func CumulativeDistances(coords []Coordinate) []float64 {
	cum := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		cum[i] = cum[i-1] + DistanceMeters(coords[i-1], coords[i])
	}
	return cum
}

// Offset moves a point the given distance along a bearing (degrees,
// 0 = north). Local-plane math, intended for offsets of tens of meters.
func Offset(c Coordinate, bearingDegrees, meters float64) Coordinate {
	rad := bearingDegrees * math.Pi / 180
	const mPerDegLat = earthRadiusMeters * math.Pi / 180
	mPerDegLon := mPerDegLat * math.Cos(c.Lat*math.Pi/180)

	return Coordinate{
		Lon: c.Lon + meters*math.Sin(rad)/mPerDegLon,
		Lat: c.Lat + meters*math.Cos(rad)/mPerDegLat,
	}
}

// Clamp constrains a value between min and max.
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
