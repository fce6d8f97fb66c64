// Package geo provides GeoJSON point handling and great-circle distance math.
package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a GeoJSON Point geometry. Coordinates are ordered
// [longitude, latitude], the GeoJSON convention.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint builds a GeoJSON Point from a longitude/latitude pair.
func NewPoint(long, lat float64) Point {
	return Point{
		Type:        "Point",
		Coordinates: [2]float64{long, lat},
	}
}

// Long returns the longitude component of the point.
func (p Point) Long() float64 { return p.Coordinates[0] }

// Lat returns the latitude component of the point.
func (p Point) Lat() float64 { return p.Coordinates[1] }

// HaversineKm returns the great-circle distance in kilometers between two
// WGS84 coordinates.
func HaversineKm(lat1, long1, lat2, long2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLong := toRadians(long2 - long1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLong/2)*math.Sin(dLong/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// HaversineMeters returns the great-circle distance in meters.
func HaversineMeters(lat1, long1, lat2, long2 float64) float64 {
	return HaversineKm(lat1, long1, lat2, long2) * 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
