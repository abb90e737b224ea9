package geo

import (
	"math"

	"github.com/rendis/placetap/internal/model"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.0

	// MaxSearchRadiusMeters is the hard cap the Places API accepts for location bias.
	MaxSearchRadiusMeters = 50000
)

// Haversine returns the great-circle distance in km between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// SearchRadiusMeters derives the location-bias radius for a tile: half the
// tile diagonal in metres, scaled by multiplier and capped at 50 km.
// Longitude span is shrunk by cos(lat) for meridian convergence.
func SearchRadiusMeters(t *model.Tile, multiplier float64) int {
	centerLat, _ := t.Center()
	latKm := (t.MaxLat - t.MinLat) * kmPerDegree
	lngKm := (t.MaxLng - t.MinLng) * kmPerDegree * math.Cos(centerLat*math.Pi/180.0)
	diagonalKm := math.Sqrt(latKm*latKm + lngKm*lngKm)

	base := int(diagonalKm * 1000 / 2)
	radius := int(float64(base) * multiplier)
	if radius > MaxSearchRadiusMeters {
		radius = MaxSearchRadiusMeters
	}
	return radius
}

// BoundsAround returns the bounding box enclosing a circle of radiusKm.
func BoundsAround(centerLat, centerLng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	latDeg := radiusKm / kmPerDegree
	lngDeg := radiusKm / (kmPerDegree * math.Cos(centerLat*math.Pi/180.0))
	return centerLat - latDeg, centerLat + latDeg, centerLng - lngDeg, centerLng + lngDeg
}
