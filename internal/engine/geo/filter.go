package geo

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/rendis/placetap/internal/model"
)

// ErrNoPolygon is returned when a GeoJSON document holds no polygon geometry.
var ErrNoPolygon = errors.New("geojson has no polygon")

// WithinRadius reports whether the point is at most maxKm from the center.
func WithinRadius(centerLat, centerLng, lat, lng, maxKm float64) bool {
	return Haversine(centerLat, centerLng, lat, lng) <= maxKm
}

// FilterInPolygon keeps businesses whose coordinates fall inside the polygon.
// Businesses without coordinates are dropped.
func FilterInPolygon(businesses []model.Business, poly orb.MultiPolygon) []model.Business {
	var kept []model.Business
	for _, b := range businesses {
		if b.Lat == 0 && b.Lng == 0 {
			continue
		}
		if planar.MultiPolygonContains(poly, orb.Point{b.Lng, b.Lat}) {
			kept = append(kept, b)
		}
	}
	return kept
}

// ParsePolygon collects every Polygon and MultiPolygon in a GeoJSON
// FeatureCollection, Feature or bare geometry.
func ParsePolygon(data []byte) (orb.MultiPolygon, error) {
	var geoms []orb.Geometry
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil {
		geoms = append(geoms, g.Geometry())
	} else {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		}
	}
	if len(mp) == 0 {
		return nil, ErrNoPolygon
	}
	return mp, nil
}

// LoadPolygon reads a GeoJSON file with ParsePolygon.
func LoadPolygon(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParsePolygon(data)
}
