package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Tile is a rectangular lat/lng cell of the search area. The edges never
// change after creation; Searched and BusinessCount are scan state.
type Tile struct {
	ID     string
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64

	Searched      bool
	BusinessCount int
}

// Center returns the midpoint of the tile as (lat, lng).
func (t *Tile) Center() (float64, float64) {
	return (t.MinLat + t.MaxLat) / 2, (t.MinLng + t.MaxLng) / 2
}

// Bound returns the tile as an orb.Bound. orb points are [lng, lat].
func (t *Tile) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{t.MinLng, t.MinLat},
		Max: orb.Point{t.MaxLng, t.MaxLat},
	}
}

// Contains reports whether the point lies in the tile, half-open on the max edges.
func (t *Tile) Contains(lat, lng float64) bool {
	return t.MinLat <= lat && lat < t.MaxLat && t.MinLng <= lng && lng < t.MaxLng
}

func (t *Tile) String() string {
	return fmt.Sprintf("%s[%.4f,%.4f - %.4f,%.4f]", t.ID, t.MinLat, t.MinLng, t.MaxLat, t.MaxLng)
}
