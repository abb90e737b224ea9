package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// ErrInvalidBounds is returned when a bounding box is empty or inverted.
var ErrInvalidBounds = errors.New("invalid bounding box")

// Business is a place discovered by a tile search. PlaceID is the identity;
// the remaining fields may be filled in later by details fetch or enrichment.
type Business struct {
	PlaceID     string    `json:"place_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Email       string    `json:"email,omitempty"`
	Emails      []string  `json:"emails,omitempty"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	Category    string    `json:"category"`
	Lat         float64   `json:"latitude"`
	Lng         float64   `json:"longitude"`
	Query       string    `json:"query"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// SameAs compares businesses by place id only.
func (b Business) SameAs(other Business) bool {
	return b.PlaceID == other.PlaceID
}

// EnrichmentResult is one candidate email address for a business.
type EnrichmentResult struct {
	Email      string  `json:"email"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// SearchConfig describes one top-level area search.
type SearchConfig struct {
	Query    string
	MinLat   float64
	MaxLat   float64
	MinLng   float64
	MaxLng   float64
	TileSize float64 // degrees

	// Optional filters applied after discovery
	Keywords       []string
	CategoryFilter string
	MinRating      float64
	HasWebsiteOnly bool
}

// Bound returns the search area as an orb.Bound.
func (c SearchConfig) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{c.MinLng, c.MinLat},
		Max: orb.Point{c.MaxLng, c.MaxLat},
	}
}

// Validate checks the bounding box and tile size.
func (c SearchConfig) Validate() error {
	if c.MinLat >= c.MaxLat || c.MinLng >= c.MaxLng {
		return fmt.Errorf("%w: lat [%.4f, %.4f] lng [%.4f, %.4f]",
			ErrInvalidBounds, c.MinLat, c.MaxLat, c.MinLng, c.MaxLng)
	}
	if c.MinLat < -90 || c.MaxLat > 90 || c.MinLng < -180 || c.MaxLng > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidBounds)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %v", c.TileSize)
	}
	return nil
}

// Matches applies the optional post-discovery filters.
func (c SearchConfig) Matches(b Business) bool {
	if c.MinRating > 0 && b.Rating < c.MinRating {
		return false
	}
	if c.HasWebsiteOnly && b.Website == "" {
		return false
	}
	if c.CategoryFilter != "" && !containsFold(b.Category, c.CategoryFilter) {
		return false
	}
	for _, kw := range c.Keywords {
		if !containsFold(b.Name, kw) && !containsFold(b.Category, kw) {
			return false
		}
	}
	return true
}
