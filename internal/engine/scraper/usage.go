package scraper

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Category is a billable API family.
type Category string

const (
	TextSearch   Category = "text_search"
	PlaceDetails Category = "place_details"
)

// CostPer1000 is the published USD price per 1000 calls.
var CostPer1000 = map[Category]float64{
	TextSearch:   32.00,
	PlaceDetails: 17.00,
}

// Usage counts real calls and cache hits per category. It is owned by one
// Searcher; the zero value is ready to use.
type Usage struct {
	textSearchCalls       atomic.Int64
	textSearchCacheHits   atomic.Int64
	placeDetailsCalls     atomic.Int64
	placeDetailsCacheHits atomic.Int64
}

// RecordCall counts a request that went over the network.
func (u *Usage) RecordCall(cat Category) {
	switch cat {
	case TextSearch:
		u.textSearchCalls.Add(1)
	case PlaceDetails:
		u.placeDetailsCalls.Add(1)
	}
}

// RecordCacheHit counts a request served from the response cache.
func (u *Usage) RecordCacheHit(cat Category) {
	switch cat {
	case TextSearch:
		u.textSearchCacheHits.Add(1)
	case PlaceDetails:
		u.placeDetailsCacheHits.Add(1)
	}
}

// Snapshot returns the current counters.
func (u *Usage) Snapshot() UsageStats {
	return UsageStats{
		TextSearchCalls:       u.textSearchCalls.Load(),
		TextSearchCacheHits:   u.textSearchCacheHits.Load(),
		PlaceDetailsCalls:     u.placeDetailsCalls.Load(),
		PlaceDetailsCacheHits: u.placeDetailsCacheHits.Load(),
	}
}

// UsageStats is a point-in-time copy of the counters.
type UsageStats struct {
	TextSearchCalls       int64 `json:"text_search_calls"`
	TextSearchCacheHits   int64 `json:"text_search_cache_hits"`
	PlaceDetailsCalls     int64 `json:"place_details_calls"`
	PlaceDetailsCacheHits int64 `json:"place_details_cache_hits"`
}

// EstimatedCostUSD is the spend implied by real calls, rounded to 4 decimals.
func (s UsageStats) EstimatedCostUSD() float64 {
	return round4(cost(TextSearch, s.TextSearchCalls) + cost(PlaceDetails, s.PlaceDetailsCalls))
}

// EstimatedSavingsUSD is the spend avoided by cache hits, rounded to 4 decimals.
func (s UsageStats) EstimatedSavingsUSD() float64 {
	return round4(cost(TextSearch, s.TextSearchCacheHits) + cost(PlaceDetails, s.PlaceDetailsCacheHits))
}

func (s UsageStats) TotalCalls() int64 {
	return s.TextSearchCalls + s.PlaceDetailsCalls
}

func (s UsageStats) TotalCacheHits() int64 {
	return s.TextSearchCacheHits + s.PlaceDetailsCacheHits
}

func (s UsageStats) Summary() string {
	return fmt.Sprintf(
		"API Usage: %d text searches (%d cache hits), %d detail lookups (%d cache hits). Est. cost: $%.4f, Est. saved: $%.4f",
		s.TextSearchCalls, s.TextSearchCacheHits,
		s.PlaceDetailsCalls, s.PlaceDetailsCacheHits,
		s.EstimatedCostUSD(), s.EstimatedSavingsUSD(),
	)
}

func cost(cat Category, n int64) float64 {
	return float64(n) / 1000 * CostPer1000[cat]
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
