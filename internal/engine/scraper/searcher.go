package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rendis/placetap/internal/engine/cache"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/places"
	"github.com/rendis/placetap/internal/model"
)

const (
	// DefaultMaxPages is how many textsearch pages are followed per tile/query.
	DefaultMaxPages = 3
	// DefaultPageTokenDelay lets a fresh next_page_token become valid server side.
	DefaultPageTokenDelay = 2 * time.Second
)

// Fetcher is the transport the Searcher needs. *places.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params cache.Params) ([]byte, error)
	TextSearchURL() string
	DetailsURL() string
	APIKey() string
}

// SearchOptions tune one SearchTile call.
type SearchOptions struct {
	// When HasCenter is set and MaxRadiusKm > 0, results farther than
	// MaxRadiusKm from the center are dropped.
	HasCenter   bool
	CenterLat   float64
	CenterLng   float64
	MaxRadiusKm float64

	// RadiusMultiplier scales the tile-derived bias radius. Zero means 1.
	RadiusMultiplier float64
}

func (o SearchOptions) filtersDistance() bool {
	return o.HasCenter && o.MaxRadiusKm > 0
}

// PageStats describes what a SearchTile call saw before dedup.
type PageStats struct {
	Pages       int
	Raw         int
	Malformed   int
	OutOfRadius int
	Duplicates  int
	RadiusM     int
}

// Searcher resolves tiles into businesses. The identity set and usage
// counters live for as long as the Searcher does.
type Searcher struct {
	client    Fetcher
	cache     *cache.Cache
	usage     *Usage
	logger    *log.Logger
	maxPages  int
	pageDelay time.Duration
	titler    cases.Caser

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSearcher builds a Searcher. respCache may be nil to disable caching.
func NewSearcher(client Fetcher, respCache *cache.Cache, logger *log.Logger) *Searcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Searcher{
		client:    client,
		cache:     respCache,
		usage:     &Usage{},
		logger:    logger,
		maxPages:  DefaultMaxPages,
		pageDelay: DefaultPageTokenDelay,
		titler:    cases.Title(language.English),
		seen:      make(map[string]struct{}),
	}
}

// SetPageTokenDelay overrides the wait before a next_page_token request.
func (s *Searcher) SetPageTokenDelay(d time.Duration) {
	s.pageDelay = d
}

// SetMaxPages overrides the page limit.
func (s *Searcher) SetMaxPages(n int) {
	if n > 0 {
		s.maxPages = n
	}
}

// Usage returns the live usage counters.
func (s *Searcher) Usage() *Usage {
	return s.usage
}

// Seen returns how many distinct place ids this Searcher has emitted.
func (s *Searcher) Seen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Validate reports configuration problems that make every call fail.
func (s *Searcher) Validate() error {
	if s.client == nil || s.client.APIKey() == "" {
		return places.ErrMissingAPIKey
	}
	return nil
}

// SearchTile runs a location-biased textsearch for query over tile and
// returns the businesses not seen before by this Searcher. API and
// transport failures are logged and yield whatever was gathered.
func (s *Searcher) SearchTile(ctx context.Context, tile *model.Tile, query string, opts SearchOptions) ([]model.Business, PageStats) {
	var stats PageStats

	multiplier := opts.RadiusMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	tileLat, tileLng := tile.Center()
	stats.RadiusM = geo.SearchRadiusMeters(tile, multiplier)
	location := formatCoord(tileLat) + "," + formatCoord(tileLng)

	s.logger.Printf("SEARCH tile=%s query=%q location=%s radius=%dm multiplier=%.1f",
		tile.ID, query, location, stats.RadiusM, multiplier)

	endpoint := s.client.TextSearchURL()
	var raws []json.RawMessage
	var token string

	for page := 0; page < s.maxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		// The search term goes in query alone; location bias is expressed
		// only through location+radius.
		params := cache.Params{
			"query":    query,
			"location": location,
			"radius":   strconv.Itoa(stats.RadiusM),
			"key":      s.client.APIKey(),
		}
		if token != "" {
			params["pagetoken"] = token
			if !sleepCtx(ctx, s.pageDelay) {
				break
			}
		}

		resp, err := s.fetchTextSearch(ctx, endpoint, params, token != "")
		if err != nil {
			s.logger.Printf("ERROR tile=%s page=%d query=%q err=%v", tile.ID, page+1, query, err)
			if page == 0 {
				return nil, stats
			}
			break
		}
		if !resp.OK() {
			if page == 0 {
				s.logger.Printf("API_STATUS tile=%s query=%q err=%v", tile.ID, query,
					&places.StatusError{Status: resp.Status, Message: resp.ErrorMessage})
				return nil, stats
			}
			s.logger.Printf("PAGE_TRUNCATED tile=%s page=%d status=%s", tile.ID, page+1, resp.Status)
			break
		}

		stats.Pages++
		raws = append(raws, resp.Results...)
		s.logger.Printf("PAGE tile=%s page=%d results=%d total=%d", tile.ID, page+1, len(resp.Results), len(raws))

		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	stats.Raw = len(raws)

	var out []model.Business
	for i, raw := range raws {
		b, err := s.toBusiness(raw, query)
		if err != nil {
			stats.Malformed++
			s.logger.Printf("SKIP tile=%s result=%d err=%v", tile.ID, i, err)
			continue
		}

		if opts.filtersDistance() && !geo.WithinRadius(opts.CenterLat, opts.CenterLng, b.Lat, b.Lng, opts.MaxRadiusKm) {
			stats.OutOfRadius++
			continue
		}

		if !s.claim(b.PlaceID) {
			stats.Duplicates++
			continue
		}
		out = append(out, b)
	}

	if stats.OutOfRadius > 0 {
		s.logger.Printf("FILTERED tile=%s outside=%d max_radius_km=%.2f", tile.ID, stats.OutOfRadius, opts.MaxRadiusKm)
	}
	s.logger.Printf("TILE_DONE tile=%s query=%q raw=%d new=%d dup=%d", tile.ID, query, stats.Raw, len(out), stats.Duplicates)
	return out, stats
}

// fetchTextSearch serves first pages from the cache when possible. Page-token
// requests always go to the network and are never stored.
func (s *Searcher) fetchTextSearch(ctx context.Context, endpoint string, params cache.Params, tokenPage bool) (*places.TextSearchResponse, error) {
	cacheable := s.cache != nil && !tokenPage

	if cacheable {
		if body, ok := s.cache.Get(endpoint, params); ok {
			if resp, err := places.DecodeTextSearch(body); err == nil {
				s.usage.RecordCacheHit(TextSearch)
				s.logger.Printf("CACHE_HIT endpoint=textsearch query=%q", params["query"])
				return resp, nil
			}
		}
	}

	body, err := s.client.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	s.usage.RecordCall(TextSearch)

	resp, err := places.DecodeTextSearch(body)
	if err != nil {
		return nil, err
	}
	if cacheable && resp.OK() {
		s.cache.Put(endpoint, params, body)
	}
	return resp, nil
}

// toBusiness converts one result. A missing or empty place_id gets the
// synthetic id api_<lat>_<lng>, and a missing name becomes "Unknown".
func (s *Searcher) toBusiness(raw json.RawMessage, query string) (model.Business, error) {
	p, err := places.DecodePlace(raw)
	if err != nil {
		return model.Business{}, err
	}
	lat, lng := p.Geometry.Location.Lat, p.Geometry.Location.Lng

	b := model.Business{
		PlaceID:   p.PlaceID,
		Name:      p.Name,
		Address:   p.FormattedAddress,
		Lat:       lat,
		Lng:       lng,
		Query:     query,
		ScrapedAt: time.Now(),
	}
	if b.PlaceID == "" {
		b.PlaceID = fmt.Sprintf("api_%s_%s", formatCoord(lat), formatCoord(lng))
	}
	if b.Name == "" {
		b.Name = "Unknown"
	}
	if p.Rating != nil {
		b.Rating = *p.Rating
	}
	if p.UserRatingsTotal != nil {
		b.ReviewCount = *p.UserRatingsTotal
	}
	if len(p.Types) > 0 {
		b.Category = s.titler.String(strings.ReplaceAll(p.Types[0], "_", " "))
	}
	return b, nil
}

// claim records id and reports whether it was new.
func (s *Searcher) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sleepCtx waits d or until ctx is done; it reports whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
