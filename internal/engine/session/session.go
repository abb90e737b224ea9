package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/cache"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/places"
	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/model"
)

// ErrNoArea is returned when a request names no search area.
var ErrNoArea = errors.New("no search area: set bounds, a center and radius, a city or a region")

// Request is one scan as chosen by the user. Zero values fall back to the config.
type Request struct {
	Query   string
	Extra   []string
	Smart   bool
	Details bool

	// Area, in precedence order: Bounds, Center, City, Region, Polygon.
	Bounds   []float64 // minLat, maxLat, minLng, maxLng
	Center   bool
	Lat      float64
	Lng      float64
	RadiusKm float64
	City     string
	Region   string
	// Polygon also fences results whichever area is chosen.
	Polygon orb.MultiPolygon

	TileSize float64
	Overlap  *float64
	Target   int
	Proxy    string
	// APIBase overrides the Places endpoint.
	APIBase string

	MinRating   float64
	WebsiteOnly bool
	Category    string
	Keywords    []string

	OutputDir string
	Name      string
}

// Queries returns the query list the run iterates over.
func (r Request) Queries() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			return
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
	}
	if r.Smart {
		for _, q := range scraper.QueryVariations(r.Query) {
			add(q)
		}
	} else {
		add(r.Query)
	}
	for _, q := range r.Extra {
		add(q)
	}
	return out
}

// ResolveArea turns the request's area fields into a search box. Cities not
// in the built-in table and regions are looked up with gc.
func ResolveArea(ctx context.Context, req Request, gc *geo.Geocoder) (model.SearchConfig, error) {
	sc := model.SearchConfig{
		Query:          req.Query,
		Keywords:       req.Keywords,
		CategoryFilter: req.Category,
		MinRating:      req.MinRating,
		HasWebsiteOnly: req.WebsiteOnly,
	}

	switch {
	case len(req.Bounds) > 0:
		if len(req.Bounds) != 4 {
			return sc, fmt.Errorf("%w: want 4 values, got %d", model.ErrInvalidBounds, len(req.Bounds))
		}
		sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng = req.Bounds[0], req.Bounds[1], req.Bounds[2], req.Bounds[3]
	case req.Center:
		if req.RadiusKm <= 0 {
			return sc, fmt.Errorf("radius must be positive, got %v", req.RadiusKm)
		}
		sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng = geo.BoundsAround(req.Lat, req.Lng, req.RadiusKm)
	case req.City != "":
		if minLat, maxLat, minLng, maxLng, ok := geo.CityBounds(req.City); ok {
			sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng = minLat, maxLat, minLng, maxLng
			break
		}
		if err := geocode(ctx, gc, req.City, &sc); err != nil {
			return sc, err
		}
	case req.Region != "":
		if err := geocode(ctx, gc, req.Region, &sc); err != nil {
			return sc, err
		}
	case len(req.Polygon) > 0:
		b := req.Polygon.Bound()
		sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng = b.Min.Y(), b.Max.Y(), b.Min.X(), b.Max.X()
	default:
		return sc, ErrNoArea
	}
	return sc, nil
}

func geocode(ctx context.Context, gc *geo.Geocoder, place string, sc *model.SearchConfig) error {
	if gc == nil {
		gc = geo.NewGeocoder()
	}
	minLat, maxLat, minLng, maxLng, err := gc.Bounds(ctx, place)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", place, err)
	}
	sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng = minLat, maxLat, minLng, maxLng
	return nil
}

// Session owns everything one scan writes: the grid, the sqlite project,
// the session log and the searcher with its cache.
type Session struct {
	Search   model.SearchConfig
	Params   scraper.RunParams
	Grid     *geo.Grid
	Searcher *scraper.Searcher
	Store    *storage.Store
	Logger   *log.Logger
	RunID    string
	DBPath   string
	LogPath  string
	Details  bool

	overlap float64
	fence   orb.MultiPolygon
	logFile *os.File
}

// Open validates the request against cfg, builds the grid and opens the
// project files. Nothing is written when the request is invalid.
func Open(ctx context.Context, cfg *config.Config, req Request, gc *geo.Geocoder) (*Session, error) {
	apiKey := cfg.ResolvedAPIKey()
	if apiKey == "" {
		return nil, places.ErrMissingAPIKey
	}
	queries := req.Queries()
	if len(queries) == 0 {
		return nil, scraper.ErrNoQueries
	}

	sc, err := ResolveArea(ctx, req, gc)
	if err != nil {
		return nil, err
	}

	requested := req.TileSize
	if requested <= 0 {
		requested = cfg.TileSize
	}
	sc.TileSize = geo.EffectiveTileSize(requested, sc, cfg.MaxTiles, cfg.MinTileSize)

	overlap := cfg.Overlap
	if req.Overlap != nil {
		overlap = *req.Overlap
	}
	grid := geo.NewGrid(sc.TileSize)
	if _, err := grid.Create(sc, overlap); err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	base := req.Name
	if base == "" {
		base = "placetap_" + time.Now().Format("20060102_150405")
	}

	s := &Session{
		Search:  sc,
		Grid:    grid,
		DBPath:  filepath.Join(outDir, base+".db"),
		LogPath: filepath.Join(outDir, base+".log"),
		Details: req.Details || req.WebsiteOnly,
		overlap: overlap,
		fence:   req.Polygon,
	}

	s.logFile, err = os.Create(s.LogPath)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	s.Logger = log.New(s.logFile, "", log.LstdFlags)
	s.Logger.Printf("SESSION_START queries=%q bounds=[%.4f,%.4f,%.4f,%.4f] tile_size=%.4f overlap=%.2f tiles=%d",
		queries, sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng, sc.TileSize, overlap, grid.Total())

	respCache := cache.New(cfg.ResolvedCacheDir(), cfg.CacheTTLDuration(), s.Logger)
	client := places.NewClient(apiKey, req.Proxy, cfg.MinRequestDelayDuration())
	if req.APIBase != "" {
		client.WithBaseURL(req.APIBase)
	}
	s.Searcher = scraper.NewSearcher(client, respCache, s.Logger)
	s.Searcher.SetPageTokenDelay(cfg.PageTokenDelayDuration())

	s.Store, err = storage.NewStore(s.DBPath)
	if err != nil {
		s.logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s.RunID, err = s.Store.BeginRun(sc, s.target(cfg, req))
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Params = scraper.RunParams{
		Queries:        queries,
		TargetCount:    s.target(cfg, req),
		HasCenter:      req.Center && len(req.Bounds) == 0,
		CenterLat:      req.Lat,
		CenterLng:      req.Lng,
		MaxRadiusKm:    req.RadiusKm,
		MaxMultiplier:  cfg.Expansion.MaxMultiplier,
		Increment:      cfg.Expansion.Increment,
		MaxExpansions:  cfg.Expansion.MaxAttempts,
		EmptyThreshold: cfg.EmptyTileThreshold,
		SubdivideAt:    cfg.SubdivideAt,
		MinTileSize:    cfg.MinTileSize,
	}
	return s, nil
}

func (s *Session) target(cfg *config.Config, req Request) int {
	if req.Target > 0 {
		return req.Target
	}
	return cfg.TargetCount
}

// Overlap returns the tile overlap the grid was built with.
func (s *Session) Overlap() float64 {
	return s.overlap
}

// Run executes the scan, stores every accepted business and records the
// outcome on the run row. With details enabled each business is completed
// with phone and website before it counts toward the target, so website-only
// runs never store or count businesses without one.
func (s *Session) Run(ctx context.Context, opts *scraper.RunOptions) (*scraper.Result, error) {
	var o scraper.RunOptions
	if opts != nil {
		o = *opts
	}
	o.Sink = s
	if len(o.GeoFilter) == 0 {
		o.GeoFilter = s.fence
	}

	// The website only comes from details, so that check runs after them.
	pre := s.Search
	pre.HasWebsiteOnly = false
	o.Keep = pre.Matches
	o.Details = s.Details
	if s.Search.HasWebsiteOnly {
		o.KeepDetailed = func(b model.Business) bool { return b.Website != "" }
	}

	res, err := scraper.Run(ctx, s.Grid, s.Params, s.Searcher, &o)
	if err != nil {
		s.Logger.Printf("ERROR run err=%v", err)
		return nil, err
	}

	if err := s.Store.FinishRun(storage.Run{
		ID:         s.RunID,
		State:      res.State.String(),
		Found:      len(res.Businesses),
		Passes:     res.Passes,
		Multiplier: res.Multiplier,
		APICalls:   res.Usage.TotalCalls(),
		CacheHits:  res.Usage.TotalCacheHits(),
		CostUSD:    res.Usage.EstimatedCostUSD(),
	}); err != nil {
		s.Logger.Printf("ERROR finish_run err=%v", err)
		return res, err
	}
	return res, nil
}

// InsertBatch stores a batch accepted by the run. Businesses already in the
// project from an earlier run keep their row but get the fresh contact fields.
func (s *Session) InsertBatch(businesses []model.Business) (int, error) {
	inserted, err := s.Store.InsertBatch(businesses)
	if err != nil || !s.Details {
		return inserted, err
	}
	for _, b := range businesses {
		if b.Phone == "" && b.Website == "" {
			continue
		}
		if err := s.Store.UpdateContact(b.PlaceID, b.Phone, b.Website); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// Close releases the store and the log file.
func (s *Session) Close() error {
	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.logFile != nil {
		s.Logger.Printf("SESSION_END")
		errs = append(errs, s.logFile.Close())
	}
	return errors.Join(errs...)
}
