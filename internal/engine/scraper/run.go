package scraper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/model"
)

// State is the controller's position in the expansion state machine.
type State int32

const (
	Searching State = iota
	Expanding
	TargetMet
	Exhausted
	Cancelled
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Expanding:
		return "expanding"
	case TargetMet:
		return "target_met"
	case Exhausted:
		return "exhausted"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Done reports whether s is terminal.
func (s State) Done() bool {
	return s == TargetMet || s == Exhausted || s == Cancelled
}

const (
	DefaultMaxMultiplier = 3.0
	DefaultIncrement     = 0.5
	DefaultMaxExpansions = 4
	// DefaultSubdivideAt is the most a single textsearch can return over 3 pages.
	DefaultSubdivideAt = 60
	minEmptyThreshold  = 5
)

var (
	ErrNoQueries = errors.New("at least one query is required")
	ErrEmptyGrid = errors.New("grid has no tiles")
)

// RunParams control one bounded area search.
type RunParams struct {
	Queries []string
	// TargetCount stops the run once reached. Zero or less means scan the
	// grid once with no expansion.
	TargetCount int

	HasCenter   bool
	CenterLat   float64
	CenterLng   float64
	MaxRadiusKm float64

	StartMultiplier float64
	MaxMultiplier   float64
	Increment       float64
	MaxExpansions   int
	// EmptyThreshold overrides the consecutive-empty-tile trigger. Zero
	// derives it from the grid size.
	EmptyThreshold int

	// SubdivideAt splits a tile into quadrants during the first pass when a
	// single query over it returns at least this many raw results. Zero
	// disables subdivision.
	SubdivideAt int
	// MinTileSize stops subdivision below this edge length in degrees.
	MinTileSize float64
}

func (p RunParams) withDefaults() RunParams {
	if p.StartMultiplier <= 0 {
		p.StartMultiplier = 1
	}
	if p.MaxMultiplier <= 0 {
		p.MaxMultiplier = DefaultMaxMultiplier
	}
	if p.Increment <= 0 {
		p.Increment = DefaultIncrement
	}
	if p.MaxExpansions < 0 {
		p.MaxExpansions = 0
	}
	return p
}

// EmptyThreshold is the consecutive empty tiles tolerated before expanding:
// 10% of the grid, never fewer than 5.
func EmptyThreshold(totalTiles int) int {
	return max(minEmptyThreshold, int(0.1*float64(totalTiles)))
}

// Stats is live progress, safe to read while Run is in flight.
type Stats struct {
	TilesTotal atomic.Int64
	TilesDone  atomic.Int64
	Found      atomic.Int64
	Stored     atomic.Int64
	Filtered   atomic.Int64
	Errors     atomic.Int64
	Passes     atomic.Int64
	Expansions atomic.Int64
	Subdivided atomic.Int64
	EmptyRun   atomic.Int64
	multiplier atomic.Uint64
	state      atomic.Int32
}

func (s *Stats) Multiplier() float64 {
	return math.Float64frombits(s.multiplier.Load())
}

func (s *Stats) setMultiplier(m float64) {
	s.multiplier.Store(math.Float64bits(m))
}

func (s *Stats) State() State {
	return State(s.state.Load())
}

func (s *Stats) setState(st State) {
	s.state.Store(int32(st))
}

// Sink persists accepted businesses as they are found.
type Sink interface {
	InsertBatch(businesses []model.Business) (int, error)
}

// Event is emitted on every state change and after each tile.
type Event struct {
	State      State
	Pass       int
	Multiplier float64
	Tile       *model.Tile
	NewCount   int
	Found      int
}

// RunOptions provides optional hooks for the controller.
type RunOptions struct {
	// OnBusinesses receives each accepted batch in discovery order.
	OnBusinesses func([]model.Business)
	// OnEvent observes state transitions and tile completions.
	OnEvent func(Event)
	// Stats allows passing an external Stats object for live progress tracking.
	Stats *Stats
	// Sink, if set, receives every accepted batch.
	Sink Sink
	// GeoFilter, if set, discards businesses outside the polygon.
	GeoFilter orb.MultiPolygon
	// Keep, if set, discards businesses it returns false for.
	Keep func(model.Business) bool
	// Details fetches phone and website for every business that passed Keep,
	// before it is counted or stored.
	Details bool
	// KeepDetailed, if set, runs after Details and discards businesses it
	// returns false for.
	KeepDetailed func(model.Business) bool
	// SuppressStderr disables the built-in stderr progress reporter.
	SuppressStderr bool
}

// Result is the outcome of a Run. Exhausted is a normal outcome.
type Result struct {
	Businesses []model.Business
	State      State
	Multiplier float64
	Passes     int
	Expansions int
	Usage      UsageStats
}

// Run drives searcher over grid until the target is met, the expansion
// budget is spent or ctx is cancelled. Configuration problems are returned
// before any tile is searched; cancellation is reported through
// Result.State with a nil error.
func Run(ctx context.Context, grid *geo.Grid, params RunParams, searcher *Searcher, opts *RunOptions) (*Result, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	if err := searcher.Validate(); err != nil {
		return nil, err
	}
	if len(params.Queries) == 0 {
		return nil, ErrNoQueries
	}
	if grid == nil || grid.Total() == 0 {
		return nil, ErrEmptyGrid
	}
	params = params.withDefaults()

	stats := opts.Stats
	if stats == nil {
		stats = &Stats{}
	}
	stats.TilesTotal.Store(int64(grid.Total()))
	stats.setMultiplier(params.StartMultiplier)
	stats.setState(Searching)

	c := &controller{
		grid:     grid,
		params:   params,
		searcher: searcher,
		opts:     opts,
		stats:    stats,
		start:    time.Now(),
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		c.report(done)
	}()

	res := c.run(ctx)

	close(done)
	<-finished

	if !opts.SuppressStderr {
		fmt.Fprintln(os.Stderr, c.progressLine())
	}
	searcher.logger.Printf("DONE state=%s found=%d passes=%d expansions=%d multiplier=%.1f %s",
		res.State, len(res.Businesses), res.Passes, res.Expansions, res.Multiplier, res.Usage.Summary())
	return res, nil
}

type controller struct {
	grid     *geo.Grid
	params   RunParams
	searcher *Searcher
	opts     *RunOptions
	stats    *Stats
	start    time.Time

	found      []model.Business
	multiplier float64
	pass       int
	expansions int
}

func (c *controller) run(ctx context.Context) *Result {
	c.multiplier = c.params.StartMultiplier
	logger := c.searcher.logger

	for {
		c.pass++
		c.stats.Passes.Store(int64(c.pass))
		c.transition(Searching)
		logger.Printf("PASS n=%d multiplier=%.1f tiles=%d found=%d", c.pass, c.multiplier, c.grid.Total(), len(c.found))

		st, triggered := c.scanPass(ctx)
		if st.Done() {
			return c.finish(st)
		}

		if c.params.TargetCount <= 0 {
			return c.finish(Exhausted)
		}
		if !c.canExpand() {
			if triggered {
				logger.Printf("EXHAUSTED reason=empty_run multiplier=%.1f expansions=%d", c.multiplier, c.expansions)
			} else {
				logger.Printf("EXHAUSTED reason=pass_complete multiplier=%.1f expansions=%d", c.multiplier, c.expansions)
			}
			return c.finish(Exhausted)
		}

		c.transition(Expanding)
		c.expansions++
		c.multiplier += c.params.Increment
		c.stats.Expansions.Store(int64(c.expansions))
		c.stats.setMultiplier(c.multiplier)
		c.grid.ResetSearched()
		c.stats.TilesDone.Store(0)
		logger.Printf("EXPAND attempt=%d multiplier=%.1f found=%d target=%d", c.expansions, c.multiplier, len(c.found), c.params.TargetCount)
	}
}

func (c *controller) canExpand() bool {
	return c.multiplier < c.params.MaxMultiplier && c.expansions < c.params.MaxExpansions
}

// scanPass visits every active unsearched tile once, including children
// appended by subdivision during the pass. It returns a terminal state, or
// Searching with triggered set when the empty-run threshold stopped the pass.
func (c *controller) scanPass(ctx context.Context) (State, bool) {
	threshold := c.params.EmptyThreshold
	if threshold <= 0 {
		threshold = EmptyThreshold(c.grid.Total())
	}
	emptyRun := 0
	c.stats.EmptyRun.Store(0)

	for i := 0; i < c.grid.Len(); i++ {
		tile, active := c.grid.At(i)
		if !active || tile.Searched {
			continue
		}
		if ctx.Err() != nil {
			return Cancelled, false
		}

		newCount, peak, st := c.scanTile(ctx, tile)
		if st.Done() {
			return st, false
		}
		if ctx.Err() != nil {
			return Cancelled, false
		}

		c.grid.MarkSearched(tile.ID, newCount)
		c.stats.TilesDone.Add(1)
		c.emit(Event{State: Searching, Pass: c.pass, Multiplier: c.multiplier, Tile: tile, NewCount: newCount, Found: len(c.found)})

		if c.shouldSubdivide(tile, peak) {
			children, err := c.grid.Subdivide(tile.ID)
			if err != nil {
				c.searcher.logger.Printf("ERROR subdivide tile=%s err=%v", tile.ID, err)
			} else {
				c.stats.Subdivided.Add(1)
				c.stats.TilesTotal.Store(int64(c.grid.Total()))
				c.searcher.logger.Printf("SUBDIVIDE tile=%s peak=%d children=%d", tile.ID, peak, len(children))
			}
		}

		if newCount == 0 {
			emptyRun++
		} else {
			emptyRun = 0
		}
		c.stats.EmptyRun.Store(int64(emptyRun))

		if emptyRun >= threshold && c.belowTarget() {
			c.searcher.logger.Printf("EMPTY_RUN tiles=%d threshold=%d found=%d", emptyRun, threshold, len(c.found))
			return Searching, true
		}
	}
	return Searching, false
}

// scanTile runs every query over tile. peak is the most raw results any
// single query returned. It returns TargetMet or Cancelled when the run must
// stop mid-tile.
func (c *controller) scanTile(ctx context.Context, tile *model.Tile) (newCount, peak int, st State) {
	opts := SearchOptions{
		HasCenter:        c.params.HasCenter,
		CenterLat:        c.params.CenterLat,
		CenterLng:        c.params.CenterLng,
		MaxRadiusKm:      c.params.MaxRadiusKm,
		RadiusMultiplier: c.multiplier,
	}

	for _, q := range c.params.Queries {
		if ctx.Err() != nil {
			return newCount, peak, Cancelled
		}

		batch, ps := c.searcher.SearchTile(ctx, tile, q, opts)
		peak = max(peak, ps.Raw)
		c.stats.Filtered.Add(int64(ps.OutOfRadius))

		batch = c.filter(ctx, batch)
		if c.params.TargetCount > 0 {
			if remaining := c.params.TargetCount - len(c.found); len(batch) > remaining {
				batch = batch[:remaining]
			}
		}
		if len(batch) > 0 {
			c.accept(batch)
			newCount += len(batch)
		}

		if c.params.TargetCount > 0 && len(c.found) >= c.params.TargetCount {
			c.grid.MarkSearched(tile.ID, newCount)
			c.stats.TilesDone.Add(1)
			return newCount, peak, TargetMet
		}
	}
	return newCount, peak, Searching
}

func (c *controller) filter(ctx context.Context, batch []model.Business) []model.Business {
	before := len(batch)
	if len(c.opts.GeoFilter) > 0 {
		batch = geo.FilterInPolygon(batch, c.opts.GeoFilter)
	}
	batch = keepIf(batch, c.opts.Keep)
	if c.opts.Details {
		c.fetchDetails(ctx, batch)
	}
	batch = keepIf(batch, c.opts.KeepDetailed)
	c.stats.Filtered.Add(int64(before - len(batch)))
	return batch
}

func keepIf(batch []model.Business, keep func(model.Business) bool) []model.Business {
	if keep == nil {
		return batch
	}
	kept := batch[:0:0]
	for _, b := range batch {
		if keep(b) {
			kept = append(kept, b)
		}
	}
	return kept
}

// fetchDetails completes batch in place. Failures leave the contact fields
// empty and are counted as errors.
func (c *controller) fetchDetails(ctx context.Context, batch []model.Business) {
	for i := range batch {
		if ctx.Err() != nil {
			return
		}
		if err := c.searcher.FetchDetails(ctx, &batch[i]); err != nil {
			c.stats.Errors.Add(1)
			c.searcher.logger.Printf("DETAILS_ERROR place=%s err=%v", batch[i].PlaceID, err)
		}
	}
}

func (c *controller) accept(batch []model.Business) {
	c.found = append(c.found, batch...)
	c.stats.Found.Store(int64(len(c.found)))

	if c.opts.Sink != nil {
		inserted, err := c.opts.Sink.InsertBatch(batch)
		if err != nil {
			c.stats.Errors.Add(1)
			c.searcher.logger.Printf("ERROR store batch=%d err=%v", len(batch), err)
		} else {
			c.stats.Stored.Add(int64(inserted))
		}
	}
	if c.opts.OnBusinesses != nil {
		c.opts.OnBusinesses(batch)
	}
}

// shouldSubdivide reports whether one textsearch over tile hit the result cap.
func (c *controller) shouldSubdivide(tile *model.Tile, peak int) bool {
	if c.params.SubdivideAt <= 0 || c.pass != 1 || peak < c.params.SubdivideAt {
		return false
	}
	half := math.Min(tile.MaxLat-tile.MinLat, tile.MaxLng-tile.MinLng) / 2
	return half >= c.params.MinTileSize
}

// belowTarget is false when no target is set, so an untargeted run always
// completes its single pass.
func (c *controller) belowTarget() bool {
	return c.params.TargetCount > 0 && len(c.found) < c.params.TargetCount
}

func (c *controller) transition(st State) {
	c.stats.setState(st)
	c.emit(Event{State: st, Pass: c.pass, Multiplier: c.multiplier, Found: len(c.found)})
}

func (c *controller) emit(ev Event) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}

func (c *controller) finish(st State) *Result {
	c.transition(st)
	return &Result{
		Businesses: c.found,
		State:      st,
		Multiplier: c.multiplier,
		Passes:     c.pass,
		Expansions: c.expansions,
		Usage:      c.searcher.Usage().Snapshot(),
	}
}

func (c *controller) progressLine() string {
	elapsed := time.Since(c.start).Truncate(time.Second)
	return fmt.Sprintf("\r[%d/%d tiles] pass %d x%.1f | %d found | %d stored | %d filtered | %s | %s",
		c.stats.TilesDone.Load(), c.stats.TilesTotal.Load(),
		c.stats.Passes.Load(), c.stats.Multiplier(),
		c.stats.Found.Load(), c.stats.Stored.Load(), c.stats.Filtered.Load(),
		c.stats.State(), elapsed)
}

// report prints a stderr progress line every 2s and logs every 10s until done closes.
func (c *controller) report(done <-chan struct{}) {
	var tick <-chan time.Time
	if !c.opts.SuppressStderr {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}
	logTicker := time.NewTicker(10 * time.Second)
	defer logTicker.Stop()

	for {
		select {
		case <-tick:
			fmt.Fprint(os.Stderr, c.progressLine())
		case <-logTicker.C:
			elapsed := time.Since(c.start).Truncate(time.Second)
			u := c.searcher.Usage().Snapshot()
			c.searcher.logger.Printf("PROGRESS tiles=%d/%d pass=%d multiplier=%.1f found=%d stored=%d calls=%d cache_hits=%d elapsed=%s",
				c.stats.TilesDone.Load(), c.stats.TilesTotal.Load(),
				c.stats.Passes.Load(), c.stats.Multiplier(),
				c.stats.Found.Load(), c.stats.Stored.Load(),
				u.TextSearchCalls, u.TextSearchCacheHits, elapsed)
		case <-done:
			return
		}
	}
}
