package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/places"
	"github.com/rendis/placetap/internal/model"
)

// fourTiles is a 2x2 grid of 0.01 degree tiles near the equator.
func fourTiles(t *testing.T) *geo.Grid {
	t.Helper()
	g := geo.NewGrid(0.01)
	if _, err := g.Create(model.SearchConfig{MinLat: 0, MaxLat: 0.02, MinLng: 0, MaxLng: 0.02}, 0); err != nil {
		t.Fatalf("creating grid: %v", err)
	}
	if g.Total() != 4 {
		t.Fatalf("expected 4 tiles, got %d", g.Total())
	}
	return g
}

// uniquePlaces answers every textsearch with n never-before-seen places.
func uniquePlaces(n int) func(string, url.Values) string {
	var seq atomic.Int64
	return func(string, url.Values) string {
		results := make([]string, n)
		for i := range results {
			id := seq.Add(1)
			results[i] = placeJSON(fmt.Sprintf("p%d", id), fmt.Sprintf("Place %d", id), 0.005, 0.005)
		}
		return page("OK", "", results...)
	}
}

type countingSink struct {
	mu  sync.Mutex
	ids []string
}

func (s *countingSink) InsertBatch(bs []model.Business) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bs {
		s.ids = append(s.ids, b.PlaceID)
	}
	return len(bs), nil
}

func TestRunStopsWhenTargetMet(t *testing.T) {
	api, client := newFakeAPI(t, uniquePlaces(5))
	s := testSearcher(t, client, nil)
	sink := &countingSink{}
	stats := &Stats{}

	var last Event
	res, err := Run(context.Background(), fourTiles(t), RunParams{
		Queries:     []string{"coffee"},
		TargetCount: 7,
	}, s, &RunOptions{
		Sink:           sink,
		Stats:          stats,
		OnEvent:        func(ev Event) { last = ev },
		SuppressStderr: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != TargetMet {
		t.Errorf("State = %s, want target_met", res.State)
	}
	if len(res.Businesses) != 7 {
		t.Errorf("expected exactly 7 businesses, got %d", len(res.Businesses))
	}
	if api.calls() != 2 {
		t.Errorf("expected to stop after 2 tiles, got %d calls", api.calls())
	}
	if len(sink.ids) != 7 || stats.Stored.Load() != 7 {
		t.Errorf("sink got %d, stats stored %d", len(sink.ids), stats.Stored.Load())
	}
	if last.State != TargetMet || stats.State() != TargetMet {
		t.Errorf("final event %s, stats state %s", last.State, stats.State())
	}
}

func TestRunExpansionTerminates(t *testing.T) {
	api, client := newFakeAPI(t, func(string, url.Values) string {
		return page(places.StatusZeroResults, "")
	})
	s := testSearcher(t, client, nil)

	res, err := Run(context.Background(), fourTiles(t), RunParams{
		Queries:     []string{"coffee"},
		TargetCount: 10,
	}, s, &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != Exhausted {
		t.Errorf("State = %s, want exhausted", res.State)
	}
	if res.Passes != DefaultMaxExpansions+1 || res.Expansions != DefaultMaxExpansions {
		t.Errorf("passes=%d expansions=%d", res.Passes, res.Expansions)
	}
	if res.Multiplier != DefaultMaxMultiplier {
		t.Errorf("Multiplier = %v, want %v", res.Multiplier, DefaultMaxMultiplier)
	}
	if api.calls() != 4*res.Passes {
		t.Errorf("expected every tile rescanned each pass, got %d calls", api.calls())
	}

	first, _ := strconv.Atoi(api.request(0).Get("radius"))
	final, _ := strconv.Atoi(api.request(api.calls() - 1).Get("radius"))
	if final <= first {
		t.Errorf("radius should grow across passes: first %d, final %d", first, final)
	}
}

func TestRunStopsAtMaxMultiplier(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page(places.StatusZeroResults, "")
	})
	s := testSearcher(t, client, nil)

	res, err := Run(context.Background(), fourTiles(t), RunParams{
		Queries:       []string{"coffee"},
		TargetCount:   10,
		MaxMultiplier: 2,
		MaxExpansions: 10,
	}, s, &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Passes != 3 || res.Multiplier != 2 {
		t.Errorf("passes=%d multiplier=%v, want 3 and 2", res.Passes, res.Multiplier)
	}
}

func TestRunEmptyRunEndsPassEarly(t *testing.T) {
	api, client := newFakeAPI(t, func(string, url.Values) string {
		return page(places.StatusZeroResults, "")
	})
	s := testSearcher(t, client, nil)

	res, err := Run(context.Background(), fourTiles(t), RunParams{
		Queries:        []string{"coffee"},
		TargetCount:    10,
		EmptyThreshold: 2,
		MaxExpansions:  1,
	}, s, &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != Exhausted || res.Passes != 2 {
		t.Errorf("state=%s passes=%d", res.State, res.Passes)
	}
	if api.calls() != 4 {
		t.Errorf("each pass should stop after 2 empty tiles, got %d calls", api.calls())
	}
}

func TestRunNeverReemitsAcrossPasses(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "",
			placeJSON("a", "A", 0.005, 0.005),
			placeJSON("b", "B", 0.015, 0.015))
	})
	s := testSearcher(t, client, nil)

	var emitted []string
	res, err := Run(context.Background(), fourTiles(t), RunParams{
		Queries:     []string{"coffee", "cafe"},
		TargetCount: 10,
	}, s, &RunOptions{
		SuppressStderr: true,
		OnBusinesses: func(bs []model.Business) {
			for _, b := range bs {
				emitted = append(emitted, b.PlaceID)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Businesses) != 2 || len(emitted) != 2 {
		t.Errorf("expected 2 unique businesses, got %d (emitted %v)", len(res.Businesses), emitted)
	}
	if res.Passes < 2 {
		t.Errorf("expected expansion passes, got %d", res.Passes)
	}
}

func TestRunCancelledKeepsResults(t *testing.T) {
	_, client := newFakeAPI(t, uniquePlaces(3))
	s := testSearcher(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := Run(ctx, fourTiles(t), RunParams{
		Queries:     []string{"coffee", "cafe"},
		TargetCount: 100,
	}, s, &RunOptions{
		SuppressStderr: true,
		OnBusinesses:   func([]model.Business) { cancel() },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != Cancelled {
		t.Errorf("State = %s, want cancelled", res.State)
	}
	if len(res.Businesses) != 3 {
		t.Errorf("expected the first batch, got %d", len(res.Businesses))
	}
}

func TestRunUntargetedScansOnce(t *testing.T) {
	api, client := newFakeAPI(t, func(string, url.Values) string {
		return page(places.StatusZeroResults, "")
	})
	s := testSearcher(t, client, nil)

	res, err := Run(context.Background(), fourTiles(t), RunParams{Queries: []string{"coffee"}}, s, &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Passes != 1 || api.calls() != 4 || res.State != Exhausted {
		t.Errorf("passes=%d calls=%d state=%s", res.Passes, api.calls(), res.State)
	}
}

func TestRunSubdividesSaturatedTiles(t *testing.T) {
	tests := []struct {
		name        string
		queries     []string
		perCall     int
		subdivideAt int
		minTile     float64
		wantTiles   int
		wantSplits  int64
		wantCalls   int
	}{
		{"one query at the cap", []string{"coffee"}, 2, 2, 0.5, 4, 1, 5},
		// Three queries below the cap must not add up to a split.
		{"queries below the cap", []string{"coffee", "cafe", "espresso"}, 25, 60, 0.05, 1, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, client := newFakeAPI(t, uniquePlaces(tt.perCall))
			s := testSearcher(t, client, nil)

			g := geo.NewGrid(1)
			if _, err := g.Create(model.SearchConfig{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}, 0); err != nil {
				t.Fatal(err)
			}
			stats := &Stats{}

			res, err := Run(context.Background(), g, RunParams{
				Queries:     tt.queries,
				SubdivideAt: tt.subdivideAt,
				MinTileSize: tt.minTile,
			}, s, &RunOptions{Stats: stats, SuppressStderr: true})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if g.Total() != tt.wantTiles {
				t.Errorf("live tiles = %d, want %d", g.Total(), tt.wantTiles)
			}
			if _, ok := g.Tile("tile_0"); ok == (tt.wantSplits > 0) {
				t.Errorf("parent tile in index = %v with %d splits", ok, tt.wantSplits)
			}
			if stats.Subdivided.Load() != tt.wantSplits {
				t.Errorf("subdivided = %d, want %d", stats.Subdivided.Load(), tt.wantSplits)
			}
			if api.calls() != tt.wantCalls || len(res.Businesses) != tt.wantCalls*tt.perCall {
				t.Errorf("calls=%d businesses=%d", api.calls(), len(res.Businesses))
			}
			if g.Searched() != tt.wantTiles {
				t.Errorf("searched = %d, want %d", g.Searched(), tt.wantTiles)
			}
		})
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	api, client := newFakeAPI(t, uniquePlaces(1))
	s := testSearcher(t, client, nil)
	noKey := testSearcher(t, places.NewClient("", "", 0), nil)

	tests := []struct {
		name     string
		grid     *geo.Grid
		queries  []string
		searcher *Searcher
		want     error
	}{
		{"missing key", fourTiles(t), []string{"q"}, noKey, places.ErrMissingAPIKey},
		{"no queries", fourTiles(t), nil, s, ErrNoQueries},
		{"empty grid", geo.NewGrid(0.1), []string{"q"}, s, ErrEmptyGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.grid, RunParams{Queries: tt.queries}, tt.searcher, &RunOptions{SuppressStderr: true})
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if api.calls() != 0 {
		t.Errorf("no request should be made on configuration errors, got %d", api.calls())
	}
}

func TestEmptyThreshold(t *testing.T) {
	for total, want := range map[int]int{1: 5, 49: 5, 60: 6, 200: 20} {
		if got := EmptyThreshold(total); got != want {
			t.Errorf("EmptyThreshold(%d) = %d, want %d", total, got, want)
		}
	}
}
