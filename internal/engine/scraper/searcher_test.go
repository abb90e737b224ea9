package scraper

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rendis/placetap/internal/engine/cache"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/places"
	"github.com/rendis/placetap/internal/model"
)

func smallTile() *model.Tile {
	return &model.Tile{ID: "tile_0", MinLat: 0, MaxLat: 0.01, MinLng: 0, MaxLng: 0.01}
}

func TestSearchTileRequestShape(t *testing.T) {
	api, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "")
	})
	s := testSearcher(t, client, nil)
	tile := smallTile()

	s.SearchTile(context.Background(), tile, "coffee", SearchOptions{RadiusMultiplier: 2})

	if api.calls() != 1 {
		t.Fatalf("expected 1 call, got %d", api.calls())
	}
	q := api.request(0)
	if q.Get("query") != "coffee" {
		t.Errorf("query should be the bare search term, got %q", q.Get("query"))
	}
	lat, lng := tile.Center()
	wantLoc := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	if q.Get("location") != wantLoc {
		t.Errorf("location = %q, want %q", q.Get("location"), wantLoc)
	}
	if want := strconv.Itoa(geo.SearchRadiusMeters(tile, 2)); q.Get("radius") != want {
		t.Errorf("radius = %q, want %q", q.Get("radius"), want)
	}
	if q.Get("key") != "test-key" {
		t.Errorf("missing key")
	}
	if q.Has("pagetoken") {
		t.Error("first page must not carry a pagetoken")
	}
}

func TestSearchTileParsesAndDeduplicates(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "",
			placeJSON("p1", "Blue Bottle", 0.004, 0.004, "coffee_shop", "cafe"),
			placeJSON("p2", "Joe's", 0.006, 0.006))
	})
	s := testSearcher(t, client, nil)

	first, stats := s.SearchTile(context.Background(), smallTile(), "coffee", SearchOptions{})
	if len(first) != 2 {
		t.Fatalf("expected 2 businesses, got %d", len(first))
	}
	if stats.Raw != 2 || stats.Pages != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	b := first[0]
	if b.PlaceID != "p1" || b.Name != "Blue Bottle" || b.Category != "Coffee Shop" {
		t.Errorf("unexpected business %+v", b)
	}
	if b.Rating != 4.5 || b.ReviewCount != 12 || b.Query != "coffee" {
		t.Errorf("unexpected optional fields %+v", b)
	}
	if first[1].Category != "" {
		t.Errorf("business without types should have no category, got %q", first[1].Category)
	}

	second, stats := s.SearchTile(context.Background(), smallTile(), "coffee", SearchOptions{})
	if len(second) != 0 {
		t.Errorf("expected no new businesses on repeat, got %d", len(second))
	}
	if stats.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", stats.Duplicates)
	}
	if s.Seen() != 2 {
		t.Errorf("Seen = %d, want 2", s.Seen())
	}
}

func TestSearchTileFollowsAtMostThreePages(t *testing.T) {
	api, client := newFakeAPI(t, func(_ string, q url.Values) string {
		switch q.Get("pagetoken") {
		case "":
			return page("OK", "T1", placeJSON("a", "A", 0.001, 0.001))
		case "T1":
			return page("OK", "T2", placeJSON("b", "B", 0.002, 0.002))
		case "T2":
			return page("OK", "T3", placeJSON("c", "C", 0.003, 0.003))
		}
		return page("OK", "", placeJSON("d", "D", 0.004, 0.004))
	})
	s := testSearcher(t, client, nil)

	got, stats := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if api.calls() != 3 {
		t.Errorf("expected 3 requests, got %d", api.calls())
	}
	if len(got) != 3 || stats.Pages != 3 {
		t.Errorf("expected 3 businesses over 3 pages, got %d over %d", len(got), stats.Pages)
	}
}

func TestSearchTileLaterPageErrorTruncates(t *testing.T) {
	_, client := newFakeAPI(t, func(_ string, q url.Values) string {
		if q.Get("pagetoken") == "" {
			return page("OK", "T1", placeJSON("a", "A", 0.001, 0.001), placeJSON("b", "B", 0.002, 0.002))
		}
		return page(places.StatusInvalidRequest, "")
	})
	s := testSearcher(t, client, nil)

	got, stats := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if len(got) != 2 {
		t.Errorf("expected first page results to survive, got %d", len(got))
	}
	if stats.Pages != 1 {
		t.Errorf("expected 1 successful page, got %d", stats.Pages)
	}
}

func TestSearchTileFirstPageErrorReturnsNothing(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return `{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`
	})
	s := testSearcher(t, client, nil)

	got, _ := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSearchTileTransportErrorReturnsNothing(t *testing.T) {
	client := places.NewClient("k", "", 0).WithBaseURL("http://127.0.0.1:1")
	s := testSearcher(t, client, nil)

	got, _ := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	if s.Usage().Snapshot().TextSearchCalls != 0 {
		t.Error("failed transport should not be billed")
	}
}

func TestSearchTileUsesCacheForFirstPageOnly(t *testing.T) {
	api, client := newFakeAPI(t, func(_ string, q url.Values) string {
		if q.Get("pagetoken") == "" {
			return page("OK", "T1", placeJSON("a", "A", 0.001, 0.001))
		}
		return page("OK", "", placeJSON("b", "B", 0.002, 0.002))
	})
	c := cache.New(filepath.Join(t.TempDir(), "cache"), time.Hour, nil)

	s1 := testSearcher(t, client, c)
	if got, _ := s1.SearchTile(context.Background(), smallTile(), "q", SearchOptions{}); len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if api.calls() != 2 {
		t.Fatalf("expected 2 network calls, got %d", api.calls())
	}
	if c.Size() != 1 {
		t.Errorf("only the first page should be cached, cache holds %d", c.Size())
	}

	s2 := testSearcher(t, client, c)
	got, _ := s2.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if len(got) != 2 {
		t.Fatalf("expected 2 results from the second searcher, got %d", len(got))
	}
	if api.calls() != 3 {
		t.Errorf("expected only the token page to hit the network, total calls %d", api.calls())
	}
	u := s2.Usage().Snapshot()
	if u.TextSearchCacheHits != 1 || u.TextSearchCalls != 1 {
		t.Errorf("unexpected usage %+v", u)
	}
}

func TestSearchTileDoesNotCacheFailures(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page(places.StatusZeroResults, "")
	})
	c := cache.New(filepath.Join(t.TempDir(), "cache"), time.Hour, nil)
	s := testSearcher(t, client, c)

	s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if c.Size() != 0 {
		t.Errorf("non-OK response should not be cached")
	}
	if s.Usage().Snapshot().TextSearchCalls != 1 {
		t.Errorf("the call is still billed")
	}
}

func TestSearchTileSkipsMalformedPlaces(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "",
			`"garbage"`,
			`{"place_id":"nogeo","name":"No Geometry"}`,
			placeJSON("ok", "Fine", 0.001, 0.001))
	})
	s := testSearcher(t, client, nil)

	got, stats := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if len(got) != 1 || got[0].PlaceID != "ok" {
		t.Fatalf("expected only the valid place, got %+v", got)
	}
	if stats.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", stats.Malformed)
	}
}

func TestSearchTileDefaultsMissingIdentity(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "",
			`{"geometry":{"location":{"lat":1.5,"lng":-2.25}}}`,
			`{"place_id":"","name":"Blank","geometry":{"location":{"lat":3,"lng":4}}}`)
	})
	s := testSearcher(t, client, nil)

	got, _ := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{})
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].PlaceID != "api_1.5_-2.25" {
		t.Errorf("PlaceID = %q", got[0].PlaceID)
	}
	if got[0].Name != "Unknown" {
		t.Errorf("Name = %q", got[0].Name)
	}
	if got[1].PlaceID != "api_3_4" || got[1].Name != "Blank" {
		t.Errorf("empty place_id: got %+v", got[1])
	}
}

func TestSearchTileDistanceFilter(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "",
			placeJSON("near", "Near", 0.005, 0.005),
			placeJSON("far", "Far", 0.05, 0.05))
	})
	s := testSearcher(t, client, nil)

	got, stats := s.SearchTile(context.Background(), smallTile(), "q", SearchOptions{
		HasCenter:   true,
		MaxRadiusKm: 1,
	})
	if len(got) != 1 || got[0].PlaceID != "near" {
		t.Fatalf("expected only the nearby place, got %+v", got)
	}
	if stats.OutOfRadius != 1 {
		t.Errorf("OutOfRadius = %d, want 1", stats.OutOfRadius)
	}
}

func TestSearchTileCancelledBeforePaging(t *testing.T) {
	api, client := newFakeAPI(t, func(string, url.Values) string {
		return page("OK", "T1", placeJSON("a", "A", 0.001, 0.001))
	})
	s := NewSearcher(client, nil, nil)
	s.SetPageTokenDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	got, _ := s.SearchTile(ctx, smallTile(), "q", SearchOptions{})
	if len(got) != 1 {
		t.Errorf("expected the first page result, got %d", len(got))
	}
	if api.calls() != 1 {
		t.Errorf("token page should not be requested after cancel, calls %d", api.calls())
	}
}

func TestFetchDetails(t *testing.T) {
	api, client := newFakeAPI(t, func(path string, q url.Values) string {
		if path != "/details/json" {
			t.Errorf("unexpected path %s", path)
		}
		if q.Get("fields") != places.DetailsFields || q.Get("place_id") != "p1" {
			t.Errorf("unexpected params %v", q)
		}
		return `{"status":"OK","result":{"formatted_phone_number":"(555) 010-0000","website":"https://example.com"}}`
	})
	c := cache.New(filepath.Join(t.TempDir(), "cache"), time.Hour, nil)
	s := testSearcher(t, client, c)

	b := model.Business{PlaceID: "p1"}
	if err := s.FetchDetails(context.Background(), &b); err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if b.Phone != "(555) 010-0000" || b.Website != "https://example.com" {
		t.Errorf("unexpected contact %+v", b)
	}

	again := model.Business{PlaceID: "p1"}
	if err := s.FetchDetails(context.Background(), &again); err != nil {
		t.Fatalf("FetchDetails (cached): %v", err)
	}
	if api.calls() != 1 {
		t.Errorf("second lookup should be served from cache, calls %d", api.calls())
	}
	u := s.Usage().Snapshot()
	if u.PlaceDetailsCalls != 1 || u.PlaceDetailsCacheHits != 1 {
		t.Errorf("unexpected usage %+v", u)
	}
}

func TestFetchDetailsStatusError(t *testing.T) {
	_, client := newFakeAPI(t, func(string, url.Values) string {
		return `{"status":"NOT_FOUND","result":{}}`
	})
	s := testSearcher(t, client, nil)

	err := s.FetchDetails(context.Background(), &model.Business{PlaceID: "gone"})
	var se *places.StatusError
	if !errors.As(err, &se) || se.Status != "NOT_FOUND" {
		t.Errorf("expected StatusError NOT_FOUND, got %v", err)
	}
}

func TestValidateRequiresKey(t *testing.T) {
	s := NewSearcher(places.NewClient("", "", 0), nil, nil)
	if !errors.Is(s.Validate(), places.ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", s.Validate())
	}
}
