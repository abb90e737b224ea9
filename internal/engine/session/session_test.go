package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/places"
	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.APIKey = "test-key"
	cfg.CacheDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.MinRequestDelay = "0s"
	cfg.PageTokenDelay = "0s"
	return cfg
}

// fakePlaces answers every textsearch with places a and b, and details with
// a website for a only.
func fakePlaces(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/details/json") {
			if r.URL.Query().Get("place_id") == "a" {
				fmt.Fprint(w, `{"status":"OK","result":{"formatted_phone_number":"555-0100","website":"https://a.example"}}`)
				return
			}
			fmt.Fprint(w, `{"status":"OK","result":{"formatted_phone_number":"555-0199"}}`)
			return
		}
		fmt.Fprint(w, `{"status":"OK","results":[
			{"place_id":"a","name":"Alpha Pizza","formatted_address":"1 Main","geometry":{"location":{"lat":0.004,"lng":0.004}},"rating":4.6,"types":["restaurant"]},
			{"place_id":"b","name":"Beta Pizza","formatted_address":"2 Main","geometry":{"location":{"lat":0.006,"lng":0.006}},"rating":3.9,"types":["restaurant"]}
		]}`)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRequestQueries(t *testing.T) {
	req := Request{Query: " pizza ", Extra: []string{"Pizza", "pasta", ""}}
	got := req.Queries()
	want := []string{"pizza", "pasta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Queries() = %v, want %v", got, want)
	}

	smart := Request{Query: "coffee shop", Smart: true}.Queries()
	if len(smart) < 2 || smart[0] != "coffee shop" {
		t.Errorf("smart queries = %v, want original first plus variations", smart)
	}
}

func TestResolveArea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Nowhere" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"boundingbox":["40.31","40.64","-3.89","-3.51"],"display_name":"Madrid"}]`))
	}))
	defer srv.Close()
	gc := geo.NewGeocoder()
	gc.BaseURL = srv.URL

	tests := []struct {
		name    string
		req     Request
		want    [4]float64
		wantErr error
		anyErr  bool
	}{
		{name: "bounds", req: Request{Bounds: []float64{1, 2, 3, 4}}, want: [4]float64{1, 2, 3, 4}},
		{name: "short bounds", req: Request{Bounds: []float64{1, 2}}, wantErr: model.ErrInvalidBounds},
		{name: "city table", req: Request{City: "New York"}, want: [4]float64{40.4774, 40.9176, -74.2591, -73.7004}},
		{name: "city geocoded", req: Request{City: "Madrid"}, want: [4]float64{40.31, 40.64, -3.89, -3.51}},
		{name: "region", req: Request{Region: "Comunidad de Madrid"}, want: [4]float64{40.31, 40.64, -3.89, -3.51}},
		{name: "region not found", req: Request{Region: "Nowhere"}, anyErr: true},
		{name: "zero radius", req: Request{Center: true, Lat: 1, Lng: 1}, anyErr: true},
		{name: "nothing", req: Request{Query: "pizza"}, wantErr: ErrNoArea},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := ResolveArea(context.Background(), tt.req, gc)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			case tt.anyErr:
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
			got := [4]float64{sc.MinLat, sc.MaxLat, sc.MinLng, sc.MaxLng}
			if got != tt.want {
				t.Errorf("bounds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveAreaCenter(t *testing.T) {
	sc, err := ResolveArea(context.Background(), Request{Center: true, Lat: 40.7, Lng: -74, RadiusKm: 5}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !(sc.MinLat < 40.7 && 40.7 < sc.MaxLat && sc.MinLng < -74 && -74 < sc.MaxLng) {
		t.Errorf("center outside box %+v", sc)
	}
}

func TestOpenRequiresAPIKey(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	cfg := testConfig(t)
	cfg.APIKey = ""

	_, err := Open(context.Background(), cfg, Request{Query: "pizza", Bounds: []float64{0, 1, 0, 1}}, nil)
	if !errors.Is(err, places.ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	entries, _ := os.ReadDir(cfg.OutputDir)
	if len(entries) != 0 {
		t.Errorf("output dir has %d entries, want none", len(entries))
	}
}

func TestOpenRejectsEmptyQuery(t *testing.T) {
	_, err := Open(context.Background(), testConfig(t), Request{Bounds: []float64{0, 1, 0, 1}}, nil)
	if !errors.Is(err, scraper.ErrNoQueries) {
		t.Fatalf("err = %v, want ErrNoQueries", err)
	}
}

func TestOpenAppliesTileSizing(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxTiles = 4
	cfg.MinTileSize = 0.01

	s, err := Open(context.Background(), cfg, Request{Query: "pizza", Bounds: []float64{0, 1, 0, 1}, TileSize: 0.1, Name: "sizing"}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if s.Search.TileSize != 0.5 {
		t.Errorf("tile size = %v, want 0.5 to stay under 4 tiles", s.Search.TileSize)
	}
	if _, err := os.Stat(s.DBPath); err != nil {
		t.Errorf("db not created: %v", err)
	}
	if _, err := os.Stat(s.LogPath); err != nil {
		t.Errorf("log not created: %v", err)
	}
}

func TestSessionRunWithDetails(t *testing.T) {
	cfg := testConfig(t)
	req := Request{
		Query:   "pizza",
		Bounds:  []float64{0, 0.01, 0, 0.01},
		Details: true,
		APIBase: fakePlaces(t),
		Name:    "details",
	}
	s, err := Open(context.Background(), cfg, req, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	res, err := s.Run(context.Background(), &scraper.RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != scraper.Exhausted {
		t.Errorf("state = %s, want exhausted", res.State)
	}
	if len(res.Businesses) != 2 {
		t.Fatalf("got %d businesses, want 2", len(res.Businesses))
	}

	stored, err := s.Store.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d, want 2", len(stored))
	}
	if stored[0].Name != "Alpha Pizza" || stored[0].Website != "https://a.example" || stored[0].Phone != "555-0100" {
		t.Errorf("contact not stored: %+v", stored[0])
	}

	runs, err := s.Store.Runs()
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].State != "exhausted" || runs[0].Found != 2 || runs[0].APICalls != 3 {
		t.Errorf("run row = %+v", runs)
	}
}

func TestSessionRunFilters(t *testing.T) {
	cfg := testConfig(t)
	req := Request{
		Query:       "pizza",
		Bounds:      []float64{0, 0.01, 0, 0.01},
		WebsiteOnly: true,
		MinRating:   3.5,
		APIBase:     fakePlaces(t),
		Name:        "filters",
	}
	s, err := Open(context.Background(), cfg, req, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if !s.Details {
		t.Fatal("website-only should enable details")
	}

	res, err := s.Run(context.Background(), &scraper.RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Businesses) != 1 || res.Businesses[0].PlaceID != "a" {
		t.Errorf("businesses = %+v, want only a", res.Businesses)
	}
}

func TestSessionPolygonAreaAndFence(t *testing.T) {
	fence, err := geo.ParsePolygon([]byte(`{"type":"Polygon","coordinates":[[[0,0],[0.01,0],[0,0.01],[0,0]]]}`))
	if err != nil {
		t.Fatalf("parse polygon: %v", err)
	}
	req := Request{Query: "pizza", Polygon: fence, APIBase: fakePlaces(t), Name: "fence"}

	sc, err := ResolveArea(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sc.MinLat != 0 || sc.MaxLat != 0.01 || sc.MinLng != 0 || sc.MaxLng != 0.01 {
		t.Errorf("area = %+v, want the polygon bound", sc)
	}

	s, err := Open(context.Background(), testConfig(t), req, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	res, err := s.Run(context.Background(), &scraper.RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Businesses) != 1 || res.Businesses[0].PlaceID != "a" {
		t.Errorf("businesses = %+v, want only a inside the triangle", res.Businesses)
	}
}

func TestSessionWebsiteOnlyStoresAndCountsSurvivors(t *testing.T) {
	req := Request{
		Query:       "pizza",
		Bounds:      []float64{0, 0.01, 0, 0.01},
		WebsiteOnly: true,
		Target:      2,
		APIBase:     fakePlaces(t),
		Name:        "website_only",
	}
	s, err := Open(context.Background(), testConfig(t), req, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	res, err := s.Run(context.Background(), &scraper.RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Only a has a website, so a target of 2 cannot be met.
	if res.State != scraper.Exhausted {
		t.Errorf("state = %s, want exhausted", res.State)
	}

	stored, err := s.Store.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(stored) != 1 || stored[0].PlaceID != "a" || stored[0].Website != "https://a.example" {
		t.Errorf("stored = %+v, want only a with its website", stored)
	}
	byRun, err := s.Store.ByRun(s.RunID)
	if err != nil {
		t.Fatalf("by run: %v", err)
	}
	if len(byRun) != 1 {
		t.Errorf("run rows = %d, want 1", len(byRun))
	}

	runs, err := s.Store.Runs()
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Found != 1 {
		t.Errorf("run row = %+v", runs)
	}
}
