package geo

import (
	"testing"

	"github.com/rendis/placetap/internal/model"
)

func TestTileSizeForArea(t *testing.T) {
	cfg := model.SearchConfig{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}
	if got := TileSizeForArea(cfg, 100); got != 0.1 {
		t.Errorf("expected 0.1, got %v", got)
	}
	if got := TileSizeForArea(cfg, 4); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestEffectiveTileSize(t *testing.T) {
	cfg := model.SearchConfig{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}
	tests := []struct {
		name      string
		requested float64
		maxTiles  int
		minSize   float64
		want      float64
	}{
		{"requested wins", 0.2, 100, 0.05, 0.2},
		{"max tiles grows size", 0.01, 100, 0, 0.1},
		{"min size floor", 0.01, 0, 0.05, 0.05},
		{"no bounds", 0.01, 0, 0, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveTileSize(tt.requested, cfg, tt.maxTiles, tt.minSize)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCityBounds(t *testing.T) {
	minLat, maxLat, minLng, maxLng, ok := CityBounds("New York")
	if !ok {
		t.Fatal("expected new york to resolve")
	}
	if minLat >= maxLat || minLng >= maxLng {
		t.Errorf("invalid bounds %v %v %v %v", minLat, maxLat, minLng, maxLng)
	}
	if _, _, _, _, ok := CityBounds("atlantis"); ok {
		t.Error("expected unknown city to miss")
	}
	if len(Cities()) != 10 {
		t.Errorf("expected 10 cities, got %d", len(Cities()))
	}
}
