package geo

import (
	"math"
	"strings"

	"github.com/rendis/placetap/internal/model"
)

// TileSizeForArea returns the square tile edge (degrees, 4 decimals) that
// splits the area into roughly targetTiles tiles.
func TileSizeForArea(cfg model.SearchConfig, targetTiles int) float64 {
	if targetTiles <= 0 {
		targetTiles = 1
	}
	area := (cfg.MaxLat - cfg.MinLat) * (cfg.MaxLng - cfg.MinLng)
	size := math.Sqrt(area / float64(targetTiles))
	return math.Round(size*10000) / 10000
}

// EffectiveTileSize grows the requested tile size so the grid stays under
// maxTiles, and never goes below minSize. Zero maxTiles or minSize disables
// the respective bound.
func EffectiveTileSize(requested float64, cfg model.SearchConfig, maxTiles int, minSize float64) float64 {
	size := requested
	if maxTiles > 0 {
		area := (cfg.MaxLat - cfg.MinLat) * (cfg.MaxLng - cfg.MinLng)
		size = math.Max(size, math.Sqrt(area/float64(maxTiles)))
	}
	if minSize > 0 {
		size = math.Max(size, minSize)
	}
	return size
}

// cityBounds holds approximate [minLat, maxLat, minLng, maxLng] boxes for large US cities.
var cityBounds = map[string][4]float64{
	"new_york":     {40.4774, 40.9176, -74.2591, -73.7004},
	"los_angeles":  {33.7037, 34.3373, -118.6682, -118.1553},
	"chicago":      {41.6445, 42.0230, -87.9401, -87.5241},
	"houston":      {29.5370, 30.1105, -95.9136, -95.0129},
	"phoenix":      {33.2903, 33.9185, -112.3237, -111.7893},
	"philadelphia": {39.8716, 40.1379, -75.2803, -74.9558},
	"san_antonio":  {29.1927, 29.6281, -98.8096, -98.2208},
	"san_diego":    {32.5349, 33.1146, -117.3090, -116.9085},
	"dallas":       {32.6164, 33.0233, -97.0331, -96.5536},
	"san_jose":     {37.1354, 37.4690, -122.0454, -121.5890},
}

// CityBounds looks up a built-in city box. Names are matched case-insensitively
// with spaces treated as underscores.
func CityBounds(city string) (minLat, maxLat, minLng, maxLng float64, ok bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(city)), " ", "_")
	b, ok := cityBounds[key]
	if !ok {
		return 0, 0, 0, 0, false
	}
	return b[0], b[1], b[2], b[3], true
}

// Cities lists the built-in city keys.
func Cities() []string {
	names := make([]string, 0, len(cityBounds))
	for k := range cityBounds {
		names = append(names, k)
	}
	return names
}
