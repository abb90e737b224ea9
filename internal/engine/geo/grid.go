package geo

import (
	"fmt"

	"github.com/rendis/placetap/internal/model"
)

// edgeEpsilon keeps float drift from emitting zero-width slivers at the far edge.
const edgeEpsilon = 1e-9

// Grid partitions a bounding box into overlapping tiles. Tiles live in an
// arena addressed by id; subdivision deactivates the parent and appends its
// children, so callers iterating by index never see the slice reshuffled.
type Grid struct {
	tileSize float64
	tiles    []*model.Tile
	active   []bool
	index    map[string]int
}

func NewGrid(tileSize float64) *Grid {
	return &Grid{
		tileSize: tileSize,
		index:    make(map[string]int),
	}
}

// TileSize returns the configured tile edge in degrees.
func (g *Grid) TileSize() float64 {
	return g.tileSize
}

// Create builds the tiles covering cfg's bounding box. Scanning advances by
// tileSize*(1-overlap) so neighbouring tiles share an overlap-sized band.
// Any previous grid is discarded.
func (g *Grid) Create(cfg model.SearchConfig, overlap float64) ([]*model.Tile, error) {
	if g.tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %v", g.tileSize)
	}
	if overlap < 0 || overlap >= 1 {
		return nil, fmt.Errorf("overlap must be in [0,1), got %v", overlap)
	}
	cfg.TileSize = g.tileSize
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g.tiles = nil
	g.active = nil
	g.index = make(map[string]int)

	step := g.tileSize * (1 - overlap)
	id := 0
	for lat := cfg.MinLat; cfg.MaxLat-lat > edgeEpsilon; {
		nextLat := min(lat+g.tileSize, cfg.MaxLat)
		for lng := cfg.MinLng; cfg.MaxLng-lng > edgeEpsilon; {
			nextLng := min(lng+g.tileSize, cfg.MaxLng)
			g.add(&model.Tile{
				ID:     fmt.Sprintf("tile_%d", id),
				MinLat: lat,
				MaxLat: nextLat,
				MinLng: lng,
				MaxLng: nextLng,
			})
			id++

			lng = min(lng+step, cfg.MaxLng)
		}
		lat = min(lat+step, cfg.MaxLat)
	}

	return g.Active(), nil
}

func (g *Grid) add(t *model.Tile) {
	g.index[t.ID] = len(g.tiles)
	g.tiles = append(g.tiles, t)
	g.active = append(g.active, true)
}

// Tile looks up an active tile by id.
func (g *Grid) Tile(id string) (*model.Tile, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.tiles[i], true
}

// Len returns the arena size, including subdivided (inactive) tiles.
func (g *Grid) Len() int {
	return len(g.tiles)
}

// At returns the arena slot i and whether that tile is still active.
func (g *Grid) At(i int) (*model.Tile, bool) {
	return g.tiles[i], g.active[i]
}

// Active returns the live tiles in arena order.
func (g *Grid) Active() []*model.Tile {
	out := make([]*model.Tile, 0, len(g.index))
	for i, t := range g.tiles {
		if g.active[i] {
			out = append(out, t)
		}
	}
	return out
}

// Unsearched returns the live tiles not yet marked searched.
func (g *Grid) Unsearched() []*model.Tile {
	var out []*model.Tile
	for i, t := range g.tiles {
		if g.active[i] && !t.Searched {
			out = append(out, t)
		}
	}
	return out
}

// MarkSearched flags a tile as searched and records how many businesses it produced.
func (g *Grid) MarkSearched(id string, businessCount int) bool {
	t, ok := g.Tile(id)
	if !ok {
		return false
	}
	t.Searched = true
	t.BusinessCount = businessCount
	return true
}

// ResetSearched clears the searched flag on every live tile.
func (g *Grid) ResetSearched() {
	for i, t := range g.tiles {
		if g.active[i] {
			t.Searched = false
		}
	}
}

// Subdivide replaces the tile with its four quadrants, split at the midpoint.
func (g *Grid) Subdivide(id string) ([]*model.Tile, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("tile %q not found", id)
	}
	parent := g.tiles[i]
	midLat, midLng := parent.Center()

	children := []*model.Tile{
		{ID: id + "_nw", MinLat: midLat, MaxLat: parent.MaxLat, MinLng: parent.MinLng, MaxLng: midLng},
		{ID: id + "_ne", MinLat: midLat, MaxLat: parent.MaxLat, MinLng: midLng, MaxLng: parent.MaxLng},
		{ID: id + "_sw", MinLat: parent.MinLat, MaxLat: midLat, MinLng: parent.MinLng, MaxLng: midLng},
		{ID: id + "_se", MinLat: parent.MinLat, MaxLat: midLat, MinLng: midLng, MaxLng: parent.MaxLng},
	}

	g.active[i] = false
	delete(g.index, id)
	for _, c := range children {
		g.add(c)
	}
	return children, nil
}

// TileFor returns the first live tile containing the point.
func (g *Grid) TileFor(lat, lng float64) (*model.Tile, bool) {
	for i, t := range g.tiles {
		if g.active[i] && t.Contains(lat, lng) {
			return t, true
		}
	}
	return nil, false
}

// Total returns the number of live tiles.
func (g *Grid) Total() int {
	return len(g.index)
}

// Searched returns the number of live tiles marked searched.
func (g *Grid) Searched() int {
	n := 0
	for i, t := range g.tiles {
		if g.active[i] && t.Searched {
			n++
		}
	}
	return n
}

// Progress returns Searched/Total, or 0 for an empty grid.
func (g *Grid) Progress() float64 {
	total := g.Total()
	if total == 0 {
		return 0
	}
	return float64(g.Searched()) / float64(total)
}
