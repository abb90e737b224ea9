package components

import (
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
)

func rows(t *testing.T, view string, width, height int) []string {
	t.Helper()
	lines := strings.Split(view, "\n")
	if len(lines) != height {
		t.Fatalf("got %d rows, want %d", len(lines), height)
	}
	for i, l := range lines {
		if w := lipgloss.Width(l); w != width {
			t.Errorf("row %d has width %d, want %d", i, w, width)
		}
	}
	return lines
}

func TestTileMapEmpty(t *testing.T) {
	m := NewTileMap(10, 3)
	rows(t, m.View(), 10, 3)

	if got := NewTileMap(0, 3).View(); got != "" {
		t.Errorf("zero width view = %q, want empty", got)
	}
}

func TestTileMapDrawsPointsAndTiles(t *testing.T) {
	area := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	m := NewTileMap(20, 8)
	m.SetArea(area)
	m.SetTiles([]orb.Bound{area})
	m.AddPoints(orb.Point{0.5, 0.5})

	lines := rows(t, m.View(), 20, 8)
	marked := 0
	for _, l := range lines {
		marked += len(strings.TrimSpace(l))
	}
	if marked == 0 {
		t.Fatal("nothing drawn")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestTileMapZoomKeepsCenter(t *testing.T) {
	m := NewTileMap(20, 8)
	m.SetArea(orb.Bound{Min: orb.Point{10, 20}, Max: orb.Point{12, 22}})
	before := m.view.Center()

	m.ZoomIn()
	if !near(m.view.Center(), before) {
		t.Errorf("zoom moved center from %v to %v", before, m.view.Center())
	}
	if m.view.Max.X()-m.view.Min.X() >= m.area.Max.X()-m.area.Min.X() {
		t.Error("zoom in did not shrink the viewport")
	}

	m.Pan(1, 0)
	if m.view.Center().Y() <= before.Y() {
		t.Error("pan north did not move the viewport")
	}
	m.ZoomReset()
	if !near(m.view.Center(), before) || m.zoom != 1 {
		t.Errorf("reset left center %v zoom %v", m.view.Center(), m.zoom)
	}
}

func TestTileMapFitsPointsWithoutArea(t *testing.T) {
	m := NewTileMap(20, 8)
	m.SetPoints([]orb.Point{{-3.7, 40.4}, {-3.6, 40.5}})
	if !m.view.Contains(orb.Point{-3.65, 40.45}) {
		t.Errorf("viewport %v does not cover the points", m.view)
	}
}

func near(a, b orb.Point) bool {
	return math.Abs(a.X()-b.X()) < 1e-9 && math.Abs(a.Y()-b.Y()) < 1e-9
}
