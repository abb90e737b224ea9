package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/rendis/placetap/internal/tui/styles"
)

const (
	maxZoom = 20.0
	minZoom = 0.5
)

// TileMap draws the search grid and discovered businesses as a Braille
// scatter plot. Points are orb points, so X is longitude and Y latitude.
type TileMap struct {
	width    int
	height   int
	area     orb.Bound
	tiles    []orb.Bound
	points   []orb.Point
	selected int

	view  orb.Bound
	zoom  float64
	panX  float64
	panY  float64
	fixed bool
}

func NewTileMap(width, height int) TileMap {
	return TileMap{
		width:    width,
		height:   height,
		selected: -1,
		zoom:     1,
	}
}

func (m *TileMap) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetArea fixes the base viewport to the search area, padded by 5%.
func (m *TileMap) SetArea(b orb.Bound) {
	m.area = pad(b)
	m.fixed = true
	m.applyZoom()
}

// SetTiles replaces the tile outlines.
func (m *TileMap) SetTiles(tiles []orb.Bound) {
	m.tiles = tiles
}

// SetPoints replaces the plotted points, refitting the viewport unless an
// area was set.
func (m *TileMap) SetPoints(points []orb.Point) {
	m.points = points
	if !m.fixed {
		m.fit()
	}
}

// AddPoints appends points without moving the viewport.
func (m *TileMap) AddPoints(points ...orb.Point) {
	m.points = append(m.points, points...)
}

func (m *TileMap) Len() int {
	return len(m.points)
}

// SetSelected highlights one point; -1 clears.
func (m *TileMap) SetSelected(idx int) {
	m.selected = idx
}

func (m *TileMap) ZoomIn() {
	m.zoom = math.Min(m.zoom*1.5, maxZoom)
	m.applyZoom()
}

func (m *TileMap) ZoomOut() {
	m.zoom = math.Max(m.zoom/1.5, minZoom)
	m.applyZoom()
}

func (m *TileMap) ZoomReset() {
	m.zoom = 1
	m.panX, m.panY = 0, 0
	m.applyZoom()
}

// Pan shifts the viewport by a tenth of its size per step.
func (m *TileMap) Pan(dLat, dLng float64) {
	m.panY += dLat * (m.area.Max.Y() - m.area.Min.Y()) * 0.1 / m.zoom
	m.panX += dLng * (m.area.Max.X() - m.area.Min.X()) * 0.1 / m.zoom
	m.applyZoom()
}

func (m *TileMap) fit() {
	if len(m.points) == 0 {
		return
	}
	b := m.points[0].Bound()
	for _, p := range m.points[1:] {
		b = b.Extend(p)
	}
	m.area = pad(b)
	m.applyZoom()
}

func pad(b orb.Bound) orb.Bound {
	dx := (b.Max.X() - b.Min.X()) * 0.05
	dy := (b.Max.Y() - b.Min.Y()) * 0.05
	if dx == 0 {
		dx = 0.01
	}
	if dy == 0 {
		dy = 0.01
	}
	return b.Pad(math.Max(dx, dy))
}

func (m *TileMap) applyZoom() {
	c := m.area.Center()
	halfX := (m.area.Max.X() - m.area.Min.X()) / 2 / m.zoom
	halfY := (m.area.Max.Y() - m.area.Min.Y()) / 2 / m.zoom
	cx, cy := c.X()+m.panX, c.Y()+m.panY
	m.view = orb.Bound{
		Min: orb.Point{cx - halfX, cy - halfY},
		Max: orb.Point{cx + halfX, cy + halfY},
	}
}

// Braille cells are 2x4 dots; brailleBit[row][col] is the dot's bit.
var brailleBit = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

type layer int

const (
	layerNone layer = iota
	layerTile
	layerPoint
	layerSelected
)

func (m TileMap) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	dotW, dotH := m.width*2, m.height*4

	spanX := m.view.Max.X() - m.view.Min.X()
	spanY := m.view.Max.Y() - m.view.Min.Y()
	if spanX <= 0 || spanY <= 0 {
		return strings.TrimSuffix(strings.Repeat(strings.Repeat(" ", m.width)+"\n", m.height), "\n")
	}

	// A degree of longitude shrinks with latitude; braille dots are about square.
	cosLat := math.Cos(m.view.Center().Y() * math.Pi / 180)
	aspect := spanX * cosLat / spanY
	effW, effH := dotW, dotH
	offX, offY := 0, 0
	if aspect < float64(dotW)/float64(dotH) {
		effW = max(4, int(float64(dotH)*aspect))
		offX = (dotW - effW) / 2
	} else {
		effH = max(4, int(float64(dotW)/aspect))
		offY = (dotH - effH) / 2
	}

	toDot := func(p orb.Point) (int, int) {
		x := offX + int((p.X()-m.view.Min.X())/spanX*float64(effW-1))
		y := offY + int((m.view.Max.Y()-p.Y())/spanY*float64(effH-1))
		return x, y
	}

	grid := make([][]layer, dotH)
	for i := range grid {
		grid[i] = make([]layer, dotW)
	}
	set := func(x, y int, l layer) {
		if x >= 0 && x < dotW && y >= 0 && y < dotH && grid[y][x] < l {
			grid[y][x] = l
		}
	}

	for _, t := range m.tiles {
		x0, y0 := toDot(orb.Point{t.Min.X(), t.Max.Y()})
		x1, y1 := toDot(orb.Point{t.Max.X(), t.Min.Y()})
		drawLine(x0, y0, x1, y0, set)
		drawLine(x1, y0, x1, y1, set)
		drawLine(x1, y1, x0, y1, set)
		drawLine(x0, y1, x0, y0, set)
	}
	for i, p := range m.points {
		x, y := toDot(p)
		if i == m.selected {
			set(x, y, layerSelected)
		} else {
			set(x, y, layerPoint)
		}
	}

	tileStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	pointStyle := lipgloss.NewStyle().Foreground(styles.Success)
	selStyle := styles.Emphasis(styles.Warning)

	var sb strings.Builder
	for row := 0; row < m.height; row++ {
		for col := 0; col < m.width; col++ {
			var cell rune = 0x2800
			top := layerNone
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					l := grid[row*4+dy][col*2+dx]
					if l != layerNone {
						cell |= brailleBit[dy][dx]
						top = max(top, l)
					}
				}
			}
			switch top {
			case layerNone:
				sb.WriteRune(' ')
			case layerTile:
				sb.WriteString(tileStyle.Render(string(cell)))
			case layerPoint:
				sb.WriteString(pointStyle.Render(string(cell)))
			default:
				sb.WriteString(selStyle.Render(string(cell)))
			}
		}
		if row < m.height-1 {
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}

// drawLine plots a Bresenham line through set.
func drawLine(x0, y0, x1, y1 int, set func(x, y int, l layer)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 >= x1 {
		sx = -1
	}
	if y0 >= y1 {
		sy = -1
	}
	e := dx + dy
	for {
		set(x0, y0, layerTile)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
