package views

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/tui/components"
	"github.com/rendis/placetap/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilter
	focusCard
	focusSide
)

// sidePanel is what the right-hand panel shows.
type sidePanel int

const (
	sideJSON sidePanel = iota
	sideMap
)

var exportFormats = []storage.Format{storage.FormatCSV, storage.FormatJSON, storage.FormatGeoJSON}

// ExplorerModel browses a project database with a table, a detail card and
// a JSON or map side panel.
type ExplorerModel struct {
	dbPath     string
	businesses []model.Business
	filtered   []model.Business
	stats      storage.Stats
	table      table.Model
	filter     textinput.Model
	focus      focusArea
	side       sidePanel
	selected   int
	width      int
	height     int
	err        error
	statusMsg  string
	formatIdx  int

	cardScrollY int
	cardLines   []string
	jsonScrollY int
	jsonScrollX int
	jsonLines   []string
	jsonRaw     string
	tileMap     components.TileMap
}

type dbLoadedMsg struct {
	Businesses []model.Business
	Stats      storage.Stats
	Err        error
}

func NewExplorerModel(dbPath string) ExplorerModel {
	filter := textinput.New()
	filter.Placeholder = "Type to filter..."
	filter.CharLimit = 50

	return ExplorerModel{
		dbPath:   dbPath,
		filter:   filter,
		selected: -1,
		tileMap:  components.NewTileMap(40, 10),
	}
}

func (m ExplorerModel) Init() tea.Cmd {
	path := m.dbPath
	return func() tea.Msg {
		businesses, stats, err := loadProject(path)
		return dbLoadedMsg{Businesses: businesses, Stats: stats, Err: err}
	}
}

func loadProject(path string) ([]model.Business, storage.Stats, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, storage.Stats{}, err
	}
	store, err := storage.NewStore(path)
	if err != nil {
		return nil, storage.Stats{}, err
	}
	defer store.Close()

	businesses, err := store.All()
	if err != nil {
		return nil, storage.Stats{}, err
	}
	stats, err := store.Stats()
	return businesses, stats, err
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		if handled, cmd := m.handleKey(key); handled {
			return m, cmd
		}
	case dbLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.businesses = msg.Businesses
		m.stats = msg.Stats
		m.setFiltered(msg.Businesses)
		m.updateLayout()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTable:
		m.table, cmd = m.table.Update(msg)
		if cursor := m.table.Cursor(); cursor != m.selected && cursor < len(m.filtered) {
			m.selectRow(cursor)
		}
	case focusFilter:
		m.filter, cmd = m.filter.Update(msg)
		m.setFiltered(filterBusinesses(m.businesses, m.filter.Value()))
	}
	return m, cmd
}

func (m *ExplorerModel) handleKey(key string) (bool, tea.Cmd) {
	switch m.focus {
	case focusTable:
		switch key {
		case "esc", "q":
			return true, func() tea.Msg { return NavigateToHome{} }
		case "/", "tab":
			m.focus = focusFilter
			m.filter.Focus()
			return true, textinput.Blink
		case "1":
			m.focusPanel(focusCard)
			return true, nil
		case "2":
			m.focusPanel(focusSide)
			return true, nil
		case "m":
			if m.side == sideJSON {
				m.side = sideMap
			} else {
				m.side = sideJSON
			}
			return true, nil
		case "f":
			m.formatIdx = (m.formatIdx + 1) % len(exportFormats)
			m.statusMsg = "Export format: " + string(exportFormats[m.formatIdx])
			return true, nil
		case "e":
			m.export()
			return true, nil
		}

	case focusFilter:
		switch key {
		case "esc", "enter", "tab":
			m.focus = focusTable
			m.filter.Blur()
			return true, nil
		}

	case focusCard:
		switch key {
		case "esc":
			m.focusPanel(focusTable)
		case "up", "k":
			m.cardScrollY = max(0, m.cardScrollY-1)
		case "down", "j":
			m.cardScrollY = min(max(0, len(m.cardLines)-m.panelHeight()), m.cardScrollY+1)
		}
		return true, nil

	case focusSide:
		if key == "esc" {
			m.focusPanel(focusTable)
			return true, nil
		}
		if m.side == sideMap {
			m.mapKey(key)
		} else {
			m.jsonKey(key)
		}
		return true, nil
	}
	return false, nil
}

func (m *ExplorerModel) jsonKey(key string) {
	switch key {
	case "up", "k":
		m.jsonScrollY = max(0, m.jsonScrollY-1)
	case "down", "j":
		m.jsonScrollY = min(max(0, len(m.jsonLines)-m.panelHeight()), m.jsonScrollY+1)
	case "left", "h":
		m.jsonScrollX = max(0, m.jsonScrollX-4)
	case "right", "l":
		m.jsonScrollX += 4
	case "c":
		m.copyToClipboard()
	}
}

func (m *ExplorerModel) mapKey(key string) {
	switch key {
	case "+", "=":
		m.tileMap.ZoomIn()
	case "-":
		m.tileMap.ZoomOut()
	case "0":
		m.tileMap.ZoomReset()
	case "up", "k":
		m.tileMap.Pan(1, 0)
	case "down", "j":
		m.tileMap.Pan(-1, 0)
	case "left", "h":
		m.tileMap.Pan(0, -1)
	case "right", "l":
		m.tileMap.Pan(0, 1)
	}
}

func (m *ExplorerModel) focusPanel(f focusArea) {
	m.focus = f
	if f == focusTable {
		m.table.SetStyles(m.focusedTableStyles())
	} else {
		m.table.SetStyles(m.unfocusedTableStyles())
	}
}

func (m *ExplorerModel) setFiltered(bs []model.Business) {
	m.filtered = bs
	m.buildTable(bs)

	points := make([]orb.Point, len(bs))
	for i, b := range bs {
		points[i] = orb.Point{b.Lng, b.Lat}
	}
	m.tileMap.SetPoints(points)

	if len(bs) > 0 {
		m.selectRow(0)
	} else {
		m.selectRow(-1)
	}
}

func (m *ExplorerModel) selectRow(i int) {
	m.selected = i
	m.cardScrollY, m.jsonScrollY, m.jsonScrollX = 0, 0, 0
	m.tileMap.SetSelected(i)

	if i < 0 || i >= len(m.filtered) {
		m.cardLines, m.jsonLines, m.jsonRaw = nil, nil, ""
		return
	}
	biz := m.filtered[i]
	m.cardLines = cardLines(biz)

	data, err := json.MarshalIndent(biz, "", "  ")
	if err != nil {
		m.jsonLines, m.jsonRaw = []string{"JSON error"}, ""
		return
	}
	m.jsonRaw = string(data)
	m.jsonLines = strings.Split(m.jsonRaw, "\n")
}

func (m *ExplorerModel) buildTable(businesses []model.Business) {
	nameW, catW, ratingW, phoneW, emailW := 28, 20, 6, 16, 26
	if m.width > 120 {
		extra := m.width - 120
		nameW += extra * 4 / 10
		catW += extra * 2 / 10
		emailW += extra * 3 / 10
	}

	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Category", Width: catW},
		{Title: "Rating", Width: ratingW},
		{Title: "Phone", Width: phoneW},
		{Title: "Email", Width: emailW},
	}

	rows := make([]table.Row, len(businesses))
	for i, b := range businesses {
		rating := ""
		if b.Rating > 0 {
			rating = fmt.Sprintf("%.1f", b.Rating)
		}
		rows[i] = table.Row{
			truncate(b.Name, nameW),
			truncate(b.Category, catW),
			rating,
			truncate(b.Phone, phoneW),
			truncate(b.Email, emailW),
		}
	}

	height := 10
	if m.height > 0 {
		height = max(5, m.height/2-5)
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	if m.focus == focusTable || m.focus == focusFilter {
		t.SetStyles(m.focusedTableStyles())
	} else {
		t.SetStyles(m.unfocusedTableStyles())
	}
	m.table = t
}

func (m ExplorerModel) focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func (m ExplorerModel) unfocusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(lipgloss.Color("#333333")).
		Bold(false)
	return s
}

func (m ExplorerModel) panelHeight() int {
	return max(6, m.height/2-6)
}

func (m *ExplorerModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.buildTable(m.filtered)
	m.table.SetCursor(max(0, m.selected))
	sideW := max(20, m.width-2-(m.width-2)*2/5-6)
	m.tileMap.SetSize(sideW, m.panelHeight())
}

// normalize removes accents and lowercases text for fuzzy matching.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

// filterBusinesses keeps businesses whose text fields contain every word of
// query, ignoring case and accents.
func filterBusinesses(businesses []model.Business, query string) []model.Business {
	words := strings.Fields(normalize(query))
	if len(words) == 0 {
		return businesses
	}

	var out []model.Business
	for _, b := range businesses {
		haystack := normalize(strings.Join([]string{
			b.Name, b.Category, b.Address, b.Email, b.Website, b.Query,
		}, " "))
		match := true
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, b)
		}
	}
	return out
}

func (m *ExplorerModel) copyToClipboard() {
	if m.jsonRaw == "" {
		return
	}
	if err := clipboard.WriteAll(m.jsonRaw); err != nil {
		m.statusMsg = fmt.Sprintf("Copy failed: %v", err)
		return
	}
	m.statusMsg = "JSON copied to clipboard"
}

// export writes the filtered rows next to the database in the selected format.
func (m *ExplorerModel) export() {
	format := exportFormats[m.formatIdx]
	path := strings.TrimSuffix(m.dbPath, ".db") + "." + format.Ext()

	data := m.filtered
	if len(data) == 0 {
		data = m.businesses
	}

	f, err := os.Create(path)
	if err != nil {
		m.statusMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	defer f.Close()

	if err := storage.Export(f, format, data); err != nil {
		m.statusMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.statusMsg = fmt.Sprintf("Exported %d rows to %s", len(data), path)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
