package views

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/session"
	"github.com/rendis/placetap/internal/tui/styles"
)

type areaMode int

const (
	modeCity areaMode = iota
	modeCoords
	modeRegion
	modeCount
)

func (a areaMode) String() string {
	return [...]string{"City", "Coordinates", "Region"}[a]
}

// Field indices. fieldMode, fieldSmart and fieldDetails are toggles, not textinputs.
const (
	fieldMode = iota
	fieldQuery
	fieldCity
	fieldRegion
	fieldLat
	fieldLng
	fieldRadius
	fieldTarget
	fieldTileSize
	fieldMinRating
	fieldOutput
	fieldSmart
	fieldDetails
	fieldCount
)

func isToggle(idx int) bool {
	return idx == fieldMode || idx == fieldSmart || idx == fieldDetails
}

type SearchModel struct {
	inputs  []textinput.Model
	mode    areaMode
	smart   bool
	details bool
	focused int
	err     string

	cities      []string
	suggestions []string
	suggIdx     int
}

// NewSearchModel builds the form with target, tile size and output prefilled.
func NewSearchModel(target int, tileSize float64, output string) SearchModel {
	inputs := make([]textinput.Model, fieldCount)

	inputs[fieldQuery] = newInput("coffee shop", "", 60)
	inputs[fieldCity] = newInput("type to search built-in cities, or any city name", "", 40)
	inputs[fieldRegion] = newInput("Brooklyn, New York", "", 40)
	inputs[fieldLat] = newInput("40.7128", "", 15)
	inputs[fieldLng] = newInput("-74.0060", "", 15)
	inputs[fieldRadius] = newInput("5", "", 10)
	inputs[fieldTarget] = newInput("0 = scan once", positiveInt(target), 8)
	inputs[fieldTileSize] = newInput("0.05", strconv.FormatFloat(tileSize, 'f', -1, 64), 8)
	inputs[fieldMinRating] = newInput("0", "", 5)
	inputs[fieldOutput] = newInput("./projects", output, 50)

	cities := geo.Cities()
	sort.Strings(cities)

	return SearchModel{
		inputs:  inputs,
		mode:    modeCity,
		focused: fieldMode,
		cities:  cities,
		suggIdx: -1,
	}
}

func positiveInt(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func newInput(placeholder, value string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 100
	if width > 0 {
		ti.Width = width
	}
	if value != "" {
		ti.SetValue(value)
	}
	return ti
}

func (m SearchModel) Init() tea.Cmd {
	return nil
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }

		case "up":
			if m.suggesting() && m.suggIdx > 0 {
				m.suggIdx--
				return m, nil
			}
			m.err = ""
			return m, m.focusStep(-1)

		case "down":
			if m.suggesting() && m.suggIdx < len(m.suggestions)-1 {
				m.suggIdx++
				return m, nil
			}
			m.err = ""
			return m, m.focusStep(1)

		case "tab":
			m.err = ""
			if m.suggesting() {
				m.selectSuggestion()
			}
			return m, m.focusStep(1)

		case "shift+tab":
			m.err = ""
			return m, m.focusStep(-1)

		case "enter":
			if m.suggesting() {
				m.selectSuggestion()
				return m, m.focusStep(1)
			}
			return m, m.submit()

		case "left", "right", " ":
			if cmd, handled := m.toggle(msg.String()); handled {
				return m, cmd
			}
		}
	}

	var cmd tea.Cmd
	if !isToggle(m.focused) {
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	}
	if m.focused == fieldCity {
		m.updateSuggestions()
	}
	return m, cmd
}

func (m *SearchModel) toggle(key string) (tea.Cmd, bool) {
	switch m.focused {
	case fieldMode:
		switch key {
		case "left":
			m.mode = (m.mode + modeCount - 1) % modeCount
		default:
			m.mode = (m.mode + 1) % modeCount
		}
		return nil, true
	case fieldSmart:
		m.smart = !m.smart
		return nil, true
	case fieldDetails:
		m.details = !m.details
		return nil, true
	}
	return nil, false
}

func (m *SearchModel) suggesting() bool {
	return m.focused == fieldCity && len(m.suggestions) > 0
}

func (m *SearchModel) selectSuggestion() {
	if m.suggIdx >= 0 && m.suggIdx < len(m.suggestions) {
		m.inputs[fieldCity].SetValue(cityLabel(m.suggestions[m.suggIdx]))
		m.suggestions = nil
		m.suggIdx = -1
	}
}

func (m *SearchModel) updateSuggestions() {
	q := normalize(strings.ReplaceAll(strings.TrimSpace(m.inputs[fieldCity].Value()), " ", "_"))
	m.suggestions = nil
	if q == "" {
		m.suggIdx = -1
		return
	}
	for _, c := range m.cities {
		if strings.Contains(c, q) {
			m.suggestions = append(m.suggestions, c)
			if len(m.suggestions) >= 5 {
				break
			}
		}
	}
	switch {
	case len(m.suggestions) == 0:
		m.suggIdx = -1
	case m.suggIdx < 0 || m.suggIdx >= len(m.suggestions):
		m.suggIdx = 0
	}
}

// cityLabel turns a table key like "new_york" into "New York".
func cityLabel(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (m *SearchModel) focusStep(dir int) tea.Cmd {
	if !isToggle(m.focused) {
		m.inputs[m.focused].Blur()
	}
	for {
		m.focused = (m.focused + dir + fieldCount) % fieldCount
		if !m.hidden(m.focused) {
			break
		}
	}
	if isToggle(m.focused) {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *SearchModel) hidden(idx int) bool {
	switch idx {
	case fieldCity:
		return m.mode != modeCity
	case fieldRegion:
		return m.mode != modeRegion
	case fieldLat, fieldLng, fieldRadius:
		return m.mode != modeCoords
	}
	return false
}

func (m *SearchModel) value(idx int) string {
	return strings.TrimSpace(m.inputs[idx].Value())
}

// request validates the form into a scan request.
func (m *SearchModel) request() (session.Request, error) {
	req := session.Request{
		Query:     m.value(fieldQuery),
		Smart:     m.smart,
		Details:   m.details,
		OutputDir: m.value(fieldOutput),
	}
	if req.Query == "" {
		return req, fmt.Errorf("Query is required")
	}
	if req.OutputDir == "" {
		return req, fmt.Errorf("Output directory is required")
	}

	var err error
	switch m.mode {
	case modeCity:
		if req.City = m.value(fieldCity); req.City == "" {
			return req, fmt.Errorf("City is required")
		}
	case modeRegion:
		if req.Region = m.value(fieldRegion); req.Region == "" {
			return req, fmt.Errorf("Region is required")
		}
	case modeCoords:
		req.Center = true
		if req.Lat, err = parseFloatField("Latitude", m.value(fieldLat), -90, 90); err != nil {
			return req, err
		}
		if req.Lng, err = parseFloatField("Longitude", m.value(fieldLng), -180, 180); err != nil {
			return req, err
		}
		if req.RadiusKm, err = parseFloatField("Radius", m.value(fieldRadius), 0.1, 500); err != nil {
			return req, err
		}
	}

	if s := m.value(fieldTarget); s != "" {
		if req.Target, err = strconv.Atoi(s); err != nil || req.Target < 0 {
			return req, fmt.Errorf("Target must be a non-negative number")
		}
	}
	if s := m.value(fieldTileSize); s != "" {
		if req.TileSize, err = parseFloatField("Tile size", s, 0.001, 5); err != nil {
			return req, err
		}
	}
	if s := m.value(fieldMinRating); s != "" {
		if req.MinRating, err = parseFloatField("Min rating", s, 0, 5); err != nil {
			return req, err
		}
	}
	return req, nil
}

func parseFloatField(name, s string, lo, hi float64) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %g and %g", name, lo, hi)
	}
	return v, nil
}

func (m *SearchModel) submit() tea.Cmd {
	req, err := m.request()
	if err != nil {
		m.err = err.Error()
		return nil
	}
	return func() tea.Msg {
		return StartScanMsg{Request: req}
	}
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("New Search") + "\n\n")
	b.WriteString(m.renderMode())
	b.WriteString("\n")
	b.WriteString(m.renderField("Query:", fieldQuery))

	switch m.mode {
	case modeCity:
		b.WriteString(m.renderField("City:", fieldCity))
		if m.suggesting() {
			b.WriteString(m.renderSuggestions())
		}
	case modeRegion:
		b.WriteString(m.renderField("Region:", fieldRegion))
	case modeCoords:
		b.WriteString(m.renderField("Latitude:", fieldLat))
		b.WriteString(m.renderField("Longitude:", fieldLng))
		b.WriteString(m.renderField("Radius (km):", fieldRadius))
	}

	b.WriteString("\n")
	b.WriteString(m.renderField("Target:", fieldTarget))
	if m.focused == fieldTarget {
		hint := lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("  the search radius widens until this many businesses are found")
		b.WriteString(hint + "\n")
	}
	b.WriteString(m.renderField("Tile size (°):", fieldTileSize))
	b.WriteString(m.renderField("Min rating:", fieldMinRating))
	b.WriteString(m.renderField("Output:", fieldOutput))
	b.WriteString(m.renderToggle("Variations:", fieldSmart, m.smart))
	b.WriteString(m.renderToggle("Details:", fieldDetails, m.details))

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • space toggle • esc back"))

	return styles.Border.Render(b.String())
}

func (m SearchModel) renderSuggestions() string {
	var sb strings.Builder
	active := styles.Emphasis(styles.Primary)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)

	for i, c := range m.suggestions {
		if i == m.suggIdx {
			sb.WriteString(active.Render("  > " + cityLabel(c)))
		} else {
			sb.WriteString(inactive.Render("    " + cityLabel(c)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m SearchModel) renderMode() string {
	active := styles.Emphasis(styles.Primary)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)

	parts := make([]string, 0, modeCount)
	for mode := areaMode(0); mode < modeCount; mode++ {
		if mode == m.mode {
			parts = append(parts, active.Render("< "+mode.String()+" >"))
		} else {
			parts = append(parts, inactive.Render(mode.String()))
		}
	}

	line := styles.Label.Render("Area:") + "  " + strings.Join(parts, "   ")
	if m.focused == fieldMode {
		line += lipgloss.NewStyle().Foreground(styles.Secondary).Render(" ←→")
	}
	return line + "\n"
}

func (m SearchModel) renderToggle(label string, idx int, on bool) string {
	box := "[ ]"
	if on {
		box = "[x]"
	}
	style := styles.InactiveItem
	if m.focused == idx {
		style = styles.ActiveItem
	}
	return fmt.Sprintf("%s %s\n", styles.Label.Render(label), style.Render(box))
}

func (m SearchModel) renderField(label string, idx int) string {
	return fmt.Sprintf("%s %s\n", styles.Label.Render(label), m.inputs[idx].View())
}

// Messages
type NavigateToHome struct{}

// StartScanMsg carries a validated scan request to the progress view.
type StartScanMsg struct {
	Request session.Request
}
