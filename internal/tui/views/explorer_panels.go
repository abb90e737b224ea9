package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/tui/styles"
)

const cardLabelW = 10

func cardLines(biz model.Business) []string {
	lines := []string{biz.Name}

	if biz.Rating > 0 {
		r := fmt.Sprintf("%.1f", biz.Rating)
		if biz.ReviewCount > 0 {
			r += fmt.Sprintf(" (%s reviews)", humanize.Comma(int64(biz.ReviewCount)))
		}
		lines = append(lines, r)
	}
	if biz.Category != "" {
		lines = append(lines, biz.Category)
	}
	lines = append(lines, "")

	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%-*s %s", cardLabelW, label, value))
		}
	}
	add("Address:", biz.Address)
	add("Phone:", biz.Phone)
	add("Website:", biz.Website)
	add("Email:", biz.Email)
	for _, e := range biz.Emails {
		if e != biz.Email {
			add("", e)
		}
	}
	if biz.Lat != 0 || biz.Lng != 0 {
		add("Coords:", fmt.Sprintf("%.6f, %.6f", biz.Lat, biz.Lng))
	}
	add("Query:", biz.Query)
	add("PlaceID:", biz.PlaceID)
	if !biz.ScrapedAt.IsZero() {
		add("Found:", humanize.Time(biz.ScrapedAt))
	}
	return lines
}

func (m ExplorerModel) View() string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error loading project: %v", m.err))
	}

	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Explorer: %s businesses", humanize.Comma(int64(len(m.businesses))))))
	if len(m.filtered) != len(m.businesses) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf(" (showing %d)", len(m.filtered))))
	}
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(fmt.Sprintf(
		"  website %.0f%% • email %.0f%% • phone %d", m.stats.WebsiteCoverage, m.stats.EmailCoverage, m.stats.WithPhone)))
	b.WriteString("\n\n")

	filterStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.focus == focusFilter {
		filterStyle = lipgloss.NewStyle().Foreground(styles.Primary)
	}
	b.WriteString(filterStyle.Render("Filter: "))
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	detailW := max(40, m.width-2)
	panelH := m.panelHeight()
	cardOuterW := detailW * 2 / 5
	sideOuterW := detailW - cardOuterW - 1

	cardBox := panel("[1] Details", m.focus == focusCard, cardOuterW, panelH,
		m.viewCardPanel(max(20, cardOuterW-4), panelH))

	sideTitle, sideContent := "[2] JSON", m.viewJSONPanel(max(20, sideOuterW-4), panelH)
	if m.side == sideMap {
		sideTitle, sideContent = "[2] Map", m.tileMap.View()
	}
	sideBox := panel(sideTitle, m.focus == focusSide, sideOuterW, panelH, sideContent)

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cardBox, " ", sideBox))
	b.WriteString("\n\n")

	if m.statusMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.statusMsg))
		b.WriteString("\n")
	}

	var status string
	switch {
	case m.focus == focusTable:
		status = fmt.Sprintf("↑↓ navigate • 1 details • 2 side • m json/map • / filter • e export %s • f format • esc back",
			exportFormats[m.formatIdx])
	case m.focus == focusFilter:
		status = "type to filter • esc back"
	case m.focus == focusCard:
		status = "↑↓ scroll • esc back to table"
	case m.side == sideMap:
		status = "arrows pan • +/- zoom • 0 reset • esc back to table"
	default:
		status = "↑↓ scroll • ←→ pan • c copy json • esc back to table"
	}
	b.WriteString(styles.StatusBar.Render(status))

	return b.String()
}

func panel(title string, focused bool, outerW, h int, content string) string {
	color := styles.Muted
	if focused {
		color = styles.Primary
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(outerW - 2).
		Height(h).
		Render(content)
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(title) + "\n" + box
}

// window clamps scroll so the h visible lines stay inside lines.
func window(lines []string, scroll, h int) (int, int) {
	scroll = max(0, min(scroll, len(lines)-h))
	return scroll, min(scroll+h, len(lines))
}

func (m ExplorerModel) viewCardPanel(w, h int) string {
	if m.selected < 0 || len(m.cardLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a business\nto view details")
	}

	start, end := window(m.cardLines, m.cardScrollY, h)
	label := lipgloss.NewStyle().Foreground(styles.Muted)
	value := lipgloss.NewStyle().Foreground(styles.Text)
	link := lipgloss.NewStyle().Foreground(styles.Primary)

	var sb strings.Builder
	for i, line := range m.cardLines[start:end] {
		switch idx := start + i; {
		case idx == 0:
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Text).Render(truncate(line, w)))
		case idx == 1 && m.filtered[m.selected].Rating > 0:
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render(truncate(line, w)))
		case strings.HasPrefix(line, "Website:") || strings.HasPrefix(line, "Email:"):
			sb.WriteString(label.Render(line[:cardLabelW+1]))
			sb.WriteString(link.Render(truncate(line[cardLabelW+1:], w-cardLabelW-1)))
		default:
			sb.WriteString(value.Render(truncate(line, w)))
		}
		if i < end-start-1 {
			sb.WriteString("\n")
		}
	}

	if start > 0 {
		sb.WriteString("\n" + label.Render("  ▲ more above"))
	}
	if end < len(m.cardLines) {
		sb.WriteString("\n" + label.Render("  ▼ more below"))
	}
	return sb.String()
}

func (m ExplorerModel) viewJSONPanel(w, h int) string {
	if m.selected < 0 || len(m.jsonLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a business\nto view JSON")
	}

	plain := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary)
	valStyle := lipgloss.NewStyle().Foreground(styles.Success)

	start, end := window(m.jsonLines, m.jsonScrollY, h)

	var sb strings.Builder
	for i, line := range m.jsonLines[start:end] {
		display := ""
		if m.jsonScrollX < len(line) {
			display = line[m.jsonScrollX:]
		}
		display = truncate(display, w)

		if colon := strings.Index(display, "\":"); colon > 0 && strings.HasPrefix(strings.TrimSpace(display), "\"") {
			sb.WriteString(keyStyle.Render(display[:colon+1]))
			sb.WriteString(valStyle.Render(display[colon+1:]))
		} else {
			sb.WriteString(plain.Render(display))
		}
		if i < end-start-1 {
			sb.WriteString("\n")
		}
	}

	if start > 0 || end < len(m.jsonLines) {
		indicator := fmt.Sprintf("  [%d/%d]", start+1, len(m.jsonLines))
		if m.jsonScrollX > 0 {
			indicator += fmt.Sprintf(" ←%d", m.jsonScrollX)
		}
		sb.WriteString("\n" + plain.Render(indicator))
	}
	return sb.String()
}
