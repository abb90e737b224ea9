package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/tui/styles"
)

type menuItem struct {
	key   string
	label string
	desc  string
	msg   tea.Msg // nil quits
}

type HomeModel struct {
	version string
	items   []menuItem
	cursor  int
}

func NewHomeModel(version string) HomeModel {
	return HomeModel{
		version: version,
		items: []menuItem{
			{key: "n", label: "New Search", desc: "Scan an area for businesses", msg: NavigateToSearch{}},
			{key: "l", label: "Open Project", desc: "Browse for a project .db file", msg: NavigateToLoad{}},
			{key: "r", label: "Recent Projects", desc: "Reopen a recent scan", msg: NavigateToRecent{}},
			{key: "q", label: "Quit", desc: "Exit placetap"},
		},
	}
}

func (m HomeModel) Init() tea.Cmd {
	return nil
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		m.cursor = min(len(m.items)-1, m.cursor+1)
	case "enter":
		return m, m.choose(m.cursor)
	default:
		for i, item := range m.items {
			if item.key == key.String() {
				m.cursor = i
				return m, m.choose(i)
			}
		}
	}
	return m, nil
}

func (m HomeModel) choose(i int) tea.Cmd {
	next := m.items[i].msg
	if next == nil {
		return tea.Quit
	}
	return func() tea.Msg { return next }
}

func (m HomeModel) View() string {
	var b strings.Builder

	logo := styles.Emphasis(styles.Primary).Render("  placetap")
	version := lipgloss.NewStyle().Foreground(styles.Muted).Render(" " + m.version)
	tagline := lipgloss.NewStyle().Foreground(styles.Secondary).Italic(true).
		Render("  Grid search for local businesses")

	b.WriteString(logo + version + "\n")
	b.WriteString(tagline + "\n\n")

	keyStyle := styles.Emphasis(styles.Secondary)
	descStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	for i, item := range m.items {
		cursor, style := "  ", styles.InactiveItem
		if i == m.cursor {
			cursor, style = "> ", styles.ActiveItem
		}
		fmt.Fprintf(&b, "%s%s %s%s\n", cursor,
			keyStyle.Render("["+item.key+"]"), style.Render(item.label), descStyle.Render(" - "+item.desc))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter select • q quit"))

	return styles.Border.Render(b.String())
}

// Navigation messages
type NavigateToSearch struct{}
type NavigateToLoad struct{}
