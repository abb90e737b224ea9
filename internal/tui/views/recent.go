package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rendis/placetap/internal/tui/styles"
)

type RecentEntry struct {
	Path     string
	OpenedAt time.Time
}

type RecentModel struct {
	entries []RecentEntry
	cursor  int
}

func NewRecentModel(entries []RecentEntry) RecentModel {
	return RecentModel{entries: entries}
}

func (m RecentModel) Init() tea.Cmd {
	return nil
}

func (m RecentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		m.cursor = max(0, min(len(m.entries)-1, m.cursor+1))
	case "enter":
		if m.cursor < len(m.entries) {
			path := m.entries[m.cursor].Path
			if _, err := os.Stat(path); err != nil {
				return m, nil
			}
			return m, func() tea.Msg { return NavigateToExplorer{DBPath: path} }
		}
	case "esc":
		return m, func() tea.Msg { return NavigateToHome{} }
	}
	return m, nil
}

func (m RecentModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Recent Projects"))
	b.WriteString("\n\n")

	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	if len(m.entries) == 0 {
		b.WriteString(muted.Italic(true).Render("No recent projects"))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}

	for i, entry := range m.entries {
		cursor, style := "  ", styles.InactiveItem
		if i == m.cursor {
			cursor, style = "> ", styles.ActiveItem
		}

		name := style.Render(filepath.Base(entry.Path))
		detail := fmt.Sprintf("  %s  opened %s", filepath.Dir(entry.Path), humanize.Time(entry.OpenedAt))
		if fi, err := os.Stat(entry.Path); err != nil {
			name = lipgloss.NewStyle().Foreground(styles.Error).Strikethrough(true).Render(filepath.Base(entry.Path))
			detail += "  (missing)"
		} else {
			detail += "  " + humanize.Bytes(uint64(fi.Size()))
		}

		fmt.Fprintf(&b, "%s%s\n%s\n", cursor, name, muted.Render(detail))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter open • esc back"))

	return styles.Border.Render(b.String())
}

// NavigateToRecent signals navigation to recent projects view.
type NavigateToRecent struct{}
