package views

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rendis/placetap/internal/tui/styles"
)

const pickerRows = 15

type pickerEntry struct {
	name    string
	dir     bool
	size    int64
	modTime time.Time
}

// FilePickerModel browses directories for project databases.
type FilePickerModel struct {
	dir     string
	entries []pickerEntry
	cursor  int
	err     error
}

// NewFilePickerModel starts in dir, falling back to the working directory.
func NewFilePickerModel(dir string) FilePickerModel {
	if abs, err := filepath.Abs(dir); err == nil && dir != "" {
		if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
			dir = abs
		} else {
			dir = ""
		}
	}
	if dir == "" {
		dir, _ = os.Getwd()
	}
	m := FilePickerModel{dir: dir}
	m.load()
	return m
}

func (m *FilePickerModel) load() {
	m.entries, m.err = listProjects(m.dir)
	m.cursor = 0
}

// listProjects returns visible subdirectories then .db files, newest first.
func listProjects(dir string) ([]pickerEntry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs, files []pickerEntry
	for _, de := range des {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if de.IsDir() {
			dirs = append(dirs, pickerEntry{name: name, dir: true})
			continue
		}
		if filepath.Ext(name) != ".db" {
			continue
		}
		e := pickerEntry{name: name}
		if fi, err := de.Info(); err == nil {
			e.size, e.modTime = fi.Size(), fi.ModTime()
		}
		files = append(files, e)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	return append(dirs, files...), nil
}

func (m FilePickerModel) Init() tea.Cmd {
	return nil
}

func (m FilePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		if m.cursor >= len(m.entries) {
			return m, nil
		}
		e := m.entries[m.cursor]
		path := filepath.Join(m.dir, e.name)
		if e.dir {
			m.dir = path
			m.load()
			return m, nil
		}
		return m, func() tea.Msg { return NavigateToExplorer{DBPath: path} }
	case "backspace":
		if parent := filepath.Dir(m.dir); parent != m.dir {
			m.dir = parent
			m.load()
		}
	case "esc":
		return m, func() tea.Msg { return NavigateToHome{} }
	}
	return m, nil
}

func (m FilePickerModel) View() string {
	var b strings.Builder

	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	b.WriteString(styles.Title.Render("Open Project"))
	b.WriteString("\n")
	b.WriteString(muted.Render(m.dir))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		return styles.Border.Render(b.String())
	}
	if len(m.entries) == 0 {
		b.WriteString(muted.Italic(true).Render("No .db files or directories found"))
	}

	start := max(0, m.cursor-(pickerRows-3))
	end := min(len(m.entries), start+pickerRows)
	for i := start; i < end; i++ {
		e := m.entries[i]
		cursor, style := "  ", styles.InactiveItem
		if i == m.cursor {
			cursor, style = "> ", styles.ActiveItem
		}
		if e.dir {
			fmt.Fprintf(&b, "%s📁 %s\n", cursor, style.Render(e.name+"/"))
			continue
		}
		meta := muted.Render(fmt.Sprintf("  %s • %s", humanize.Bytes(uint64(e.size)), humanize.Time(e.modTime)))
		fmt.Fprintf(&b, "%s💾 %s%s\n", cursor, style.Render(e.name), meta)
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter open • backspace parent dir • esc back"))

	return styles.Border.Render(b.String())
}
