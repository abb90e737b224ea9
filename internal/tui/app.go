package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/tui/views"
)

// App routes navigation messages between screens and forwards everything
// else to the active one.
type App struct {
	cfg     *config.Config
	version string
	screen  tea.Model
	width   int
	height  int
}

func NewApp(cfg *config.Config, version string) App {
	return App{cfg: cfg, version: version, screen: views.NewHomeModel(version)}
}

func (a App) Init() tea.Cmd {
	return a.screen.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// A running scan handles ctrl+c itself so it can cancel first.
		if _, scanning := a.screen.(views.ProgressModel); msg.String() == "ctrl+c" && !scanning {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case views.NavigateToHome:
		return a.open(views.NewHomeModel(a.version), false)
	case views.NavigateToSearch:
		return a.open(views.NewSearchModel(a.cfg.TargetCount, a.cfg.TileSize, a.cfg.OutputDir), false)
	case views.NavigateToLoad:
		return a.open(views.NewFilePickerModel(a.cfg.OutputDir), false)
	case views.NavigateToRecent:
		stored := LoadRecent()
		entries := make([]views.RecentEntry, len(stored))
		for i, e := range stored {
			entries[i] = views.RecentEntry(e)
		}
		return a.open(views.NewRecentModel(entries), false)
	case views.StartScanMsg:
		return a.open(views.NewProgressModel(a.cfg, msg), true)
	case views.NavigateToExplorer:
		_ = SaveRecent(msg.DBPath)
		return a.open(views.NewExplorerModel(msg.DBPath), true)
	}

	var cmd tea.Cmd
	a.screen, cmd = a.screen.Update(msg)
	return a, cmd
}

// open makes m the active screen. Screens that lay themselves out from the
// terminal size get the last known size replayed.
func (a App) open(m tea.Model, sized bool) (tea.Model, tea.Cmd) {
	a.screen = m
	cmd := m.Init()
	if sized {
		w, h := a.width, a.height
		cmd = tea.Batch(cmd, func() tea.Msg { return tea.WindowSizeMsg{Width: w, Height: h} })
	}
	return a, cmd
}

func (a App) View() string {
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Top, a.screen.View())
}

// Run starts the TUI on the home screen.
func Run(cfg *config.Config, version string) error {
	_, err := tea.NewProgram(NewApp(cfg, version), tea.WithAltScreen()).Run()
	return err
}
