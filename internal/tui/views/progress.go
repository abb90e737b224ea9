package views

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/engine/session"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/tui/components"
	"github.com/rendis/placetap/internal/tui/styles"
)

// sharedState holds data shared between the scan goroutine and the TUI.
// Lives behind a pointer so it survives bubbletea's value copies.
type sharedState struct {
	mu      sync.Mutex
	stats   *scraper.Stats
	usage   *scraper.Usage
	cancel  context.CancelFunc
	target  int
	dbPath  string
	logPath string
	area    orb.Bound
	tiles   []orb.Bound
	pending []orb.Point
	ready   bool
}

// ProgressModel runs one scan and shows its live state.
type ProgressModel struct {
	cfg         *config.Config
	req         session.Request
	progress    progress.Model
	tileMap     components.TileMap
	mapReady    bool
	startTime   time.Time
	done        bool
	confirmQuit bool
	err         error
	result      *scraper.Result
	width       int
	height      int
	shared      *sharedState
}

type progressTickMsg time.Time

type scanCompleteMsg struct {
	Result *scraper.Result
	Err    error
}

func NewProgressModel(cfg *config.Config, msg StartScanMsg) ProgressModel {
	return ProgressModel{
		cfg:       cfg,
		req:       msg.Request,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		tileMap:   components.NewTileMap(40, 12),
		startTime: time.Now(),
		shared:    &sharedState{},
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.startScan(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) startScan() tea.Cmd {
	shared := m.shared
	cfg := m.cfg
	req := m.req

	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		shared.mu.Lock()
		shared.cancel = cancel
		shared.mu.Unlock()

		s, err := session.Open(ctx, cfg, req, nil)
		if err != nil {
			return scanCompleteMsg{Err: err}
		}
		defer s.Close()

		tiles := make([]orb.Bound, 0, s.Grid.Total())
		for _, t := range s.Grid.Active() {
			tiles = append(tiles, t.Bound())
		}
		stats := &scraper.Stats{}

		shared.mu.Lock()
		shared.stats = stats
		shared.usage = s.Searcher.Usage()
		shared.target = s.Params.TargetCount
		shared.dbPath = s.DBPath
		shared.logPath = s.LogPath
		shared.area = s.Search.Bound()
		shared.tiles = tiles
		shared.ready = true
		shared.mu.Unlock()

		res, err := s.Run(ctx, &scraper.RunOptions{
			Stats:          stats,
			SuppressStderr: true,
			OnBusinesses: func(batch []model.Business) {
				shared.mu.Lock()
				defer shared.mu.Unlock()
				for _, b := range batch {
					shared.pending = append(shared.pending, orb.Point{b.Lng, b.Lat})
				}
			},
		})
		return scanCompleteMsg{Result: res, Err: err}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tileMap.SetSize(max(20, msg.Width-50), max(8, msg.Height-16))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shared.stop()
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, m.openExplorer()
			}
			if m.confirmQuit {
				m.shared.stop()
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done {
				return m, m.openExplorer()
			}
		}
		m.confirmQuit = false
	case progressTickMsg:
		m.syncMap()
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case scanCompleteMsg:
		m.syncMap()
		m.done = true
		m.err = msg.Err
		m.result = msg.Result
		return m, nil
	}

	pModel, cmd := m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) openExplorer() tea.Cmd {
	path := m.shared.db()
	if path == "" || m.err != nil {
		return func() tea.Msg { return NavigateToHome{} }
	}
	return func() tea.Msg { return NavigateToExplorer{DBPath: path} }
}

// syncMap moves grid and points published by the scan goroutine into the map.
func (m *ProgressModel) syncMap() {
	s := m.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return
	}
	if !m.mapReady {
		m.tileMap.SetArea(s.area)
		m.tileMap.SetTiles(s.tiles)
		m.mapReady = true
	}
	m.tileMap.AddPoints(s.pending...)
	s.pending = s.pending[:0]
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Scanning: %q in %s", m.req.Query, describeArea(m.req))))
	b.WriteString("\n\n")

	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(34).
		Render(m.renderStats())
	mapBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Render(m.tileMap.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statsBox, " ", mapBox))
	b.WriteString("\n\n")

	var pct float64
	if stats := m.shared.getStats(); stats != nil && stats.TilesTotal.Load() > 0 {
		pct = float64(stats.TilesDone.Load()) / float64(stats.TilesTotal.Load())
	}
	b.WriteString(m.progress.ViewAs(min(pct, 1)))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
	case m.done:
		b.WriteString(styles.Emphasis(styles.Success).
			Render(fmt.Sprintf("%s: %d businesses found", m.result.State, len(m.result.Businesses))))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(m.result.Usage.Summary()))
		b.WriteString("\n")
		dbPath, logPath := m.shared.paths()
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf("Database: %s\nLog:      %s", dbPath, logPath)))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter explore results"))
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the scan and go back"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc cancel • ctrl+c quit"))
	}

	return b.String()
}

func describeArea(req session.Request) string {
	switch {
	case len(req.Bounds) == 4:
		return fmt.Sprintf("[%.3f,%.3f]-[%.3f,%.3f]", req.Bounds[0], req.Bounds[2], req.Bounds[1], req.Bounds[3])
	case req.Center:
		return fmt.Sprintf("%.4f, %.4f (r=%.1fkm)", req.Lat, req.Lng, req.RadiusKm)
	case req.City != "":
		return req.City
	case req.Region == "" && len(req.Polygon) > 0:
		return fmt.Sprintf("polygon (%d parts)", len(req.Polygon))
	}
	return req.Region
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	elapsed := time.Since(m.startTime).Truncate(time.Second)

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(12)
	statVal := styles.Emphasis(styles.Text)
	row := func(label, value string, style lipgloss.Style) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(style.Render(value))
		sb.WriteString("\n")
	}

	stats, usage, target := m.shared.snapshot()
	if stats == nil {
		row("State:", "preparing", statVal)
		row("Elapsed:", elapsed.String(), statVal)
		return sb.String()
	}

	done, total := stats.TilesDone.Load(), stats.TilesTotal.Load()
	found := stats.Found.Load()

	stateStyle := statVal
	switch stats.State() {
	case scraper.Expanding:
		stateStyle = styles.Emphasis(styles.Warning)
	case scraper.TargetMet:
		stateStyle = styles.Emphasis(styles.Success)
	case scraper.Cancelled:
		stateStyle = styles.Emphasis(styles.Error)
	}

	row("State:", stats.State().String(), stateStyle)
	row("Tiles:", fmt.Sprintf("%d/%d", done, total), statVal)
	row("Pass:", fmt.Sprintf("%d (radius x%.1f)", stats.Passes.Load(), stats.Multiplier()), statVal)
	if target > 0 {
		row("Found:", fmt.Sprintf("%s / %s", humanize.Comma(found), humanize.Comma(int64(target))), statVal)
	} else {
		row("Found:", humanize.Comma(found), statVal)
	}
	row("Stored:", humanize.Comma(stats.Stored.Load()), statVal)
	row("Filtered:", humanize.Comma(stats.Filtered.Load()), statVal)
	if n := stats.Subdivided.Load(); n > 0 {
		row("Split:", humanize.Comma(n), statVal)
	}
	if n := stats.Errors.Load(); n > 0 {
		row("Errors:", humanize.Comma(n), styles.Emphasis(styles.Error))
	}

	u := usage.Snapshot()
	row("API calls:", fmt.Sprintf("%s (%s cached)", humanize.Comma(u.TotalCalls()), humanize.Comma(u.TotalCacheHits())), statVal)
	row("Est. cost:", fmt.Sprintf("$%.4f", u.EstimatedCostUSD()), statVal)
	row("Elapsed:", elapsed.String(), statVal)

	if done > 0 && total > done && !m.done {
		rate := float64(done) / elapsed.Seconds()
		eta := time.Duration(float64(total-done) / rate * float64(time.Second)).Truncate(time.Second)
		row("Pass ETA:", "~"+eta.String(), statVal)
	}
	return sb.String()
}

func (s *sharedState) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *sharedState) getStats() *scraper.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *sharedState) snapshot() (*scraper.Stats, *scraper.Usage, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, s.usage, s.target
}

func (s *sharedState) db() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbPath
}

func (s *sharedState) paths() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbPath, s.logPath
}

// NavigateToExplorer signals transition to explorer view.
type NavigateToExplorer struct {
	DBPath string
}
