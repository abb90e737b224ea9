package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Primary   = lipgloss.Color("#2563EB")
	Secondary = lipgloss.Color("#14B8A6")
	Success   = lipgloss.Color("#16A34A")
	Warning   = lipgloss.Color("#EAB308")
	Error     = lipgloss.Color("#DC2626")
	Muted     = lipgloss.Color("#64748B")
	Text      = lipgloss.Color("#F1F5F9")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	// Label is the fixed-width left column of form rows.
	Label = lipgloss.NewStyle().
		Foreground(Muted).
		Width(14)

	ActiveItem   = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	InactiveItem = lipgloss.NewStyle().Foreground(Muted)

	StatusBar = lipgloss.NewStyle().
			Foreground(Muted).
			MarginTop(1)

	Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// Emphasis renders bold text in the given color.
func Emphasis(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}
