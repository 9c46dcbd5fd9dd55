// Package styles holds the lipgloss palette shared by the terminal views
// and the CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/basecamp/internal/state"
)

var (
	// Colors meet WCAG AA contrast on black and on the dark surface.
	PrimaryColor   = lipgloss.Color("#F59E0B") // Amber
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#FBBF24") // Yellow
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	InfoColor      = lipgloss.Color("#60A5FA") // Blue

	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor).
		Background(SurfaceColor).
		Padding(0, 1)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	FocusedBox = Box.BorderForeground(PrimaryColor)

	Option = lipgloss.NewStyle().
		Foreground(TextColor).
		Padding(0, 1)

	OptionSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(SurfaceColor).
			Background(PrimaryColor).
			Padding(0, 1)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true)

	Label = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(14)
)

// PhaseColor returns the color a phase is rendered in.
func PhaseColor(p state.Phase) lipgloss.Color {
	switch p {
	case state.PhaseDispatching, state.PhaseSynthesizing:
		return InfoColor
	case state.PhaseHumanReview:
		return WarningColor
	case state.PhaseDone:
		return SecondaryColor
	default:
		return MutedColor
	}
}

// Phase renders a phase badge.
func Phase(p state.Phase) string {
	return lipgloss.NewStyle().Bold(true).Foreground(PhaseColor(p)).Render(string(p))
}
