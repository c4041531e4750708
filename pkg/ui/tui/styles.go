package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	accent    = lipgloss.Color("#00FFFF")
	highlight = lipgloss.Color("#FF00FF")
	okColor   = lipgloss.Color("#39FF14")
	warnColor = lipgloss.Color("#FF6700")
	failColor = lipgloss.Color("#FF0000")
	gold      = lipgloss.Color("#FFFF00")
	muted     = lipgloss.Color("#B0B0B0")
	faint     = lipgloss.Color("#626262")
	screenBg  = lipgloss.Color("#0A0E27")
	panelBg   = lipgloss.Color("#1A1E37")
)

var (
	baseStyle = lipgloss.NewStyle().Background(screenBg).Foreground(muted)

	logoStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Background(panelBg).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(highlight).
			Foreground(screenBg).
			Bold(true).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(muted)

	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))

	statsLabelStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	statsValueStyle = lipgloss.NewStyle().Foreground(gold)
	speedStyle      = lipgloss.NewStyle().Foreground(accent)

	successStyle = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(failColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warnColor).Bold(true)

	logTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	helpStyle         = lipgloss.NewStyle().Foreground(faint).Padding(1, 0, 0, 2)
)

// stateStyle renders a queue entry in the color of its fetch state
func stateStyle(s FetchState) lipgloss.Style {
	st := lipgloss.NewStyle().PaddingLeft(2)
	switch s {
	case FetchActive:
		return st.Foreground(okColor).Bold(true)
	case FetchFailed:
		return st.Foreground(failColor)
	case FetchCancelled:
		return st.Foreground(warnColor).Faint(true)
	default:
		return st.Foreground(muted).Faint(true)
	}
}

// progressStyle shifts from highlight to green as the run nears completion
func progressStyle(percentage float64) lipgloss.Style {
	st := lipgloss.NewStyle().Background(screenBg)
	switch {
	case percentage >= 80:
		return st.Foreground(okColor)
	case percentage >= 50:
		return st.Foreground(gold)
	case percentage >= 30:
		return st.Foreground(warnColor)
	default:
		return st.Foreground(highlight)
	}
}

// failureStyle colors the failure count by its share of finished tasks
func failureStyle(failed, done int) lipgloss.Style {
	switch {
	case failed == 0:
		return successStyle
	case done > 0 && failed*2 >= done:
		return errorStyle
	default:
		return warningStyle
	}
}
