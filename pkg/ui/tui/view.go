package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
╔════════════════════════════════════════════════╗
║  █▀▄▀█ █▀▀ █▀▄ █ ▄▀█ █▀▀ █▀▀ ▀█▀ █▀▀ █ █       ║
║  █ ▀ █ ██▄ █▄▀ █ █▀█ █▀  ██▄  █  █▄▄ █▀█       ║
╚════════════════════════════════════════════════╝`

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(logo))

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActivePanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderResultsPanel(width),
		m.renderLogsPanel(width),
	)
}

func stat(label, value string, style lipgloss.Style) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), style.Render(value))
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" SESSION ")

	totalSpeed, avgSpeed, eta := m.GetFetchStats()
	stats := []string{
		stat("Session Time:", formatDuration(time.Since(m.sessionStartTime)), statsValueStyle),
		stat("Fetched:", fmt.Sprintf("%d files", m.succeeded), statsValueStyle),
		stat("Total Size:", FormatBytes(m.totalSize), statsValueStyle),
		stat("Current Speed:", FormatSpeed(totalSpeed), speedStyle),
		stat("Average Speed:", FormatSpeed(avgSpeed), speedStyle),
		stat("ETA:", formatDuration(eta), statsValueStyle),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderActivePanel(width int) string {
	title := titleStyle.Render(fmt.Sprintf(" ACTIVE %d/%d ", m.activeFetches, m.maxConcurrent))

	active := m.GetActiveFetches()
	if len(active) == 0 {
		content := mutedStyle.Render("No active fetches")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	for _, f := range active {
		rows = append(rows, m.renderFetchItem(f, width-4))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

// renderFetchItem renders a single fetch; unknown sizes get a spinner
// instead of a bar
func (m *Model) renderFetchItem(f *FetchItem, width int) string {
	size := "?"
	if f.Size > 0 {
		size = FormatBytes(f.Size)
	}
	info := fmt.Sprintf("%s %s @ %s",
		stateStyle(FetchActive).Render(f.Filename),
		mutedStyle.Render(FormatBytes(f.Downloaded)+"/"+size),
		speedStyle.Render(FormatSpeed(f.Speed)),
	)

	bar, ok := m.progressBars[f.URL]
	if !ok || f.Size <= 0 {
		return lipgloss.JoinVertical(lipgloss.Left, info, "  "+m.spinner.View())
	}

	pct := float64(f.Downloaded) / float64(f.Size)
	if pct > 1.0 {
		pct = 1.0
	}
	if width > 30 {
		bar.Width = width - 20
	}
	return lipgloss.JoinVertical(lipgloss.Left, info, bar.ViewAs(pct))
}

func (m *Model) renderQueuePanel(width int) string {
	title := titleStyle.Render(" QUEUE ")

	var items []string
	if pending := m.Pending(); pending > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", pending)))
	}

	completed := m.GetCompletedFetches()
	if n := len(completed); n > 0 {
		items = append(items, successStyle.Render(fmt.Sprintf("✓ %d fetched", n)))
		for _, f := range completed[max(0, n-3):] {
			items = append(items, stateStyle(FetchSucceeded).Render("✓ "+f.Filename))
		}
	}

	failed := m.GetFailedFetches()
	if n := len(failed); n > 0 {
		items = append(items, errorStyle.Render(fmt.Sprintf("✗ %d failed", n)))
		for _, f := range failed[max(0, n-3):] {
			items = append(items, stateStyle(FetchFailed).Render("✗ "+f.Filename))
		}
	}

	if len(items) == 0 {
		items = append(items, mutedStyle.Render("Waiting for work..."))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

// renderResultsPanel shows overall progress across every job
func (m *Model) renderResultsPanel(width int) string {
	title := titleStyle.Render(" RESULTS ")

	done := m.succeeded + m.failed + m.cancelled
	pct := 0.0
	if m.planned > 0 {
		pct = float64(done) / float64(m.planned) * 100
	}
	barWidth := width - 8
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(pct * float64(barWidth) / 100)
	if filled > barWidth {
		filled = barWidth
	}
	barStyle := progressStyle(pct)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	status := m.spinner.View() + " running"
	if m.finished {
		status = successStyle.Render("done")
	}

	content := []string{
		stat("Progress:", fmt.Sprintf("%d/%d (%.0f%%)", done, m.planned, pct), barStyle),
		bar,
		stat("Succeeded:", fmt.Sprintf("%d", m.succeeded), successStyle),
		stat("Failed:", fmt.Sprintf("%d", m.failed), failureStyle(m.failed, done)),
		stat("Cancelled:", fmt.Sprintf("%d", m.cancelled), warningStyle),
		stat("Jobs:", fmt.Sprintf("%d/%d finished", m.jobsDone, len(m.jobs)), statsValueStyle),
		stat("Status:", status, statsValueStyle),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOGS ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		msg := log.Message
		if maxMsgLen > 3 && len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, mutedStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = mutedStyle.Render("No logs yet...")
	}

	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}
	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit and cancel outstanding fetches
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Fetched
    ` + warningStyle.Render("Orange") + `   - Pending/Cancelled
    ` + errorStyle.Render("Red") + `      - Failed
`
	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
