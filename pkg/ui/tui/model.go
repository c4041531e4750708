package tui

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"mediafetch/pkg/models"
)

// FetchState represents the state of a fetch
type FetchState int

const (
	FetchActive FetchState = iota
	FetchSucceeded
	FetchFailed
	FetchCancelled
)

// FetchItem represents a single fetch, keyed by source URL
type FetchItem struct {
	URL        string
	Collection string
	Filename   string
	Size       int64
	Downloaded int64
	State      FetchState
	StartTime  time.Time
	Speed      float64
	Attempts   int
	Error      error
}

// Model represents the TUI model. It is only touched from the bubbletea
// goroutine; outside callers talk to it through messages.
type Model struct {
	// UI components
	spinner      spinner.Model
	progressBars map[string]progress.Model

	// Fetch state
	fetches       map[string]*FetchItem
	fetchOrder    []string
	activeFetches int
	maxConcurrent int

	// Stats
	planned          int
	succeeded        int
	failed           int
	cancelled        int
	totalSize        int64
	jobs             map[string]bool
	jobsDone         int
	finished         bool
	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
	onQuit         func()
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel(maxConcurrent int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		spinner:          s,
		progressBars:     make(map[string]progress.Model),
		fetches:          make(map[string]*FetchItem),
		maxConcurrent:    maxConcurrent,
		jobs:             make(map[string]bool),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// item returns the entry for url, creating it on first sight
func (m *Model) item(url, collection, path string) *FetchItem {
	if f, ok := m.fetches[url]; ok {
		return f
	}
	name := filepath.Base(path)
	if path == "" {
		name = url
	}
	f := &FetchItem{URL: url, Collection: collection, Filename: name}
	m.fetches[url] = f
	m.fetchOrder = append(m.fetchOrder, url)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40
	m.progressBars[url] = p
	return f
}

// StartFetch marks a fetch as active
func (m *Model) StartFetch(url, collection, path string) {
	f := m.item(url, collection, path)
	if f.State == FetchActive && !f.StartTime.IsZero() {
		return
	}
	f.State = FetchActive
	f.StartTime = time.Now()
	m.activeFetches++
}

// UpdateFetchProgress records the running byte count of a fetch
func (m *Model) UpdateFetchProgress(url string, downloaded, total int64) {
	f, ok := m.fetches[url]
	if !ok {
		return
	}
	f.Downloaded = downloaded
	if total > 0 {
		f.Size = total
	}
	if elapsed := time.Since(f.StartTime).Seconds(); elapsed > 0 {
		f.Speed = float64(downloaded) / elapsed
	}
}

// FinishFetch records the terminal status of a fetch
func (m *Model) FinishFetch(url, collection, path string, status models.Status, written int64, attempts int, err error) {
	f := m.item(url, collection, path)
	if f.State == FetchActive && !f.StartTime.IsZero() {
		m.activeFetches--
	}
	f.Attempts = attempts
	f.Error = err

	switch {
	case status == models.StatusSucceeded:
		f.State = FetchSucceeded
		f.Downloaded = written
		f.Size = written
		m.succeeded++
		m.totalSize += written
	case status == models.StatusCancelled:
		f.State = FetchCancelled
		m.cancelled++
	default:
		f.State = FetchFailed
		m.failed++
	}
	delete(m.progressBars, url)
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := muted
	switch level {
	case "ERROR":
		color = failColor
	case "WARN":
		color = warnColor
	case "SUCCESS":
		color = okColor
	case "INFO":
		color = accent
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

func (m *Model) inState(state FetchState) []*FetchItem {
	var out []*FetchItem
	for _, url := range m.fetchOrder {
		if f := m.fetches[url]; f != nil && f.State == state {
			out = append(out, f)
		}
	}
	return out
}

// GetActiveFetches returns the fetches in flight, oldest first
func (m *Model) GetActiveFetches() []*FetchItem { return m.inState(FetchActive) }

// GetCompletedFetches returns the successful fetches, oldest first
func (m *Model) GetCompletedFetches() []*FetchItem { return m.inState(FetchSucceeded) }

// GetFailedFetches returns the failed fetches, oldest first
func (m *Model) GetFailedFetches() []*FetchItem { return m.inState(FetchFailed) }

// Pending returns how many planned tasks have not started yet
func (m *Model) Pending() int {
	p := m.planned - len(m.fetches)
	if p < 0 {
		return 0
	}
	return p
}

// GetFetchStats returns the current and average throughput and an ETA
func (m *Model) GetFetchStats() (totalSpeed float64, avgSpeed float64, eta time.Duration) {
	for _, f := range m.fetches {
		if f.State == FetchActive {
			totalSpeed += f.Speed
		}
	}

	elapsed := time.Since(m.sessionStartTime)
	if m.succeeded > 0 && elapsed > 0 {
		avgSpeed = float64(m.totalSize) / elapsed.Seconds()
	}

	done := m.succeeded + m.failed + m.cancelled
	remaining := m.planned - done
	if done > 0 && remaining > 0 {
		eta = elapsed / time.Duration(done) * time.Duration(remaining)
	}
	return
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatSpeed formats speed in bytes per second
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}
