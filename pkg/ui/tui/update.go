package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"mediafetch/pkg/events"
	"mediafetch/pkg/models"
)

// Message types for the TUI

// EventMsg carries one engine event into the program
type EventMsg struct {
	Event events.Event
}

// FinishedMsg is sent once every job has returned
type FinishedMsg struct {
	Err error
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case FinishedMsg:
		m.finished = true
		if msg.Err != nil {
			m.AddLogMessage("ERROR", msg.Err.Error())
		}
		m.AddLogMessage("INFO", "All jobs finished, press q to exit")
		return m, nil
	}

	return m, nil
}

func (m *Model) handleEvent(e events.Event) {
	if e.JobID != "" {
		m.jobs[e.JobID] = true
	}

	switch e.Kind {
	case events.KindLogLine:
		m.planned += e.Total
		msg := e.Message
		if e.URL != "" {
			msg = e.URL + ": " + msg
		}
		m.AddLogMessage(logLevel(e.Level), msg)

	case events.KindStarted:
		m.StartFetch(e.URL, e.CollectionKey, e.Path)

	case events.KindBytesTransferred:
		m.UpdateFetchProgress(e.URL, e.BytesWritten, e.BytesTotal)

	case events.KindTaskCompleted:
		m.FinishFetch(e.URL, e.CollectionKey, e.Path, e.Status, e.BytesWritten, e.Attempts, e.Err)
		f := m.fetches[e.URL]
		switch {
		case e.Status == models.StatusSucceeded:
			m.AddLogMessage("SUCCESS", "Fetched: "+f.Filename)
		case e.Status.Failed():
			m.AddLogMessage("ERROR", fmt.Sprintf("Failed: %s - %v", f.Filename, e.Err))
		}

	case events.KindJobCompleted:
		m.jobsDone++
		if e.Total > 0 {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("%s: %d fetched, %d failed, %d cancelled",
				e.CollectionKey, e.Succeeded, e.Failed, e.Cancelled))
		}
	}
}

func logLevel(l events.Level) string {
	switch l {
	case events.LevelError:
		return "ERROR"
	case events.LevelWarn:
		return "WARN"
	case events.LevelDebug:
		return "DEBUG"
	}
	return "INFO"
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// Commands

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
