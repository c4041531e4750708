package tui

import (
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/events"
	"mediafetch/pkg/models"
)

func stamp(e events.Event) events.Event {
	e.JobID = "job-1"
	e.CollectionKey = "4chan_g_42"
	return e
}

func task(url string) models.FetchTask {
	return models.FetchTask{SourceURL: url, DestinationPath: "/out/" + url[strings.LastIndex(url, "/")+1:]}
}

func send(m *Model, e events.Event) {
	m.Update(EventMsg{Event: stamp(e)})
}

func plan(total int) events.Event {
	e := events.Log(events.LevelInfo, "fetching")
	e.Total = total
	return e
}

func TestModelTracksFetchLifecycle(t *testing.T) {
	m := NewModel(3)
	send(&m, plan(3))
	send(&m, events.Started(task("https://i/a.jpg")))
	send(&m, events.Started(task("https://i/b.jpg")))

	assert.Equal(t, 2, m.activeFetches)
	assert.Equal(t, 1, m.Pending())

	send(&m, events.Bytes(task("https://i/a.jpg"), 512, 1024))
	f := m.fetches["https://i/a.jpg"]
	require.NotNil(t, f)
	assert.Equal(t, int64(512), f.Downloaded)
	assert.Equal(t, int64(1024), f.Size)
	assert.Equal(t, "a.jpg", f.Filename)

	send(&m, events.TaskCompleted(models.FetchOutcome{Task: task("https://i/a.jpg"), Status: models.StatusSucceeded, BytesWritten: 1024, Attempts: 1}))
	send(&m, events.TaskCompleted(models.FetchOutcome{
		Task: task("https://i/b.jpg"), Status: models.StatusFailedPermanent, Attempts: 1,
		LastError: errs.PermanentHTTP(404, "404 Not Found"),
	}))
	// never started: cancelled while queued
	send(&m, events.TaskCompleted(models.FetchOutcome{Task: task("https://i/c.jpg"), Status: models.StatusCancelled}))

	assert.Equal(t, 0, m.activeFetches)
	assert.Equal(t, 1, m.succeeded)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, 1, m.cancelled)
	assert.Equal(t, int64(1024), m.totalSize)
	assert.Equal(t, 0, m.Pending())
	assert.Len(t, m.GetCompletedFetches(), 1)
	assert.Len(t, m.GetFailedFetches(), 1)
	assert.Empty(t, m.GetActiveFetches())

	send(&m, events.JobCompleted(1, 1, 1, 3))
	assert.Equal(t, 1, m.jobsDone)
	assert.Len(t, m.jobs, 1)

	last := m.logMessages[len(m.logMessages)-1]
	assert.Equal(t, "SUCCESS", last.Level)
	assert.Equal(t, "4chan_g_42: 1 fetched, 1 failed, 1 cancelled", last.Message)
}

func TestModelStartIsIdempotent(t *testing.T) {
	m := NewModel(1)
	m.StartFetch("https://i/a.jpg", "k", "/out/a.jpg")
	m.StartFetch("https://i/a.jpg", "k", "/out/a.jpg")
	assert.Equal(t, 1, m.activeFetches)
}

func TestModelLogLevels(t *testing.T) {
	m := NewModel(1)
	send(&m, events.FailureLog("https://i/x.jpg", errors.New("commit failed")))
	send(&m, events.Log(events.LevelError, "boom"))

	require.Len(t, m.logMessages, 2)
	assert.Equal(t, "WARN", m.logMessages[0].Level)
	assert.Equal(t, "https://i/x.jpg: commit failed", m.logMessages[0].Message)
	assert.Equal(t, "ERROR", m.logMessages[1].Level)
}

func TestModelLogCap(t *testing.T) {
	m := NewModel(1)
	for i := 0; i < 60; i++ {
		m.AddLogMessage("INFO", "line")
	}
	assert.Len(t, m.logMessages, 50)
}

func TestModelKeys(t *testing.T) {
	m := NewModel(1)
	quit := false
	m.onQuit = func() { quit = true }

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, m.showHelp)

	m.AddLogMessage("INFO", "x")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, quit)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelFinished(t *testing.T) {
	m := NewModel(1)
	m.Update(FinishedMsg{Err: errors.New("job x: bad")})
	assert.True(t, m.finished)
	assert.Equal(t, "ERROR", m.logMessages[0].Level)
}

func TestViewRendersPanels(t *testing.T) {
	m := NewModel(2)
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	send(&m, plan(2))
	send(&m, events.Started(task("https://i/active.webm")))
	send(&m, events.Bytes(task("https://i/active.webm"), 10, 0))

	view := m.View()
	for _, want := range []string{"SESSION", "ACTIVE 1/2", "QUEUE", "RESULTS", "LOGS", "active.webm", "1 pending"} {
		assert.Contains(t, view, want)
	}
}

func TestGetFetchStats(t *testing.T) {
	m := NewModel(1)
	send(&m, plan(2))
	send(&m, events.TaskCompleted(models.FetchOutcome{Task: task("https://i/a.jpg"), Status: models.StatusSucceeded, BytesWritten: 100}))

	_, avg, eta := m.GetFetchStats()
	assert.Greater(t, avg, 0.0)
	assert.Greater(t, eta.Nanoseconds(), int64(0))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
		{-1, "0 B"},
	}

	for _, test := range tests {
		result := FormatBytes(test.bytes)
		if result != test.expected {
			t.Errorf("FormatBytes(%d) = %s, expected %s", test.bytes, result, test.expected)
		}
	}
	assert.Equal(t, "1.0 KiB/s", FormatSpeed(1024))
}

func TestTUIBridgesEvents(t *testing.T) {
	ui := NewTUI(2, tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer(), tea.WithoutSignalHandler())

	done := make(chan error, 1)
	go func() { done <- ui.Start() }()

	ui.Emit(stamp(plan(1)))
	ui.Emit(stamp(events.Started(task("https://i/a.jpg"))))
	ui.Emit(stamp(events.TaskCompleted(models.FetchOutcome{Task: task("https://i/a.jpg"), Status: models.StatusSucceeded, BytesWritten: 3})))
	ui.Finish(nil)
	ui.Stop()

	require.NoError(t, <-done)
	assert.Equal(t, 1, ui.model.succeeded)
	assert.True(t, ui.model.finished)
}
