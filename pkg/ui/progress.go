package ui

import (
	"fmt"
	"strings"
	"time"

	"mediafetch/pkg/models"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// StatusTracker counts the outcomes of one job
type StatusTracker struct {
	CollectionKey string
	Total         int
	Succeeded     int
	Failed        int
	Cancelled     int
	Bytes         int64
	StartTime     time.Time
}

// NewStatusTracker creates a tracker for key
func NewStatusTracker(key string) *StatusTracker {
	return &StatusTracker{
		CollectionKey: key,
		StartTime:     time.Now(),
	}
}

// Record counts one finished task
func (st *StatusTracker) Record(status models.Status, bytes int64) {
	switch {
	case status == models.StatusSucceeded:
		st.Succeeded++
		st.Bytes += bytes
	case status == models.StatusCancelled:
		st.Cancelled++
	case status.Failed():
		st.Failed++
	}
}

// Done returns how many tasks have finished in any state
func (st *StatusTracker) Done() int {
	return st.Succeeded + st.Failed + st.Cancelled
}

// GetProgressBar renders done/total as a bar of the given width
func (st *StatusTracker) GetProgressBar(width int) string {
	filled := 0
	if st.Total > 0 {
		filled = st.Done() * width / st.Total
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, st.Done(), st.Total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetDownloadRate returns finished files per minute
func (st *StatusTracker) GetDownloadRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Succeeded) / elapsed
}

// ETA estimates the time left from the average time per finished task
func (st *StatusTracker) ETA() (time.Duration, bool) {
	done := st.Done()
	if done == 0 || st.Total <= done {
		return 0, false
	}
	per := st.GetElapsedTime() / time.Duration(done)
	return per * time.Duration(st.Total-done), true
}
