package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"mediafetch/pkg/events"
	"mediafetch/pkg/models"
)

const redrawInterval = 100 * time.Millisecond

// ConsoleReporter renders engine events as a single updating progress line
// per job, with failures and the final summary printed on their own lines.
// When out is not a terminal the progress line is left out and only whole
// lines are written. It is safe for concurrent use.
type ConsoleReporter struct {
	mu       sync.Mutex
	out      io.Writer
	verbose  bool
	live     bool
	trackers map[string]*StatusTracker
	current  map[string]string
	inFlight map[string]int64
	lastDraw time.Time
}

// NewConsoleReporter creates a reporter writing to out. In verbose mode every
// completed file is listed as well.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{
		out:      out,
		verbose:  verbose,
		live:     IsTerminal(out),
		trackers: make(map[string]*StatusTracker),
		current:  make(map[string]string),
		inFlight: make(map[string]int64),
	}
}

func (c *ConsoleReporter) Emit(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.tracker(e)
	switch e.Kind {
	case events.KindLogLine:
		if e.Total > 0 && st.Total == 0 {
			st.Total = e.Total
		}
		c.printLog(e)
	case events.KindStarted:
		c.current[e.JobID] = filepath.Base(e.Path)
		c.draw(st, e.JobID, true)
	case events.KindBytesTransferred:
		c.inFlight[e.URL] = e.BytesWritten
		c.draw(st, e.JobID, false)
	case events.KindTaskCompleted:
		delete(c.inFlight, e.URL)
		st.Record(e.Status, e.BytesWritten)
		c.printCompleted(e)
		c.draw(st, e.JobID, true)
	case events.KindJobCompleted:
		st.Total = e.Total
		c.printSummary(st, e)
		delete(c.trackers, e.JobID)
		delete(c.current, e.JobID)
	}
}

func (c *ConsoleReporter) tracker(e events.Event) *StatusTracker {
	st, ok := c.trackers[e.JobID]
	if !ok {
		st = NewStatusTracker(e.CollectionKey)
		c.trackers[e.JobID] = st
	}
	return st
}

func (c *ConsoleReporter) clearLine() {
	if !c.live {
		return
	}
	fmt.Fprintf(c.out, "\r%s\r", strings.Repeat(" ", 120))
}

func (c *ConsoleReporter) printLog(e events.Event) {
	if e.Level == events.LevelDebug && !c.verbose {
		return
	}
	c.clearLine()
	switch {
	case e.URL != "" && e.Level == events.LevelError:
		fmt.Fprintf(c.out, "%s %s: %s\n", Red("✗"), e.URL, e.Message)
	case e.Level == events.LevelError:
		fmt.Fprintln(c.out, Red(e.Message))
	case e.Level == events.LevelWarn:
		fmt.Fprintln(c.out, Yellow(e.Message))
	default:
		fmt.Fprintf(c.out, "%s %s\n", Cyan("•"), e.Message)
	}
}

func (c *ConsoleReporter) printCompleted(e events.Event) {
	switch {
	case e.Status.Failed():
		c.clearLine()
		fmt.Fprintf(c.out, "%s %s %s\n", Red("✗"), e.URL, Dim(failureText(e)))
	case e.Status == models.StatusSucceeded && c.verbose:
		c.clearLine()
		fmt.Fprintf(c.out, "%s %s • %s\n", Green("✓"), filepath.Base(e.Path), humanize.Bytes(uint64(e.BytesWritten)))
	}
}

func failureText(e events.Event) string {
	msg := string(e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (%d attempts)", e.Attempts)
	}
	return msg
}

// draw rewrites the progress line; byte updates are throttled
func (c *ConsoleReporter) draw(st *StatusTracker, jobID string, force bool) {
	if !c.live {
		return
	}
	if !force && time.Since(c.lastDraw) < redrawInterval {
		return
	}
	c.lastDraw = time.Now()

	var pending int64
	for _, n := range c.inFlight {
		pending += n
	}

	eta := "calculating..."
	if d, ok := st.ETA(); ok {
		eta = formatDuration(d)
	}

	line := fmt.Sprintf("%s %s • %.1f/min • %s • %s",
		Cyan(st.CollectionKey),
		st.GetProgressBar(20),
		st.GetDownloadRate(),
		humanize.Bytes(uint64(st.Bytes+pending)),
		eta,
	)
	if name := c.current[jobID]; name != "" {
		line += " • " + name
	}
	if st.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", st.Failed))
	}
	c.clearLine()
	fmt.Fprint(c.out, line)
}

func (c *ConsoleReporter) printSummary(st *StatusTracker, e events.Event) {
	c.clearLine()
	if e.Total == 0 {
		return
	}
	elapsed := st.GetElapsedTime()
	fmt.Fprintf(c.out, "%s Fetched %d of %d files for %s\n",
		Green("✓"), e.Succeeded, e.Total, st.CollectionKey)
	fmt.Fprintf(c.out, "  %s %s in %s\n", Dim("•"), humanize.Bytes(uint64(st.Bytes)), formatDuration(elapsed))
	if e.Failed > 0 {
		fmt.Fprintf(c.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d failed", e.Failed)))
	}
	if e.Cancelled > 0 {
		fmt.Fprintf(c.out, "  %s %s\n", Dim("•"), Yellow(fmt.Sprintf("%d cancelled", e.Cancelled)))
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
