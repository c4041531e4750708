package events

import (
	"sync"
	"time"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/models"
)

// Kind identifies what an Event reports
type Kind string

const (
	KindStarted          Kind = "started"
	KindBytesTransferred Kind = "bytes_transferred"
	KindTaskCompleted    Kind = "task_completed"
	KindJobCompleted     Kind = "job_completed"
	KindLogLine          Kind = "log_line"
)

// Level is the severity of a LogLine event
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one progress notification. Which fields are set depends on Kind:
//
//	Started:          URL, Path
//	BytesTransferred: URL, BytesWritten (running total), BytesTotal (0 if unknown)
//	TaskCompleted:    URL, Path, Status, BytesWritten, Attempts, ErrorKind, Err
//	JobCompleted:     Succeeded, Failed, Cancelled, Total
//	LogLine:          Level, Message, optionally URL and ErrorKind; the planning
//	                  line of a job also carries Total
type Event struct {
	Kind          Kind
	JobID         string
	CollectionKey string
	Time          time.Time

	URL  string
	Path string

	BytesWritten int64
	BytesTotal   int64

	Status    models.Status
	Attempts  int
	ErrorKind errs.ErrorType
	Err       error

	Succeeded int
	Failed    int
	Cancelled int
	Total     int

	Level   Level
	Message string
}

// Reporter receives events. Implementations must be safe for concurrent use;
// Emit is called from worker goroutines.
type Reporter interface {
	Emit(Event)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(Event)

func (f ReporterFunc) Emit(e Event) { f(e) }

// Nop discards every event
var Nop Reporter = ReporterFunc(func(Event) {})

// Started builds a Started event
func Started(task models.FetchTask) Event {
	return Event{Kind: KindStarted, URL: task.SourceURL, Path: task.DestinationPath, Time: time.Now()}
}

// Bytes builds a BytesTransferred event
func Bytes(task models.FetchTask, written, total int64) Event {
	return Event{
		Kind:         KindBytesTransferred,
		URL:          task.SourceURL,
		Path:         task.DestinationPath,
		BytesWritten: written,
		BytesTotal:   total,
		Time:         time.Now(),
	}
}

// TaskCompleted builds a TaskCompleted event from an outcome
func TaskCompleted(o models.FetchOutcome) Event {
	return Event{
		Kind:         KindTaskCompleted,
		URL:          o.Task.SourceURL,
		Path:         o.Task.DestinationPath,
		Status:       o.Status,
		BytesWritten: o.BytesWritten,
		Attempts:     o.Attempts,
		ErrorKind:    o.Kind(),
		Err:          o.LastError,
		Time:         time.Now(),
	}
}

// JobCompleted builds a JobCompleted event
func JobCompleted(succeeded, failed, cancelled, total int) Event {
	return Event{
		Kind:      KindJobCompleted,
		Succeeded: succeeded,
		Failed:    failed,
		Cancelled: cancelled,
		Total:     total,
		Time:      time.Now(),
	}
}

// Log builds a LogLine event
func Log(level Level, msg string) Event {
	return Event{Kind: KindLogLine, Level: level, Message: msg, Time: time.Now()}
}

// FailureLog builds a LogLine describing a failed URL
func FailureLog(url string, err error) Event {
	e := Log(LevelWarn, err.Error())
	e.URL = url
	e.ErrorKind = errs.TypeOf(err)
	e.Err = err
	return e
}

// Multi fans every event out to all reporters in order
func Multi(reporters ...Reporter) Reporter {
	var list []Reporter
	for _, r := range reporters {
		if r != nil {
			list = append(list, r)
		}
	}
	return ReporterFunc(func(e Event) {
		for _, r := range list {
			r.Emit(e)
		}
	})
}

// WithJob stamps the job ID and collection key on every event passed to next
func WithJob(next Reporter, jobID, collectionKey string) Reporter {
	return ReporterFunc(func(e Event) {
		e.JobID = jobID
		e.CollectionKey = collectionKey
		next.Emit(e)
	})
}

// Recorder captures events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
