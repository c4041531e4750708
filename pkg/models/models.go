package models

import (
	"time"

	errs "mediafetch/pkg/errors"
)

// FetchTask is one URL to materialize at one path. SourceURL identifies the
// task within a job.
type FetchTask struct {
	SourceURL       string `json:"source_url"`
	DestinationPath string `json:"destination_path"`
	RefererURL      string `json:"referer_url,omitempty"`
}

// Status is the terminal state of a fetch task
type Status string

const (
	StatusSucceeded          Status = "succeeded"
	StatusFailedPermanent    Status = "failed_permanent"
	StatusFailedAfterRetries Status = "failed_after_retries"
	StatusCancelled          Status = "cancelled"
)

// Failed reports whether the status counts as a failure in summaries
func (s Status) Failed() bool {
	return s == StatusFailedPermanent || s == StatusFailedAfterRetries
}

// FetchOutcome is the result of one task. LastError is nil on success.
type FetchOutcome struct {
	Task         FetchTask `json:"task"`
	Status       Status    `json:"status"`
	BytesWritten int64     `json:"bytes_written"`
	Attempts     int       `json:"attempts"`
	LastError    error     `json:"-"`
}

// Kind returns the error category of LastError, or "" on success
func (o FetchOutcome) Kind() errs.ErrorType {
	return errs.TypeOf(o.LastError)
}

// ErrorMessage returns LastError as text, or "" on success
func (o FetchOutcome) ErrorMessage() string {
	if o.LastError == nil {
		return ""
	}
	return o.LastError.Error()
}

// Job is a planned set of tasks for one collection key
type Job struct {
	ID               string
	CollectionKey    string
	Tasks            []FetchTask
	ConcurrencyLimit int
	AttemptBudget    int
	// Skipped counts candidates dropped as cached, blank or repeated
	Skipped int
}

// DestinationFunc maps a source URL to the local path it should be written to
type DestinationFunc func(sourceURL string) string

// Summary describes a finished job
type Summary struct {
	JobID         string         `json:"job_id"`
	CollectionKey string         `json:"collection_key"`
	Outcomes      []FetchOutcome `json:"outcomes"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	Cancelled     int            `json:"cancelled"`
	Skipped       int            `json:"skipped"`
	BytesWritten  int64          `json:"bytes_written"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
}

// Tally counts outcomes by status
func Tally(outcomes []FetchOutcome) (succeeded, failed, cancelled int, bytes int64) {
	for _, o := range outcomes {
		switch {
		case o.Status == StatusSucceeded:
			succeeded++
		case o.Status == StatusCancelled:
			cancelled++
		case o.Status.Failed():
			failed++
		}
		bytes += o.BytesWritten
	}
	return succeeded, failed, cancelled, bytes
}
