package events

import (
	"fmt"

	"mediafetch/pkg/logger"
)

// Safe wraps a subscriber so that a panic inside Emit is logged and
// swallowed instead of taking down the worker that emitted the event.
func Safe(next Reporter, log logger.Logger) Reporter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return ReporterFunc(func(e Event) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorWithFields("event subscriber panicked", map[string]interface{}{
					"kind":  string(e.Kind),
					"url":   e.URL,
					"panic": fmt.Sprint(r),
				})
			}
		}()
		next.Emit(e)
	})
}

// LogReporter writes events to a structured logger. Byte progress is logged
// at debug level only; everything else follows the event's significance.
type LogReporter struct {
	Logger logger.Logger
}

func (r LogReporter) Emit(e Event) {
	fields := map[string]interface{}{
		"kind": string(e.Kind),
	}
	if e.JobID != "" {
		fields["job_id"] = e.JobID
	}
	if e.CollectionKey != "" {
		fields["collection"] = e.CollectionKey
	}
	if e.URL != "" {
		fields["url"] = e.URL
	}

	switch e.Kind {
	case KindStarted:
		fields["path"] = e.Path
		r.Logger.DebugWithFields("task started", fields)
	case KindBytesTransferred:
		fields["bytes"] = e.BytesWritten
		r.Logger.DebugWithFields("bytes transferred", fields)
	case KindTaskCompleted:
		logger.LogFetch(r.Logger.WithFields(fields), e.URL, e.Path, string(e.Status), e.Attempts, e.BytesWritten, e.Err)
	case KindJobCompleted:
		fields["succeeded"] = e.Succeeded
		fields["failed"] = e.Failed
		fields["cancelled"] = e.Cancelled
		fields["total"] = e.Total
		r.Logger.InfoWithFields("job completed", fields)
	case KindLogLine:
		if e.ErrorKind != "" {
			fields["error_kind"] = string(e.ErrorKind)
		}
		switch e.Level {
		case LevelError:
			r.Logger.ErrorWithFields(e.Message, fields)
		case LevelWarn:
			r.Logger.WarnWithFields(e.Message, fields)
		case LevelDebug:
			r.Logger.DebugWithFields(e.Message, fields)
		default:
			r.Logger.InfoWithFields(e.Message, fields)
		}
	}
}
