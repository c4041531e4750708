package checkpoint

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
	"mediafetch/pkg/storage"
)

const (
	// Version of the on-disk checkpoint format
	Version = 1
	// MaxRuns is how many runs are kept per collection
	MaxRuns = 20
	// MaxFailures is how many failures are kept per run
	MaxFailures = 50

	fileSuffix = ".checkpoint.json"
)

// Failure is one failed URL of a run
type Failure struct {
	URL     string `json:"url"`
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Run records the result of one job
type Run struct {
	JobID        string    `json:"job_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Planned      int       `json:"planned"`
	Skipped      int       `json:"skipped"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Cancelled    int       `json:"cancelled"`
	BytesWritten int64     `json:"bytes_written"`
	Failures     []Failure `json:"failures,omitempty"`
}

// Checkpoint is the run history of one collection key, newest run last
type Checkpoint struct {
	CollectionKey   string    `json:"collection_key"`
	Runs            []Run     `json:"runs"`
	TotalDownloaded int       `json:"total_downloaded"`
	TotalBytes      int64     `json:"total_bytes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int       `json:"version"`
}

// LastRun returns the most recent run, or nil
func (c *Checkpoint) LastRun() *Run {
	if len(c.Runs) == 0 {
		return nil
	}
	return &c.Runs[len(c.Runs)-1]
}

// Manager reads and writes checkpoints under one directory
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a manager rooted at dir, creating it if needed
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{dir: dir, logger: log}, nil
}

// Path returns the checkpoint file for key
func (m *Manager) Path(key string) string {
	return filepath.Join(m.dir, url.PathEscape(key)+fileSuffix)
}

// Load reads the checkpoint for key. A missing file yields (nil, nil).
func (m *Manager) Load(key string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	cp.Version = Version

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := storage.WriteBytes(m.Path(cp.CollectionKey), data); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"collection": cp.CollectionKey,
		"runs":       len(cp.Runs),
	})
	return nil
}

// Record appends the run built from summary to the key's history, keeping
// the newest MaxRuns entries
func (m *Manager) Record(summary *models.Summary) (*Checkpoint, error) {
	cp, err := m.Load(summary.CollectionKey)
	if err != nil {
		m.logger.WarnWithFields("Checkpoint unreadable, starting a new one", map[string]interface{}{
			"collection": summary.CollectionKey,
			"error":      err.Error(),
		})
		cp = nil
	}
	if cp == nil {
		cp = &Checkpoint{CollectionKey: summary.CollectionKey, CreatedAt: time.Now()}
	}

	cp.Runs = append(cp.Runs, RunFromSummary(summary))
	if len(cp.Runs) > MaxRuns {
		cp.Runs = append([]Run(nil), cp.Runs[len(cp.Runs)-MaxRuns:]...)
	}
	cp.TotalDownloaded += summary.Succeeded
	cp.TotalBytes += summary.BytesWritten

	if err := m.Save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// RunFromSummary converts a job summary into a journal entry
func RunFromSummary(s *models.Summary) Run {
	run := Run{
		JobID:        s.JobID,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.StartedAt.Add(s.Duration),
		Planned:      len(s.Outcomes),
		Skipped:      s.Skipped,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		Cancelled:    s.Cancelled,
		BytesWritten: s.BytesWritten,
	}
	for _, o := range s.Outcomes {
		if !o.Status.Failed() || len(run.Failures) >= MaxFailures {
			continue
		}
		run.Failures = append(run.Failures, Failure{
			URL:     o.Task.SourceURL,
			Status:  string(o.Status),
			Kind:    string(o.Kind()),
			Message: o.ErrorMessage(),
		})
	}
	return run
}

// Delete removes the checkpoint for key
func (m *Manager) Delete(key string) error {
	if err := os.Remove(m.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{"collection": key})
	return nil
}

// Exists checks if a checkpoint file exists for key
func (m *Manager) Exists(key string) bool {
	_, err := os.Stat(m.Path(key))
	return err == nil
}

// Keys lists the collection keys that have a checkpoint, sorted
func (m *Manager) Keys() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetCheckpointInfo returns a summary of the checkpoint for key, or nil if
// there is none
func (m *Manager) GetCheckpointInfo(key string) (map[string]interface{}, error) {
	cp, err := m.Load(key)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, nil
	}

	info := map[string]interface{}{
		"collection":       cp.CollectionKey,
		"runs":             len(cp.Runs),
		"total_downloaded": cp.TotalDownloaded,
		"total_bytes":      cp.TotalBytes,
		"created_at":       cp.CreatedAt,
		"updated_at":       cp.UpdatedAt,
		"age":              time.Since(cp.UpdatedAt),
	}
	if last := cp.LastRun(); last != nil {
		info["last_job_id"] = last.JobID
		info["last_succeeded"] = last.Succeeded
		info["last_failed"] = last.Failed
	}
	return info, nil
}
