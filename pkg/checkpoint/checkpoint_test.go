package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(t.TempDir(), logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return mgr
}

func sampleSummary(key string) *models.Summary {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Summary{
		JobID:         "job-1",
		CollectionKey: key,
		Outcomes: []models.FetchOutcome{
			{Task: models.FetchTask{SourceURL: "https://x/1.jpg"}, Status: models.StatusSucceeded, BytesWritten: 100},
			{Task: models.FetchTask{SourceURL: "https://x/2.jpg"}, Status: models.StatusFailedPermanent,
				LastError: errs.PermanentHTTP(404, "404 Not Found")},
		},
		Succeeded:    1,
		Failed:       1,
		Skipped:      3,
		BytesWritten: 100,
		StartedAt:    start,
		Duration:     2 * time.Second,
	}
}

func TestCheckpointManager(t *testing.T) {
	t.Run("MissingLoadsAsNil", func(t *testing.T) {
		mgr := newManager(t)
		cp, err := mgr.Load("nothing")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cp != nil {
			t.Fatalf("Expected nil checkpoint, got %+v", cp)
		}
		if mgr.Exists("nothing") {
			t.Error("Expected no checkpoint file")
		}
	})

	t.Run("RecordAndLoad", func(t *testing.T) {
		mgr := newManager(t)

		if _, err := mgr.Record(sampleSummary("4chan_g_1")); err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}

		loaded, err := mgr.Load("4chan_g_1")
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Version != Version {
			t.Errorf("Expected version %d, got %d", Version, loaded.Version)
		}

		run := loaded.LastRun()
		if run == nil {
			t.Fatal("Expected a run")
		}
		if run.Planned != 2 || run.Succeeded != 1 || run.Failed != 1 || run.Skipped != 3 {
			t.Errorf("Unexpected counts: %+v", run)
		}
		if !run.FinishedAt.Equal(run.StartedAt.Add(2 * time.Second)) {
			t.Errorf("Expected finish 2s after start, got %v", run.FinishedAt)
		}
		if len(run.Failures) != 1 || run.Failures[0].URL != "https://x/2.jpg" || run.Failures[0].Kind != "permanent_http" {
			t.Errorf("Unexpected failures: %+v", run.Failures)
		}
	})

	t.Run("AccumulatesTotals", func(t *testing.T) {
		mgr := newManager(t)
		for i := 0; i < 3; i++ {
			if _, err := mgr.Record(sampleSummary("k")); err != nil {
				t.Fatalf("Failed to record run: %v", err)
			}
		}

		cp, err := mgr.Load("k")
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if cp.TotalDownloaded != 3 {
			t.Errorf("Expected 3 downloads, got %d", cp.TotalDownloaded)
		}
		if cp.TotalBytes != 300 {
			t.Errorf("Expected 300 bytes, got %d", cp.TotalBytes)
		}
	})

	t.Run("KeepsNewestRuns", func(t *testing.T) {
		mgr := newManager(t)
		for i := 0; i < MaxRuns+5; i++ {
			s := sampleSummary("k")
			s.JobID = fmt.Sprintf("job-%d", i)
			if _, err := mgr.Record(s); err != nil {
				t.Fatalf("Failed to record run: %v", err)
			}
		}

		cp, _ := mgr.Load("k")
		if len(cp.Runs) != MaxRuns {
			t.Fatalf("Expected %d runs, got %d", MaxRuns, len(cp.Runs))
		}
		if cp.Runs[0].JobID != "job-5" {
			t.Errorf("Expected oldest kept run job-5, got %s", cp.Runs[0].JobID)
		}
		if cp.LastRun().JobID != fmt.Sprintf("job-%d", MaxRuns+4) {
			t.Errorf("Unexpected last run %s", cp.LastRun().JobID)
		}
	})

	t.Run("KeysAndDelete", func(t *testing.T) {
		mgr := newManager(t)
		for _, key := range []string{"b/slash", "a"} {
			if _, err := mgr.Record(sampleSummary(key)); err != nil {
				t.Fatalf("Failed to record run: %v", err)
			}
		}

		keys, err := mgr.Keys()
		if err != nil {
			t.Fatalf("Failed to list keys: %v", err)
		}
		if strings.Join(keys, ",") != "a,b/slash" {
			t.Errorf("Unexpected keys %v", keys)
		}

		if err := mgr.Delete("a"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if mgr.Exists("a") {
			t.Error("Expected checkpoint to be deleted")
		}
		if err := mgr.Delete("a"); err != nil {
			t.Errorf("Deleting twice should not fail: %v", err)
		}
	})

	t.Run("CorruptFileStartsOver", func(t *testing.T) {
		mgr := newManager(t)
		if err := os.WriteFile(mgr.Path("k"), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := mgr.Load("k"); err == nil {
			t.Error("Expected decode error")
		}
		cp, err := mgr.Record(sampleSummary("k"))
		if err != nil {
			t.Fatalf("Record should recover from a corrupt file: %v", err)
		}
		if len(cp.Runs) != 1 {
			t.Errorf("Expected a fresh history, got %d runs", len(cp.Runs))
		}
	})

	t.Run("Info", func(t *testing.T) {
		mgr := newManager(t)
		info, err := mgr.GetCheckpointInfo("k")
		if err != nil || info != nil {
			t.Fatalf("Expected no info, got %v, %v", info, err)
		}

		mgr.Record(sampleSummary("k"))
		info, err = mgr.GetCheckpointInfo("k")
		if err != nil {
			t.Fatalf("Failed to get info: %v", err)
		}
		if info["last_job_id"] != "job-1" || info["runs"] != 1 {
			t.Errorf("Unexpected info %v", info)
		}
	})
}

func TestRunFromSummaryCapsFailures(t *testing.T) {
	s := &models.Summary{CollectionKey: "k"}
	for i := 0; i < MaxFailures+10; i++ {
		s.Outcomes = append(s.Outcomes, models.FetchOutcome{
			Task:      models.FetchTask{SourceURL: fmt.Sprintf("https://x/%d", i)},
			Status:    models.StatusFailedAfterRetries,
			LastError: errs.Network(errors.New("reset")),
		})
	}

	run := RunFromSummary(s)
	if len(run.Failures) != MaxFailures {
		t.Errorf("Expected %d failures, got %d", MaxFailures, len(run.Failures))
	}
	if run.Planned != MaxFailures+10 {
		t.Errorf("Expected planned %d, got %d", MaxFailures+10, run.Planned)
	}
}

func TestNewManagerRequiresDirectory(t *testing.T) {
	if _, err := NewManager("", nil); err == nil {
		t.Error("Expected error for empty directory")
	}
}
