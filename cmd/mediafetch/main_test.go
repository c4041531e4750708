package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafetch/internal/cache"
	"mediafetch/pkg/checkpoint"
	"mediafetch/pkg/config"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
	"mediafetch/pkg/sources"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Cache.Directory = t.TempDir()
	cfg.Journal.Directory = t.TempDir()
	return cfg
}

func TestDescribeOverrides(t *testing.T) {
	cfg := testConfig(t)
	d := &sources.Discovery{
		CollectionKey: "4chan_g_1",
		Folder:        "4chan/g/1",
		Referer:       sources.ChanReferer,
		Items:         []sources.Item{{URL: "https://i.4cdn.org/g/1.jpg"}},
	}

	got := describe(cfg, d, "", "")
	assert.Equal(t, "4chan_g_1", got.CollectionKey)
	assert.Equal(t, sources.ChanReferer, got.RefererURL)
	assert.Equal(t, []string{"https://i.4cdn.org/g/1.jpg"}, got.CandidateURLs)
	assert.Equal(t, filepath.Join(cfg.Output.BaseDirectory, "4chan", "g", "1", "1.jpg"), got.Destination("https://i.4cdn.org/g/1.jpg"))
	assert.Zero(t, got.ConcurrencyLimit, "engine falls back to the configured limit")

	got = describe(cfg, d, "mine", "https://example.com/")
	assert.Equal(t, "mine", got.CollectionKey)
	assert.Equal(t, "https://example.com/", got.RefererURL)
}

func TestDiscoverListFile(t *testing.T) {
	cfg := testConfig(t)
	list := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(list, []byte("https://x.example/a.png\nhttps://x.example/b.png\n"), 0644))

	ds, err := discover(context.Background(), cfg, strings.NewReader("https://y.example/c.gif\n"), []string{list, "-"})
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "list_urls", ds[0].CollectionKey)
	assert.Len(t, ds[0].CandidateURLs, 2)
	assert.Equal(t, "list_stdin", ds[1].CollectionKey)

	_, err = discover(context.Background(), cfg, nil, []string{"nonsense"})
	assert.Error(t, err)
}

func TestFailureError(t *testing.T) {
	assert.NoError(t, failureError(nil))
	assert.NoError(t, failureError([]*models.Summary{{Succeeded: 2}, nil}))
	assert.EqualError(t, failureError([]*models.Summary{{Failed: 1}, {Failed: 2, Cancelled: 1}}), "3 files failed")
	assert.EqualError(t, failureError([]*models.Summary{{Cancelled: 4}}), "interrupted, 4 files not fetched")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "sure?"))
	assert.True(t, confirm(strings.NewReader(" YES \n"), &out, "sure?"))
	assert.False(t, confirm(strings.NewReader("n\n"), &out, "sure?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "sure?"))
	assert.Contains(t, out.String(), "sure? [y/N]")
}

func TestListKeys(t *testing.T) {
	store, err := cache.NewTextStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, listKeys(ctx, store, &out))
	assert.Contains(t, out.String(), "No collections cached")

	require.NoError(t, store.Commit(ctx, "4chan_g_1", []string{"https://a/1", "https://a/2"}))
	out.Reset()
	require.NoError(t, listKeys(ctx, store, &out))
	assert.Contains(t, out.String(), "4chan_g_1")
	assert.Contains(t, out.String(), "2 URLs")
}

func TestPrintStatus(t *testing.T) {
	journal, err := checkpoint.NewManager(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	_, err = journal.Record(&models.Summary{
		JobID:         "job-a",
		CollectionKey: "list_favs",
		Succeeded:     1,
		Failed:        1,
		BytesWritten:  2048,
		StartedAt:     time.Now().Add(-time.Second),
		Duration:      time.Second,
		Outcomes: []models.FetchOutcome{
			{Task: models.FetchTask{SourceURL: "https://x/ok.jpg"}, Status: models.StatusSucceeded, BytesWritten: 2048},
			{Task: models.FetchTask{SourceURL: "https://x/gone.jpg"}, Status: models.StatusFailedPermanent},
		},
	})
	require.NoError(t, err)
	cp, err := journal.Load("list_favs")
	require.NoError(t, err)

	var out bytes.Buffer
	printStatus(&out, cp, 5)
	assert.Contains(t, out.String(), "list_favs: 1 files, 2.0 kB in 1 runs")
	assert.Contains(t, out.String(), "job-a")
	assert.Contains(t, out.String(), "fetched 1 (2.0 kB), failed 1")
	assert.Contains(t, out.String(), "https://x/gone.jpg")
}

func TestListJournal(t *testing.T) {
	journal, err := checkpoint.NewManager(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, listJournal(&out, journal))
	assert.Contains(t, out.String(), "No runs recorded")

	_, err = journal.Record(&models.Summary{JobID: "job-b", CollectionKey: "4chan_g_9", Succeeded: 3, Failed: 2})
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, listJournal(&out, journal))
	assert.Contains(t, out.String(), "4chan_g_9")
	assert.Contains(t, out.String(), "1 runs")
	assert.Contains(t, out.String(), "(2 failed)")
}

func TestWatcherRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{}, 1)
	w, err := newWatcher(ctx, "@every 1h", logger.NewNopLogger(), func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	w.Run()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not start")
	}
	cancel()
	w.Stop()
}

func TestWatcherSkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32
	w, err := newWatcher(context.Background(), "@hourly", logger.NewNopLogger(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)

	go w.tick()
	<-started
	w.tick()
	close(release)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatcherRejectsBadSchedule(t *testing.T) {
	_, err := newWatcher(context.Background(), "every tuesday", logger.NewNopLogger(), func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestPairs(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"now": 1, "next": 2}, pairs([]interface{}{"now", 1, "next", 2, "dangling"}))
}
