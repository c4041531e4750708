package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/events"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
)

func makeTasks(n int) []models.FetchTask {
	tasks := make([]models.FetchTask, n)
	for i := range tasks {
		tasks[i] = models.FetchTask{
			SourceURL:       fmt.Sprintf("https://media.example/%d.jpg", i),
			DestinationPath: fmt.Sprintf("/tmp/out/%d.jpg", i),
		}
	}
	return tasks
}

func succeed(_ context.Context, task models.FetchTask, _ events.Reporter) models.FetchOutcome {
	return models.FetchOutcome{Task: task, Status: models.StatusSucceeded, BytesWritten: 10, Attempts: 1}
}

func TestRunAllReturnsOneOutcomePerTask(t *testing.T) {
	tasks := makeTasks(25)
	var rec events.Recorder

	outcomes := RunAll(context.Background(), tasks, 4, succeed, &rec, WithPoolLogger(logger.NewNopLogger()))

	require.Len(t, outcomes, 25)
	seen := map[string]bool{}
	for _, o := range outcomes {
		assert.Equal(t, models.StatusSucceeded, o.Status)
		seen[o.Task.SourceURL] = true
	}
	assert.Len(t, seen, 25, "every task reported exactly once")

	assert.Len(t, rec.OfKind(events.KindStarted), 25)
	jobDone := rec.OfKind(events.KindJobCompleted)
	require.Len(t, jobDone, 1)
	assert.Equal(t, 25, jobDone[0].Succeeded)
	assert.Equal(t, 25, jobDone[0].Total)
}

func TestRunAllEmptyJob(t *testing.T) {
	var rec events.Recorder
	outcomes := RunAll(context.Background(), nil, 4, succeed, &rec)

	assert.Empty(t, outcomes)
	jobDone := rec.OfKind(events.KindJobCompleted)
	require.Len(t, jobDone, 1)
	assert.Equal(t, 0, jobDone[0].Total)
}

func TestRunAllRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	fetch := func(ctx context.Context, task models.FetchTask, r events.Reporter) models.FetchOutcome {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return succeed(ctx, task, r)
	}

	outcomes := RunAll(context.Background(), makeTasks(12), 2, fetch, nil)

	assert.Len(t, outcomes, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak), "limit is actually used")
}

func TestRunAllIsolatesFailures(t *testing.T) {
	tasks := makeTasks(6)
	fetch := func(ctx context.Context, task models.FetchTask, r events.Reporter) models.FetchOutcome {
		switch task.SourceURL {
		case tasks[1].SourceURL:
			return models.FetchOutcome{Task: task, Status: models.StatusFailedPermanent, Attempts: 1, LastError: errs.PermanentHTTP(404, "404 Not Found")}
		case tasks[3].SourceURL:
			panic("decoder exploded")
		}
		return succeed(ctx, task, r)
	}
	var rec events.Recorder

	outcomes := RunAll(context.Background(), tasks, 3, fetch, &rec, WithPoolLogger(logger.NewNopLogger()))

	require.Len(t, outcomes, 6)
	byURL := map[string]models.FetchOutcome{}
	for _, o := range outcomes {
		byURL[o.Task.SourceURL] = o
	}
	assert.Equal(t, models.StatusFailedPermanent, byURL[tasks[1].SourceURL].Status)
	assert.Equal(t, models.StatusFailedPermanent, byURL[tasks[3].SourceURL].Status)
	assert.Equal(t, errs.ErrorTypeUnknown, byURL[tasks[3].SourceURL].Kind())
	for _, i := range []int{0, 2, 4, 5} {
		assert.Equal(t, models.StatusSucceeded, byURL[tasks[i].SourceURL].Status)
	}

	jobDone := rec.OfKind(events.KindJobCompleted)
	require.Len(t, jobDone, 1)
	assert.Equal(t, 4, jobDone[0].Succeeded)
	assert.Equal(t, 2, jobDone[0].Failed)
}

func TestRunAllCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	fetch := func(ctx context.Context, task models.FetchTask, _ events.Reporter) models.FetchOutcome {
		atomic.AddInt32(&calls, 1)
		cancel()
		<-ctx.Done()
		return models.FetchOutcome{Task: task, Status: models.StatusCancelled, LastError: errs.Cancelled(ctx.Err())}
	}

	outcomes := RunAll(ctx, makeTasks(5), 1, fetch, nil)

	require.Len(t, outcomes, 5)
	for _, o := range outcomes {
		assert.Equal(t, models.StatusCancelled, o.Status)
		assert.Equal(t, errs.ErrorTypeCancelled, o.Kind())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "queued tasks never launch")
}

func TestRunAllOutcomeHook(t *testing.T) {
	var mu sync.Mutex
	var hooked []string
	hook := func(o models.FetchOutcome) {
		mu.Lock()
		defer mu.Unlock()
		hooked = append(hooked, o.Task.SourceURL)
	}

	outcomes := RunAll(context.Background(), makeTasks(8), 3, succeed, nil, WithOutcomeHook(hook))

	require.Len(t, hooked, 8)
	for i, o := range outcomes {
		assert.Equal(t, o.Task.SourceURL, hooked[i], "hook sees outcomes in collection order")
	}
}

func TestWorkerPoolSubmitFull(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 1, succeed, nil, logger.NewNopLogger())

	require.NoError(t, pool.Submit(makeTasks(1)[0]))
	assert.Error(t, pool.Submit(makeTasks(1)[0]), "queue holds one task")

	pool.Start()
	go pool.Stop()
	var n int
	for range pool.Results() {
		n++
	}
	assert.Equal(t, 1, n)
}
