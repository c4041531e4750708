package downloader

import (
	"context"
	"fmt"
	"sync"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/events"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
)

// FetchFunc performs one task and always returns its outcome
type FetchFunc func(ctx context.Context, task models.FetchTask, reporter events.Reporter) models.FetchOutcome

// OutcomeHook observes each outcome as the collector receives it. Hooks run
// on a single goroutine, one outcome at a time.
type OutcomeHook func(models.FetchOutcome)

type runOptions struct {
	hook   OutcomeHook
	logger logger.Logger
}

// RunOption configures RunAll
type RunOption func(*runOptions)

// WithOutcomeHook registers fn to be called for every outcome
func WithOutcomeHook(fn OutcomeHook) RunOption {
	return func(o *runOptions) { o.hook = fn }
}

// WithPoolLogger sets the logger used by the workers
func WithPoolLogger(l logger.Logger) RunOption {
	return func(o *runOptions) { o.logger = l }
}

// WorkerPool runs fetch tasks on a fixed number of workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan models.FetchTask
	resultQueue chan models.FetchOutcome
	wg          sync.WaitGroup
	ctx         context.Context
	fetch       FetchFunc
	reporter    events.Reporter
	logger      logger.Logger
	stopOnce    sync.Once
}

// NewWorkerPool creates a pool whose queue holds up to capacity tasks.
// Cancelling ctx stops new launches; queued tasks then complete as Cancelled.
func NewWorkerPool(ctx context.Context, numWorkers, capacity int, fetch FetchFunc, reporter events.Reporter, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if reporter == nil {
		reporter = events.Nop
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan models.FetchTask, capacity),
		resultQueue: make(chan models.FetchOutcome, numWorkers),
		ctx:         ctx,
		fetch:       fetch,
		reporter:    reporter,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit queues a task without blocking. It fails once the queue is full and
// must not be called after Stop.
func (wp *WorkerPool) Submit(task models.FetchTask) error {
	select {
	case wp.jobQueue <- task:
		return nil
	default:
		return fmt.Errorf("worker pool queue is full")
	}
}

// Stop closes the queue, waits for the workers to drain it and closes Results
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.logger.Debug("Worker pool stopped")
	})
}

// Results returns the outcome channel; it is closed by Stop
func (wp *WorkerPool) Results() <-chan models.FetchOutcome {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.jobQueue {
		wp.resultQueue <- wp.processTask(task, id)
	}
}

// processTask launches a task unless the pool's context is already done,
// in which case the task completes as Cancelled without a request
func (wp *WorkerPool) processTask(task models.FetchTask, workerID int) (out models.FetchOutcome) {
	if err := wp.ctx.Err(); err != nil {
		out = models.FetchOutcome{Task: task, Status: models.StatusCancelled, LastError: errs.Cancelled(err)}
		wp.reporter.Emit(events.TaskCompleted(out))
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			wp.logger.ErrorWithFields("Worker recovered from panic", map[string]interface{}{
				"worker_id": workerID,
				"url":       task.SourceURL,
				"panic":     fmt.Sprint(r),
			})
			out = models.FetchOutcome{
				Task:      task,
				Status:    models.StatusFailedPermanent,
				Attempts:  1,
				LastError: &errs.Error{Type: errs.ErrorTypeUnknown, Message: fmt.Sprintf("panic: %v", r)},
			}
			wp.reporter.Emit(events.TaskCompleted(out))
			wp.reporter.Emit(events.FailureLog(task.SourceURL, out.LastError))
		}
	}()

	wp.logger.DebugWithFields("Worker processing task", map[string]interface{}{
		"worker_id": workerID,
		"url":       task.SourceURL,
	})
	wp.reporter.Emit(events.Started(task))
	return wp.fetch(wp.ctx, task, wp.reporter)
}

// RunAll executes tasks with at most limit in flight and returns one outcome
// per task in completion order. One JobCompleted event is emitted at the end.
func RunAll(ctx context.Context, tasks []models.FetchTask, limit int, fetch FetchFunc, reporter events.Reporter, opts ...RunOption) []models.FetchOutcome {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.GetLogger()
	}
	if reporter == nil {
		reporter = events.Nop
	}

	workers := limit
	if workers > len(tasks) {
		workers = len(tasks)
	}

	outcomes := make([]models.FetchOutcome, 0, len(tasks))
	if len(tasks) > 0 {
		pool := NewWorkerPool(ctx, workers, len(tasks), fetch, reporter, o.logger)
		pool.Start()
		for _, task := range tasks {
			// capacity equals len(tasks), so Submit cannot fail here
			_ = pool.Submit(task)
		}
		go pool.Stop()

		for out := range pool.Results() {
			outcomes = append(outcomes, out)
			if o.hook != nil {
				o.hook(out)
			}
		}
	}

	succeeded, failed, cancelled, _ := models.Tally(outcomes)
	reporter.Emit(events.JobCompleted(succeeded, failed, cancelled, len(tasks)))
	return outcomes
}
