package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"mediafetch/internal/cache"
	"mediafetch/internal/downloader"
	"mediafetch/internal/planner"
	"mediafetch/pkg/checkpoint"
	"mediafetch/pkg/config"
	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/events"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
)

// Descriptor describes one job: which URLs to consider for a collection and
// where each one goes
type Descriptor struct {
	CollectionKey string
	CandidateURLs []string
	Destination   models.DestinationFunc
	// ConcurrencyLimit of 0 uses the configured concurrency
	ConcurrencyLimit int
	RefererURL       string
	// AttemptBudget of 0 uses the configured budget
	AttemptBudget int
}

// Engine runs jobs against a shared cache. One Engine serves any number of
// collections; jobs on the same key are serialized.
type Engine struct {
	config    *config.Config
	store     cache.Store
	ownsStore bool
	fetcher   *downloader.Fetcher
	fetchFunc downloader.FetchFunc
	fetchOpts []downloader.FetcherOption
	planner   *planner.Planner
	locks     *planner.KeyLocks
	journal   *checkpoint.Manager
	noJournal bool
	reporter  events.Reporter
	logger    logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithReporter sets the event sink. Subscriber panics are recovered.
func WithReporter(r events.Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithStore uses store instead of opening the configured cache. The caller
// keeps ownership and must close it.
func WithStore(store cache.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithLogger sets the engine logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFetcherOptions passes extra options to the fetcher, applied after the
// configured ones
func WithFetcherOptions(opts ...downloader.FetcherOption) Option {
	return func(e *Engine) { e.fetchOpts = append(e.fetchOpts, opts...) }
}

// WithFetchFunc replaces the HTTP fetcher entirely
func WithFetchFunc(fn downloader.FetchFunc) Option {
	return func(e *Engine) { e.fetchFunc = fn }
}

// WithoutJournal disables the run journal regardless of configuration
func WithoutJournal() Option {
	return func(e *Engine) { e.noJournal = true }
}

// New builds an engine from cfg
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeConfiguration, Message: "invalid configuration", Err: err}
	}

	e := &Engine{config: cfg, locks: planner.NewKeyLocks()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.GetLogger()
	}
	if e.reporter == nil {
		e.reporter = events.Nop
	}
	e.reporter = events.Safe(e.reporter, e.logger)

	if e.store == nil {
		store, err := cache.Open(cfg.Cache)
		if err != nil {
			return nil, err
		}
		e.store = store
		e.ownsStore = true
	}

	if cfg.Journal.Enabled && !e.noJournal {
		journal, err := checkpoint.NewManager(cfg.Journal.Directory, e.logger)
		if err != nil {
			// the journal is informational; run without it
			e.logger.WarnWithFields("Run journal unavailable", map[string]interface{}{
				"directory": cfg.Journal.Directory,
				"error":     err.Error(),
			})
		} else {
			e.journal = journal
		}
	}

	e.fetcher = downloader.NewFetcherFromConfig(cfg.Fetch, cfg.RateLimit, e.logger, e.fetchOpts...)
	e.planner = planner.New(e.store, e.logger)

	logger.LogComponentStart(e.logger, "engine", map[string]interface{}{
		"cache_backend": cfg.Cache.Backend,
		"concurrency":   cfg.Fetch.Concurrency,
		"journal":       e.journal != nil,
	})
	return e, nil
}

// Store returns the cache the engine plans against
func (e *Engine) Store() cache.Store {
	return e.store
}

// Journal returns the run journal, or nil when it is disabled
func (e *Engine) Journal() *checkpoint.Manager {
	return e.journal
}

// Close releases the cache if the engine opened it
func (e *Engine) Close() error {
	logger.LogComponentStop(e.logger, "engine", "closed")
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

// Run plans and executes one job. It returns an error only for invalid
// descriptors or when ctx ends while waiting for another job on the same key;
// individual fetch failures are reported in the summary.
//
// Each success is committed to the cache as soon as it completes, so an
// interrupted run loses at most its in-flight tasks.
func (e *Engine) Run(ctx context.Context, d Descriptor) (*models.Summary, error) {
	if d.CollectionKey == "" {
		return nil, errs.Configuration("collection key must not be empty")
	}
	limit := d.ConcurrencyLimit
	if limit == 0 {
		limit = e.config.Fetch.Concurrency
	}
	budget := d.AttemptBudget
	if budget == 0 {
		budget = e.config.Fetch.AttemptBudget
	}

	unlock, err := e.locks.Lock(ctx, d.CollectionKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	started := time.Now()
	job, err := e.planner.Plan(ctx, d.CollectionKey, d.CandidateURLs, d.Destination, planner.PlanOptions{
		ConcurrencyLimit: limit,
		AttemptBudget:    budget,
		RefererURL:       d.RefererURL,
	})
	if err != nil {
		return nil, err
	}

	reporter := events.WithJob(e.reporter, job.ID, job.CollectionKey)
	var planned events.Event
	if len(job.Tasks) == 0 {
		planned = events.Log(events.LevelInfo, fmt.Sprintf("nothing new for %s", job.CollectionKey))
	} else {
		planned = events.Log(events.LevelInfo, fmt.Sprintf("fetching %d new of %d candidates for %s",
			len(job.Tasks), len(d.CandidateURLs), job.CollectionKey))
	}
	planned.Total = len(job.Tasks)
	reporter.Emit(planned)

	fetch := e.fetchFunc
	if fetch == nil {
		fetch = func(ctx context.Context, task models.FetchTask, r events.Reporter) models.FetchOutcome {
			return e.fetcher.Fetch(ctx, task, job.AttemptBudget, r)
		}
	}

	// commits must land even if ctx is cancelled after the file is written
	commitCtx := context.WithoutCancel(ctx)
	commit := func(o models.FetchOutcome) {
		if o.Status != models.StatusSucceeded {
			return
		}
		if err := e.planner.Commit(commitCtx, job, []models.FetchOutcome{o}); err != nil {
			e.logger.ErrorWithFields("Failed to record fetched URL", map[string]interface{}{
				"collection": job.CollectionKey,
				"url":        o.Task.SourceURL,
				"error":      err.Error(),
			})
			failure := events.FailureLog(o.Task.SourceURL, err)
			failure.Level = events.LevelError
			reporter.Emit(failure)
		}
	}

	outcomes := downloader.RunAll(ctx, job.Tasks, job.ConcurrencyLimit, fetch, reporter,
		downloader.WithOutcomeHook(commit),
		downloader.WithPoolLogger(e.logger),
	)

	summary := summarize(job, outcomes, started)
	e.record(summary)

	e.logger.InfoWithFields("Job finished", map[string]interface{}{
		"job_id":     summary.JobID,
		"collection": summary.CollectionKey,
		"succeeded":  summary.Succeeded,
		"failed":     summary.Failed,
		"cancelled":  summary.Cancelled,
		"skipped":    summary.Skipped,
		"bytes":      summary.BytesWritten,
		"duration":   summary.Duration.String(),
	})
	return summary, nil
}

func summarize(job *models.Job, outcomes []models.FetchOutcome, started time.Time) *models.Summary {
	succeeded, failed, cancelled, bytes := models.Tally(outcomes)
	return &models.Summary{
		JobID:         job.ID,
		CollectionKey: job.CollectionKey,
		Outcomes:      outcomes,
		Succeeded:     succeeded,
		Failed:        failed,
		Cancelled:     cancelled,
		Skipped:       job.Skipped,
		BytesWritten:  bytes,
		StartedAt:     started,
		Duration:      time.Since(started),
	}
}

func (e *Engine) record(s *models.Summary) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Record(s); err != nil {
		e.logger.WarnWithFields("Failed to write run journal", map[string]interface{}{
			"collection": s.CollectionKey,
			"error":      err.Error(),
		})
	}
}

// RunMany runs descriptors concurrently, at most Fetch.MaxParallelJobs at a
// time. Descriptors sharing a key run one after another. Summaries are
// returned in descriptor order; a descriptor that failed to run leaves a nil
// entry and the first such error is returned.
func (e *Engine) RunMany(ctx context.Context, ds []Descriptor) ([]*models.Summary, error) {
	summaries := make([]*models.Summary, len(ds))

	var g errgroup.Group
	limit := e.config.Fetch.MaxParallelJobs
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, d := range ds {
		g.Go(func() error {
			s, err := e.Run(ctx, d)
			if err != nil {
				return fmt.Errorf("job %s: %w", d.CollectionKey, err)
			}
			summaries[i] = s
			return nil
		})
	}

	err := g.Wait()
	return summaries, err
}
