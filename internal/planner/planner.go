package planner

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"mediafetch/internal/cache"
	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
)

// PlanOptions are the per-job knobs copied onto the planned Job
type PlanOptions struct {
	ConcurrencyLimit int
	AttemptBudget    int
	RefererURL       string
}

// Planner turns candidate URLs into a Job by filtering them against the
// cache, and commits successful outcomes back to it
type Planner struct {
	store  cache.Store
	logger logger.Logger
}

// New creates a planner over store
func New(store cache.Store, log logger.Logger) *Planner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Planner{store: store, logger: log}
}

// Plan loads the cache for key and builds one task per candidate that is not
// already recorded. Blank and repeated candidates are dropped, first
// occurrence wins. A Job with zero tasks is still returned.
//
// Invalid input is reported as a configuration error. An unreadable cache is
// logged and treated as empty. Plan never writes to the cache.
func (p *Planner) Plan(ctx context.Context, key string, candidates []string, dest models.DestinationFunc, opts PlanOptions) (*models.Job, error) {
	if err := validate(key, dest, opts); err != nil {
		return nil, err
	}

	cached, err := p.store.Load(ctx, key)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeCancelled) {
			return nil, err
		}
		p.logger.WarnWithFields("cache unreadable, treating as empty", map[string]interface{}{
			"collection": key,
			"error":      err.Error(),
		})
		cached = cache.URLSet{}
	}

	job := &models.Job{
		ID:               uuid.NewString(),
		CollectionKey:    key,
		ConcurrencyLimit: opts.ConcurrencyLimit,
		AttemptBudget:    opts.AttemptBudget,
	}

	seen := cache.URLSet{}
	destinations := make(map[string]string)
	for _, raw := range candidates {
		u := strings.TrimSpace(raw)
		if u == "" || cached.Has(u) || seen.Has(u) {
			job.Skipped++
			continue
		}
		seen.Add(u)

		path := dest(u)
		if path == "" {
			return nil, errs.Configuration("no destination for %s", u)
		}
		if other, dup := destinations[path]; dup {
			return nil, errs.Configuration("%s and %s share destination %s", other, u, path)
		}
		destinations[path] = u

		job.Tasks = append(job.Tasks, models.FetchTask{
			SourceURL:       u,
			DestinationPath: path,
			RefererURL:      opts.RefererURL,
		})
	}

	p.logger.DebugWithFields("planned job", map[string]interface{}{
		"job_id":     job.ID,
		"collection": key,
		"candidates": len(candidates),
		"tasks":      len(job.Tasks),
		"skipped":    job.Skipped,
	})
	return job, nil
}

func validate(key string, dest models.DestinationFunc, opts PlanOptions) error {
	switch {
	case key == "":
		return errs.Configuration("collection key must not be empty")
	case opts.ConcurrencyLimit < 1:
		return errs.Configuration("concurrency limit must be at least 1, got %d", opts.ConcurrencyLimit)
	case opts.AttemptBudget < 0:
		return errs.Configuration("attempt budget cannot be negative, got %d", opts.AttemptBudget)
	case dest == nil:
		return errs.Configuration("destination function is required")
	}
	return nil
}

// Commit records the source URLs of every succeeded outcome under the job's
// key. Failed and cancelled outcomes are never recorded.
func (p *Planner) Commit(ctx context.Context, job *models.Job, outcomes []models.FetchOutcome) error {
	var urls []string
	for _, o := range outcomes {
		if o.Status == models.StatusSucceeded {
			urls = append(urls, o.Task.SourceURL)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return p.store.Commit(ctx, job.CollectionKey, urls)
}
