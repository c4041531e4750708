package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediafetch/pkg/config"
	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/events"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
	"mediafetch/pkg/ratelimit"
	"mediafetch/pkg/retry"
	"mediafetch/pkg/storage"
)

const (
	DefaultAttemptBudget   = 3
	DefaultRateLimitBudget = 10
	DefaultChunkSize       = 1 << 20
	DefaultUserAgent       = "mediafetch/1.0"
)

// Fetcher downloads one task at a time with retry and rate-limit handling.
// It never touches the fetch cache.
type Fetcher struct {
	client          *http.Client
	limiter         ratelimit.Limiter
	backoff         retry.BackoffStrategy
	clock           retry.Clock
	logger          logger.Logger
	userAgent       string
	chunkSize       int
	rateLimitBudget int
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption { return func(f *Fetcher) { f.client = c } }
func WithLimiter(l ratelimit.Limiter) FetcherOption { return func(f *Fetcher) { f.limiter = l } }
func WithBackoff(b retry.BackoffStrategy) FetcherOption { return func(f *Fetcher) { f.backoff = b } }
func WithClock(c retry.Clock) FetcherOption { return func(f *Fetcher) { f.clock = c } }
func WithLogger(l logger.Logger) FetcherOption { return func(f *Fetcher) { f.logger = l } }
func WithUserAgent(ua string) FetcherOption { return func(f *Fetcher) { f.userAgent = ua } }
func WithChunkSize(n int) FetcherOption { return func(f *Fetcher) { f.chunkSize = n } }

// WithRateLimitBudget caps how many 429 responses one task tolerates
func WithRateLimitBudget(n int) FetcherOption { return func(f *Fetcher) { f.rateLimitBudget = n } }

// NewFetcher creates a fetcher with defaults for every unset option
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.limiter == nil {
		f.limiter = ratelimit.Unlimited{}
	}
	if f.backoff == nil {
		f.backoff = retry.DefaultExponentialBackoff()
	}
	if f.clock == nil {
		f.clock = retry.RealClock{}
	}
	if f.logger == nil {
		f.logger = logger.GetLogger()
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.chunkSize <= 0 {
		f.chunkSize = DefaultChunkSize
	}
	if f.rateLimitBudget <= 0 {
		f.rateLimitBudget = DefaultRateLimitBudget
	}
	return f
}

// NewFetcherFromConfig builds a fetcher from the fetch and rate_limit config sections
func NewFetcherFromConfig(fc config.FetchConfig, rc config.RateLimitConfig, log logger.Logger, opts ...FetcherOption) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = fc.ResponseHeaderTimeout
	transport.MaxIdleConnsPerHost = fc.Concurrency

	base := []FetcherOption{
		WithHTTPClient(&http.Client{Transport: transport}),
		WithLimiter(ratelimit.New(rc.Strategy, rc.RequestsPerMinute, rc.Burst)),
		WithBackoff(&retry.ExponentialBackoff{
			BaseDelay:  fc.BackoffBase,
			MaxDelay:   fc.BackoffMax,
			Multiplier: 2.0,
		}),
		WithLogger(log),
		WithUserAgent(fc.UserAgent),
		WithChunkSize(fc.ChunkSize),
		WithRateLimitBudget(fc.RateLimitBudget),
	}
	return NewFetcher(append(base, opts...)...)
}

// attemptResult is what a single HTTP request produced
type attemptResult struct {
	written       int64
	retryAfter    time.Duration
	hasRetryAfter bool
	err           error
}

// Fetch downloads task.SourceURL into task.DestinationPath.
//
// Transport failures consume one unit of attemptBudget and are retried after
// 2^n seconds, n being the zero-based index of the failed request; no wait
// follows the final attempt. A 429 waits for Retry-After (or 2^n without the
// header) and does not consume the budget; at most rateLimitBudget 429s are
// tolerated per task. Any other non-200 status fails permanently.
func (f *Fetcher) Fetch(ctx context.Context, task models.FetchTask, attemptBudget int, reporter events.Reporter) models.FetchOutcome {
	if reporter == nil {
		reporter = events.Nop
	}
	if attemptBudget < 1 {
		attemptBudget = DefaultAttemptBudget
	}

	out := models.FetchOutcome{Task: task}
	progress := &progressTracker{task: task, reporter: reporter}
	transientFailures := 0
	rateLimited := 0

	for request := 0; ; request++ {
		if err := f.limiter.Wait(ctx); err != nil {
			out.LastError = errs.Cancelled(err)
			return f.finish(out, models.StatusCancelled, reporter)
		}

		out.Attempts = request + 1
		res := f.attempt(ctx, task, progress)
		if res.err == nil {
			out.BytesWritten = res.written
			out.LastError = nil
			return f.finish(out, models.StatusSucceeded, reporter)
		}
		out.LastError = res.err

		var delay time.Duration
		switch errs.TypeOf(res.err) {
		case errs.ErrorTypeCancelled:
			return f.finish(out, models.StatusCancelled, reporter)

		case errs.ErrorTypeRateLimit:
			rateLimited++
			if rateLimited > f.rateLimitBudget {
				out.LastError = fmt.Errorf("gave up after %d rate-limited responses: %w", rateLimited, res.err)
				return f.finish(out, models.StatusFailedAfterRetries, reporter)
			}
			delay = f.backoff.NextDelay(request + 1)
			if res.hasRetryAfter {
				delay = res.retryAfter
			}
			logger.LogRateLimit(f.logger, task.SourceURL, delay, res.hasRetryAfter)
			reporter.Emit(events.Log(events.LevelWarn, fmt.Sprintf("rate limited, waiting %s: %s", delay, task.SourceURL)))

		case errs.ErrorTypeNetwork:
			transientFailures++
			if transientFailures >= attemptBudget {
				return f.finish(out, models.StatusFailedAfterRetries, reporter)
			}
			delay = f.backoff.NextDelay(request + 1)
			f.logger.WarnWithFields("transient fetch failure, retrying", map[string]interface{}{
				"url":      task.SourceURL,
				"attempt":  transientFailures,
				"budget":   attemptBudget,
				"delay_ms": delay.Milliseconds(),
				"error":    res.err.Error(),
			})

		default:
			return f.finish(out, models.StatusFailedPermanent, reporter)
		}

		if err := f.clock.Sleep(ctx, delay); err != nil {
			out.LastError = errs.Cancelled(err)
			return f.finish(out, models.StatusCancelled, reporter)
		}
	}
}

func (f *Fetcher) finish(out models.FetchOutcome, status models.Status, reporter events.Reporter) models.FetchOutcome {
	out.Status = status
	if status != models.StatusSucceeded {
		out.BytesWritten = 0
	}

	logger.LogFetch(f.logger, out.Task.SourceURL, out.Task.DestinationPath, string(status), out.Attempts, out.BytesWritten, out.LastError)
	reporter.Emit(events.TaskCompleted(out))
	if status.Failed() {
		reporter.Emit(events.FailureLog(out.Task.SourceURL, out.LastError))
	}
	return out
}

// attempt issues one GET and streams a 200 body into the destination
func (f *Fetcher) attempt(ctx context.Context, task models.FetchTask, progress *progressTracker) attemptResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.SourceURL, nil)
	if err != nil {
		return attemptResult{err: &errs.Error{Type: errs.ErrorTypePermanentHTTP, Message: "invalid request", Err: err}}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if task.RefererURL != "" {
		req.Header.Set("Referer", task.RefererURL)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return attemptResult{err: classifyTransportError(ctx, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		d, ok := retry.ParseRetryAfter(resp.Header.Get("Retry-After"), f.clock.Now())
		return attemptResult{
			retryAfter:    d,
			hasRetryAfter: ok,
			err:           errs.RateLimited(resp.StatusCode, d),
		}
	case resp.StatusCode != http.StatusOK:
		return attemptResult{err: errs.PermanentHTTP(resp.StatusCode, resp.Status)}
	}

	pf, err := storage.Create(task.DestinationPath)
	if err != nil {
		return attemptResult{err: errs.Storage("create destination", err)}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	buf := make([]byte, f.chunkSize)
	for {
		n, rerr := fillChunk(resp.Body, buf)
		if n > 0 {
			if _, werr := pf.Write(buf[:n]); werr != nil {
				pf.Abort()
				return attemptResult{err: errs.Storage("write destination", werr)}
			}
			progress.report(pf.Written(), total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			pf.Abort()
			return attemptResult{err: classifyTransportError(ctx, rerr)}
		}
	}

	if total > 0 && pf.Written() != total {
		pf.Abort()
		return attemptResult{err: errs.Network(fmt.Errorf("truncated body: got %d of %d bytes", pf.Written(), total))}
	}

	if err := pf.Commit(); err != nil {
		return attemptResult{err: errs.Storage("commit destination", err)}
	}
	return attemptResult{written: pf.Written()}
}

// fillChunk reads until buf is full or the body ends. Only a clean io.EOF
// from the body ends the transfer; io.ErrUnexpectedEOF from a cut-off chunked
// or length-delimited response is passed through as a transport error.
func fillChunk(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// classifyTransportError treats every transport failure as transient unless
// the job itself was cancelled
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Cancelled(ctxErr)
	}
	return errs.Network(err)
}

// progressTracker keeps BytesTransferred monotonic across attempts: a retry
// restarts the body from zero, so nothing is reported until it passes the
// furthest point already announced.
type progressTracker struct {
	task     models.FetchTask
	reporter events.Reporter
	reported int64
}

func (p *progressTracker) report(written, total int64) {
	if written <= p.reported {
		return
	}
	p.reported = written
	p.reporter.Emit(events.Bytes(p.task, written, total))
}
