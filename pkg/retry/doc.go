// Package retry provides backoff strategies, a retry loop and the clock
// abstraction used by the fetcher.
//
// Basic usage:
//
//	doc, err := retry.DoWithResult(func() (*Thread, error) {
//		return client.fetchThread(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		Context:     ctx,
//		Logger:      logger.GetLogger(),
//	})
//
// Delays go through a Clock. RealClock sleeps; tests supply a clock that
// records requested delays and returns immediately.
//
// ParseRetryAfter understands both forms of the Retry-After header:
// delta seconds ("120") and an HTTP date.
package retry
