// Package ratelimit paces outgoing requests.
//
// The fetcher waits on a Limiter before every HTTP request. NewPerMinute builds
// a token bucket from the rate_limit config section; a zero rate returns
// Unlimited. SlidingWindow is available for hosts that publish a hard
// requests-per-window quota.
//
//	limiter := ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
