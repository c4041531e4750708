package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/retry"
)

// Client fetches discovery documents (thread JSON, listings) with retries.
// Media downloads go through the fetch engine, not this client.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retry      retry.Config
	logger     logger.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTransport replaces the HTTP transport
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithRetry replaces the retry attempts, backoff and clock
func WithRetry(attempts int, backoff retry.BackoffStrategy, clock retry.Clock) ClientOption {
	return func(c *Client) {
		c.retry.MaxAttempts = attempts
		c.retry.Backoff = backoff
		c.retry.Clock = clock
	}
}

// NewClient creates a discovery client
func NewClient(timeout time.Duration, userAgent string, log logger.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "en-US,en;q=0.9",
		},
		retry: retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Clock:       retry.RealClock{},
			Logger:      log,
		},
		logger: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// GetJSON fetches url and decodes the body into target, retrying transient
// failures and 5xx responses
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	cfg := c.retry
	cfg.Context = ctx
	cfg.Logger = c.logger.WithField("url", url)

	body, err := retry.DoWithResult(func() ([]byte, error) {
		return c.get(ctx, url)
	}, &cfg)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Parsing(fmt.Errorf("decode %s: %w", url, err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Configuration("invalid URL %q: %v", url, err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Cancelled(ctx.Err())
		}
		return nil, errs.Network(err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := checkResponseStatus(resp, time.Now()); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Network(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// checkResponseStatus maps an HTTP status to a typed error
func checkResponseStatus(resp *http.Response, now time.Time) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		d, _ := retry.ParseRetryAfter(resp.Header.Get("Retry-After"), now)
		return errs.RateLimited(resp.StatusCode, d)
	case resp.StatusCode >= 500:
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		return errs.PermanentHTTP(resp.StatusCode, resp.Status)
	}
}
