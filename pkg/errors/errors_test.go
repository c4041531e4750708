package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"network", Network(stderrors.New("reset")), ErrorTypeNetwork},
		{"wrapped rate limit", fmt.Errorf("fetch: %w", RateLimited(429, time.Second)), ErrorTypeRateLimit},
		{"permanent", PermanentHTTP(404, "404 Not Found"), ErrorTypePermanentHTTP},
		{"storage", Storage("create temp file", stderrors.New("disk full")), ErrorTypeStorage},
		{"configuration", Configuration("concurrency limit %d < 1", 0), ErrorTypeConfiguration},
		{"context", fmt.Errorf("wait: %w", context.Canceled), ErrorTypeCancelled},
		{"plain", stderrors.New("boom"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := PermanentHTTP(403, "403 Forbidden")
	assert.Equal(t, "permanent_http error (code 403): 403 Forbidden", err.Error())

	cause := stderrors.New("connection reset by peer")
	netErr := Network(cause)
	assert.Equal(t, "network error: connection reset by peer", netErr.Error())
	assert.True(t, stderrors.Is(netErr, cause))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypePermanentHTTP))
	assert.False(t, IsRetryable(ErrorTypeStorage))
	assert.False(t, IsRetryable(ErrorTypeConfiguration))

	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(500))
	assert.False(t, IsRetryableStatusCode(404))
}
