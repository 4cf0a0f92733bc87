package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"typed auth error", New(ErrorTypeAuth, 401, "session expired"), ErrorTypeAuth},
		{"wrapped typed error", fmt.Errorf("fetch: %w", New(ErrorTypeRateLimit, 429, "slow down")), ErrorTypeRateLimit},
		{"context canceled", context.Canceled, ErrorTypeCancelled},
		{"wrapped context canceled", fmt.Errorf("page: %w", context.Canceled), ErrorTypeCancelled},
		{"plain error", fmt.Errorf("boom"), ErrorTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(New(ErrorTypeCancelled, 0, "run aborted")))
	assert.False(t, IsCancelled(New(ErrorTypeNetwork, 0, "conn reset")))
	assert.False(t, IsCancelled(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeCancelled))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(500))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(403))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(200))
}

func TestFromStatusCode(t *testing.T) {
	assert.Equal(t, ErrorTypeRateLimit, FromStatusCode(429, "").Type)
	assert.Equal(t, ErrorTypeAuth, FromStatusCode(401, "").Type)
	assert.Equal(t, ErrorTypeAuth, FromStatusCode(403, "").Type)
	assert.Equal(t, ErrorTypeNotFound, FromStatusCode(404, "").Type)
	assert.Equal(t, ErrorTypeServerError, FromStatusCode(502, "").Type)
	assert.Equal(t, ErrorTypeUnknown, FromStatusCode(418, "").Type)
}
