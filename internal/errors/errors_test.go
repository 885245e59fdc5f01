package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	wrappedLimit := fmt.Errorf("search page 3: %w", NewRateLimitedError("quota exhausted", nil))

	tests := []struct {
		name        string
		err         error
		notFound    bool
		rateLimited bool
		cancelled   bool
		code        ErrCode
	}{
		{"not found", NewNotFoundError("user octocat"), true, false, false, ErrCodeNotFound},
		{"wrapped rate limit", wrappedLimit, false, true, false, ErrCodeRateLimited},
		{"cancelled", NewCancelledError("stopped"), false, false, true, ErrCodeCancelled},
		{"context canceled", fmt.Errorf("list repos: %w", context.Canceled), false, false, true, ErrCodeInternal},
		{"plain", fmt.Errorf("boom"), false, false, false, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.rateLimited, IsRateLimited(tt.err))
			assert.Equal(t, tt.cancelled, IsCancelled(tt.err))
			assert.Equal(t, tt.code, CodeOf(tt.err))
		})
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := NewInternalError("save candidates", fmt.Errorf("disk full"))
	assert.Equal(t, "INTERNAL_ERROR: save candidates (disk full)", err.Error())
	assert.Equal(t, "NOT_FOUND: run abc not found", NewNotFoundError("run abc").Error())
}
