package categorization

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"transient", NewTransientError(base, time.Second), ErrorKindTransient},
		{"invalid response", NewInvalidResponseError(base, "{"), ErrorKindInvalidResponse},
		{"permanent", NewPermanentError(base), ErrorKindPermanent},
		{"wrapped permanent", fmt.Errorf("call: %w", NewPermanentError(base)), ErrorKindPermanent},
		{"unknown defaults to transient", base, ErrorKindTransient},
		{"deadline", context.DeadlineExceeded, ErrorKindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestErrors_UnwrapAndRetryAfter(t *testing.T) {
	base := errors.New("rate limited")
	err := NewTransientError(base, 3*time.Second)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, 3*time.Second, RetryAfter(err))
	assert.Equal(t, time.Duration(0), RetryAfter(base))
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, NewPermanentError(base).Error(), "permanent")
	assert.Contains(t, NewInvalidResponseError(base, "").Error(), "invalid")
}
