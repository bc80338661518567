package categorization

import (
	"context"
	"errors"
	"time"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
)

// Match is one scored objective suggestion for a content item
type Match struct {
	ObjectiveID uuid.UUID
	Confidence  float64
	Reasoning   string
}

// Categorizer maps a content item onto candidate objectives.
// Implementations must be side-effect free so callers can retry freely.
// Failures are reported as *TransientError, *InvalidResponseError or
// *PermanentError; any other error is treated as transient.
type Categorizer interface {
	Categorize(ctx context.Context, item *content.Item, candidates []*standards.Objective) ([]Match, error)
}

// TransientError is a retryable failure such as a timeout or rate limit
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return "transient categorization error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// InvalidResponseError means the categorizer answered with malformed output.
// It is retried with a reduced candidate set.
type InvalidResponseError struct {
	Err error
	Raw string
}

func (e *InvalidResponseError) Error() string { return "invalid categorization response: " + e.Err.Error() }
func (e *InvalidResponseError) Unwrap() error { return e.Err }

// PermanentError is never retried, e.g. content rejected by policy
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent categorization error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient
func NewTransientError(err error, retryAfter time.Duration) error {
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// NewInvalidResponseError wraps err as an invalid response
func NewInvalidResponseError(err error, raw string) error {
	return &InvalidResponseError{Err: err, Raw: raw}
}

// NewPermanentError wraps err as permanent
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// ClassifyError maps a categorizer error onto an ErrorKind
func ClassifyError(err error) ErrorKind {
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return ErrorKindPermanent
	}
	var invalid *InvalidResponseError
	if errors.As(err, &invalid) {
		return ErrorKindInvalidResponse
	}
	return ErrorKindTransient
}

// RetryAfter returns the server-requested delay carried by a transient error
func RetryAfter(err error) time.Duration {
	var transient *TransientError
	if errors.As(err, &transient) {
		return transient.RetryAfter
	}
	return 0
}
