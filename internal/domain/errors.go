package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrAccessDenied means a source answered with a login or authorization wall.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means a posting no longer exists at its source.
	ErrNotFound = errors.New("posting not found")

	ErrMalformedResponse = errors.New("malformed response")

	ErrStorageCorruption = errors.New("storage corruption")

	// ErrCapabilityUnavailable means the scoring capability is missing its
	// credentials or configuration.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	ErrInvalidRequest = errors.New("invalid request")
)

// TransientError marks a failure worth retrying (network hiccup, 5xx, a page
// that did not render its expected container).
type TransientError struct {
	Op  string
	Err error
}

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transient: %v", e.Err)
	}
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
