package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchTimeout means the expected content never appeared and no
	// challenge was seen.
	ErrFetchTimeout = errors.New("expected content did not appear")
	// ErrChallengeUnresolved means a bot challenge was detected and the
	// content was still missing after the bypass attempt.
	ErrChallengeUnresolved = errors.New("bot challenge could not be bypassed")
	// ErrNavigation wraps failures to open a page or load the URL.
	ErrNavigation = errors.New("navigation failed")

	// ErrWaitTimeout is returned by Page.WaitReady when the selector did not
	// match in time.
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrNoControl is returned by drivers that cannot activate a challenge.
	ErrNoControl = errors.New("challenge control not available")
)

// Error is returned for every failed fetch. All fetch errors are retryable.
type Error struct {
	URL   string
	State ChallengeState
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err came from the fetch layer.
func IsRetryable(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}
