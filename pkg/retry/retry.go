// Package retry runs a unit of work with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/fetch"
	"github.com/hashicorp/go-retryablehttp"
)

// Policy bounds the attempts for one unit of work.
type Policy struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// Retryable decides whether a failure is worth another attempt.
	// Defaults to fetch.IsRetryable.
	Retryable func(error) bool
	// Sleep waits between attempts. Defaults to a context aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy is 3 attempts, backing off 2s then 4s, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		MinBackoff: 2 * time.Second,
		MaxBackoff: 10 * time.Second,
	}
}

// WithDefaults fills unset fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = d.MinBackoff
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = max(d.MaxBackoff, p.MinBackoff)
	}
	if p.Retryable == nil {
		p.Retryable = fetch.IsRetryable
	}
	if p.Sleep == nil {
		p.Sleep = utils.Sleep
	}
	return p
}

// Backoff returns the wait after the given failed attempt (0 based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.WithDefaults()
	return retryablehttp.DefaultBackoff(p.MinBackoff, p.MaxBackoff, attempt, nil)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or runs
// out of attempts. It returns the number of attempts made and, on failure,
// the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.WithDefaults()
	var (
		zero T
		err  error
	)
	for attempt := 0; attempt < p.Attempts; attempt++ {
		var res T
		res, err = fn(ctx)
		if err == nil {
			return res, attempt + 1, nil
		}
		if !p.Retryable(err) || attempt == p.Attempts-1 {
			return zero, attempt + 1, err
		}
		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, wait)
		}
		if serr := p.Sleep(ctx, wait); serr != nil {
			return zero, attempt + 1, err
		}
	}
	return zero, p.Attempts, err
}
