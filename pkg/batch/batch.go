// Package batch runs independent scrape targets with retry, pacing and
// per-target failure isolation.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/retry"
	"golang.org/x/time/rate"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// ErrTargetExhausted matches TargetErrors whose retries all failed.
var ErrTargetExhausted = errors.New("retries exhausted")

// TargetError records why a target was skipped.
type TargetError struct {
	Target    string
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *TargetError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("target %s failed after %d attempts: %v", e.Target, e.Attempts, e.Err)
	}
	return fmt.Sprintf("target %s failed: %v", e.Target, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

func (e *TargetError) Is(target error) bool {
	return target == ErrTargetExhausted && e.Exhausted
}

// Config holds everything Run needs besides the work itself.
type Config struct {
	Policy retry.Policy
	// Delay is the pause between two targets, applied whatever the outcome.
	Delay time.Duration
	// Jitter adds a random extra pause in [0, Jitter).
	Jitter time.Duration
	// Concurrency above 1 runs targets on a worker pool sharing one rate
	// limiter of one target per Delay. Defaults to 1.
	Concurrency int
	Log         Logger // optional; nil = no logging
	// Sleep is used for pacing. Defaults to utils.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Job is the list of targets and the work to run for each of them.
type Job[T fmt.Stringer, R any] struct {
	Targets []T
	Work    func(ctx context.Context, target T) (R, error)
	// OnDone is called once per target as soon as it finishes. Calls are
	// serialized.
	OnDone func(Outcome[T, R])
}

// Outcome is the result of one target.
type Outcome[T fmt.Stringer, R any] struct {
	Index    int
	Target   T
	Result   R
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (o Outcome[T, R]) OK() bool { return o.Err == nil }

// Report lists outcomes in target order.
type Report[T fmt.Stringer, R any] struct {
	Outcomes []Outcome[T, R]
	Elapsed  time.Duration
}

func (r *Report[T, R]) Succeeded() []Outcome[T, R] {
	var out []Outcome[T, R]
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report[T, R]) Failed() []Outcome[T, R] {
	var out []Outcome[T, R]
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Errors returns the failures, in target order.
func (r *Report[T, R]) Errors() []error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errs
}

// Run processes every target. A failing target is logged and recorded; it
// never stops the batch.
func Run[T fmt.Stringer, R any](ctx context.Context, cfg Config, job Job[T, R]) *Report[T, R] {
	if cfg.Log == nil {
		cfg.Log = nopLogger{}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = utils.Sleep
	}
	cfg.Policy = cfg.Policy.WithDefaults()

	start := time.Now()
	var report *Report[T, R]
	if cfg.Concurrency > 1 && len(job.Targets) > 1 {
		report = runConcurrently(ctx, cfg, job)
	} else {
		report = runSequentially(ctx, cfg, job)
	}
	report.Elapsed = time.Since(start)
	return report
}

func runSequentially[T fmt.Stringer, R any](ctx context.Context, cfg Config, job Job[T, R]) *Report[T, R] {
	report := &Report[T, R]{Outcomes: make([]Outcome[T, R], 0, len(job.Targets))}
	for i, t := range job.Targets {
		o := runOne(ctx, cfg, i, t, job.Work)
		report.Outcomes = append(report.Outcomes, o)
		if job.OnDone != nil {
			job.OnDone(o)
		}
		if i < len(job.Targets)-1 {
			pace(ctx, cfg)
		}
	}
	return report
}

func runConcurrently[T fmt.Stringer, R any](ctx context.Context, cfg Config, job Job[T, R]) *Report[T, R] {
	outcomes := make([]Outcome[T, R], len(job.Targets))

	var limiter *rate.Limiter
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	indexChan := make(chan int, len(job.Targets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexChan {
				if limiter != nil {
					// A cancelled context fails the target in runOne.
					_ = limiter.Wait(ctx)
				}
				if cfg.Jitter > 0 {
					_ = cfg.Sleep(ctx, jitter(cfg.Jitter))
				}
				o := runOne(ctx, cfg, i, job.Targets[i], job.Work)
				mu.Lock()
				outcomes[i] = o
				if job.OnDone != nil {
					job.OnDone(o)
				}
				mu.Unlock()
			}
		}()
	}
	for i := range job.Targets {
		indexChan <- i
	}
	close(indexChan)
	wg.Wait()

	return &Report[T, R]{Outcomes: outcomes}
}

// runOne runs a single target under the retry policy.
func runOne[T fmt.Stringer, R any](ctx context.Context, cfg Config, index int, t T, work func(context.Context, T) (R, error)) Outcome[T, R] {
	log := cfg.Log
	name := t.String()
	policy := cfg.Policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warnf("Attempt %d for %s failed, retrying in %s: %v", attempt, name, wait, err)
	}

	o := Outcome[T, R]{Index: index, Target: t}
	if err := ctx.Err(); err != nil {
		o.Err = &TargetError{Target: name, Err: err}
		return o
	}

	start := time.Now()
	log.Debugf("Scraping %s", name)
	res, attempts, err := retry.Do(ctx, policy, func(ctx context.Context) (R, error) {
		return work(ctx, t)
	})
	o.Attempts = attempts
	o.Elapsed = time.Since(start)
	if err != nil {
		exhausted := policy.Retryable(err) && attempts >= policy.Attempts
		o.Err = &TargetError{Target: name, Attempts: attempts, Exhausted: exhausted, Err: err}
		log.Errorf("Skipping %s: %v", name, o.Err)
		return o
	}
	o.Result = res
	return o
}

func pace(ctx context.Context, cfg Config) {
	d := cfg.Delay
	if cfg.Jitter > 0 {
		d += jitter(cfg.Jitter)
	}
	if d > 0 {
		_ = cfg.Sleep(ctx, d)
	}
}

func jitter(limit time.Duration) time.Duration {
	return time.Duration(rand.Int64N(int64(limit)))
}
