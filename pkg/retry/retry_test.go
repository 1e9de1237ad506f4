package retry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fbscope/fbscope/pkg/fetch"
)

type recorder struct {
	slept []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func (r *recorder) total() time.Duration {
	var sum time.Duration
	for _, d := range r.slept {
		sum += d
	}
	return sum
}

var errFetch = &fetch.Error{URL: "u", Err: fetch.ErrFetchTimeout}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	rec := &recorder{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	calls := 0
	res, attempts, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFetch
		}
		return "ok", nil
	})
	if err != nil || res != "ok" || attempts != 3 {
		t.Fatalf("unexpected result %q attempts=%d err=%v", res, attempts, err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(rec.slept, want) {
		t.Fatalf("unexpected backoff\nwant: %v\ngot:  %v", want, rec.slept)
	}
	if rec.total() < 6*time.Second {
		t.Fatalf("expected at least 6s of backoff, got %v", rec.total())
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	rec := &recorder{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	last := &fetch.Error{URL: "u", Err: fetch.ErrChallengeUnresolved}
	calls := 0
	_, attempts, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errFetch
	})
	if err != last {
		t.Fatalf("expected the last error, got %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d calls=%d", attempts, calls)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("expected no sleep after the last attempt, got %v", rec.slept)
	}
}

func TestDoDoesNotRetryParseErrors(t *testing.T) {
	rec := &recorder{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	parseErr := errors.New("table missing")
	calls := 0
	_, attempts, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, parseErr
	})
	if !errors.Is(err, parseErr) || attempts != 1 || calls != 1 || len(rec.slept) != 0 {
		t.Fatalf("expected a single attempt, got attempts=%d calls=%d err=%v", attempts, calls, err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	p := DefaultPolicy()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Fatalf("Backoff(%d)\nwant: %v\ngot:  %v", i, w, got)
		}
	}
}

func TestDoStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := DefaultPolicy()
	calls := 0
	_, attempts, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errFetch
	})
	if err != errFetch || attempts != 1 || calls != 1 {
		t.Fatalf("expected to stop after the first attempt, got attempts=%d err=%v", attempts, err)
	}
}
