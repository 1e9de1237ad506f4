package fetch

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakePage scripts the answers a browser tab would give.
type fakePage struct {
	navErr      error
	waits       []error // consumed in order by WaitReady
	challenge   bool
	checkErr    error
	locate      []bool // consumed in order by LocateControl
	activateErr error
	html        string

	calls  []string
	pauses []time.Duration
	closed bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.calls = append(p.calls, "navigate")
	return p.navErr
}

func (p *fakePage) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	p.calls = append(p.calls, "wait:"+timeout.String())
	if len(p.waits) == 0 {
		return ErrWaitTimeout
	}
	err := p.waits[0]
	p.waits = p.waits[1:]
	return err
}

func (p *fakePage) Pause(ctx context.Context, d time.Duration) error {
	p.calls = append(p.calls, "pause:"+d.String())
	p.pauses = append(p.pauses, d)
	return nil
}

func (p *fakePage) ChallengePresent(ctx context.Context) (bool, error) {
	p.calls = append(p.calls, "check")
	return p.challenge, p.checkErr
}

func (p *fakePage) LocateControl(ctx context.Context) (bool, error) {
	p.calls = append(p.calls, "locate")
	if len(p.locate) == 0 {
		return false, nil
	}
	found := p.locate[0]
	p.locate = p.locate[1:]
	return found, nil
}

func (p *fakePage) ActivateControl(ctx context.Context) error {
	p.calls = append(p.calls, "activate")
	return p.activateErr
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page *fakePage
	err  error
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error { return nil }

func newTestFetcher(p *fakePage) *Fetcher {
	f := New(&fakeBrowser{page: p}, DefaultOptions())
	f.now = func() time.Time { return time.Date(2024, 8, 16, 20, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchContentReadyImmediately(t *testing.T) {
	p := &fakePage{waits: []error{nil}, html: "<table></table>"}
	doc, err := newTestFetcher(p).Fetch(context.Background(), "https://fbref.com/x", "table")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.HTML != "<table></table>" || doc.URL != "https://fbref.com/x" || doc.FetchedAt.IsZero() {
		t.Fatalf("unexpected document: %#v", doc)
	}
	want := []string{"navigate", "wait:10s"}
	if !reflect.DeepEqual(p.calls, want) {
		t.Fatalf("unexpected calls\nwant: %#v\ngot:  %#v", want, p.calls)
	}
	if !p.closed {
		t.Fatalf("page was not closed")
	}
}

func TestFetchSlowPageWithoutChallenge(t *testing.T) {
	p := &fakePage{waits: []error{ErrWaitTimeout, nil}, html: "<table></table>"}
	if _, err := newTestFetcher(p).Fetch(context.Background(), "u", "table"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"navigate", "wait:10s", "pause:1s", "check", "wait:15s"}
	if !reflect.DeepEqual(p.calls, want) {
		t.Fatalf("unexpected calls\nwant: %#v\ngot:  %#v", want, p.calls)
	}
}

func TestFetchTimeoutWithoutChallenge(t *testing.T) {
	p := &fakePage{}
	_, err := newTestFetcher(p).Fetch(context.Background(), "u", "table")
	if !errors.Is(err, ErrFetchTimeout) {
		t.Fatalf("expected ErrFetchTimeout, got %v", err)
	}
	var fe *Error
	if !errors.As(err, &fe) || fe.State != StateNoChallenge {
		t.Fatalf("expected state no_challenge, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatalf("fetch timeout must be retryable")
	}
}

func TestFetchChallengeBypassed(t *testing.T) {
	p := &fakePage{
		waits:     []error{ErrWaitTimeout, nil},
		challenge: true,
		locate:    []bool{true},
		html:      "<table></table>",
	}
	if _, err := newTestFetcher(p).Fetch(context.Background(), "u", "table"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"navigate", "wait:10s", "pause:1s", "check", "locate", "activate", "wait:15s"}
	if !reflect.DeepEqual(p.calls, want) {
		t.Fatalf("unexpected calls\nwant: %#v\ngot:  %#v", want, p.calls)
	}
}

func TestFetchChallengeControlRendersLate(t *testing.T) {
	p := &fakePage{
		waits:     []error{ErrWaitTimeout, nil},
		challenge: true,
		locate:    []bool{false, true},
		html:      "<table></table>",
	}
	if _, err := newTestFetcher(p).Fetch(context.Background(), "u", "table"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantPauses := []time.Duration{time.Second, 20 * time.Second}
	if !reflect.DeepEqual(p.pauses, wantPauses) {
		t.Fatalf("unexpected pauses\nwant: %v\ngot:  %v", wantPauses, p.pauses)
	}
}

func TestFetchChallengeUnresolved(t *testing.T) {
	tests := []struct {
		name string
		page *fakePage
	}{
		{
			name: "control never rendered",
			page: &fakePage{challenge: true, locate: []bool{false, false}},
		},
		{
			name: "activation failed",
			page: &fakePage{challenge: true, locate: []bool{true}, activateErr: errors.New("click failed")},
		},
		{
			name: "bypassed but content missing",
			page: &fakePage{challenge: true, locate: []bool{true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestFetcher(tt.page).Fetch(context.Background(), "u", "table")
			if !errors.Is(err, ErrChallengeUnresolved) {
				t.Fatalf("expected ErrChallengeUnresolved, got %v", err)
			}
			if !IsRetryable(err) {
				t.Fatalf("challenge failure must be retryable")
			}
		})
	}
}

func TestFetchNavigationFailure(t *testing.T) {
	p := &fakePage{navErr: errors.New("net::ERR_CONNECTION_RESET")}
	_, err := newTestFetcher(p).Fetch(context.Background(), "u", "table")
	if !errors.Is(err, ErrNavigation) || !IsRetryable(err) {
		t.Fatalf("expected retryable navigation error, got %v", err)
	}

	f := New(&fakeBrowser{err: errors.New("browser gone")}, DefaultOptions())
	if _, err := f.Fetch(context.Background(), "u", "table"); !errors.Is(err, ErrNavigation) {
		t.Fatalf("expected navigation error, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(errors.New("parse failed")) {
		t.Fatalf("plain errors are not retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}
