// Package fetch obtains rendered HTML for a URL through a persistent browser
// session, waiting for the expected content and getting past the site's bot
// challenge when it shows up.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RawDocument is the HTML of one fetched page.
type RawDocument struct {
	URL       string
	HTML      string
	FetchedAt time.Time
}

// DocumentFetcher is what scrapers need from a fetcher.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url, readySelector string) (*RawDocument, error)
}

// Options tunes the wait protocol.
type Options struct {
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	ProbeDelay        time.Duration
	ControlWait       time.Duration
	BypassTimeout     time.Duration
	// Limiter paces fetches; nil means no pacing.
	Limiter *rate.Limiter
	Log     logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 60 * time.Second,
		ReadyTimeout:      10 * time.Second,
		ProbeDelay:        time.Second,
		ControlWait:       20 * time.Second,
		BypassTimeout:     15 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = d.ReadyTimeout
	}
	if o.ProbeDelay < 0 {
		o.ProbeDelay = d.ProbeDelay
	}
	if o.ControlWait < 0 {
		o.ControlWait = d.ControlWait
	}
	if o.BypassTimeout <= 0 {
		o.BypassTimeout = d.BypassTimeout
	}
	o.Log = utils.LoggerOrNop(o.Log)
	return o
}

// Fetcher runs the fetch protocol against pages from one Browser.
type Fetcher struct {
	browser Browser
	opts    Options
	now     func() time.Time
}

func New(b Browser, opts Options) *Fetcher {
	return &Fetcher{browser: b, opts: opts.withDefaults(), now: time.Now}
}

// Fetch navigates to url and returns the document once readySelector
// matches. It never returns a document whose expected content is missing.
func (f *Fetcher) Fetch(ctx context.Context, url, readySelector string) (*RawDocument, error) {
	doc, state, err := f.fetch(ctx, url, readySelector)
	if state != StateUnchecked {
		metrics.ChallengeTotal.WithLabelValues(state.String()).Inc()
	}
	metrics.FetchTotal.WithLabelValues(outcome(err)).Inc()
	return doc, err
}

func (f *Fetcher) fetch(ctx context.Context, url, readySelector string) (*RawDocument, ChallengeState, error) {
	log := f.opts.Log.WithField("url", url)
	fail := func(state ChallengeState, err error) (*RawDocument, ChallengeState, error) {
		return nil, state, &Error{URL: url, State: state, Err: err}
	}

	if f.opts.Limiter != nil {
		if err := f.opts.Limiter.Wait(ctx); err != nil {
			return fail(StateUnchecked, err)
		}
	}

	page, err := f.browser.NewPage(ctx)
	if err != nil {
		return fail(StateUnchecked, fmt.Errorf("%w: open page: %v", ErrNavigation, err))
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.opts.NavigationTimeout)
	err = page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return fail(StateUnchecked, fmt.Errorf("%w: %v", ErrNavigation, err))
	}

	err = page.WaitReady(ctx, readySelector, f.opts.ReadyTimeout)
	if err == nil {
		doc, err := f.document(ctx, page, url)
		if err != nil {
			return fail(StateUnchecked, err)
		}
		return doc, StateUnchecked, nil
	}
	if !errors.Is(err, ErrWaitTimeout) {
		return fail(StateUnchecked, fmt.Errorf("%w: %v", ErrNavigation, err))
	}

	log.Debug("Content not ready, probing for a challenge")
	state := newResolver(page, f.opts, log).run(ctx)
	switch state {
	case StateNoChallenge:
		log.Debug("No challenge found, page is slow")
	case StateBypassed:
		log.Info("Challenge control activated")
	default:
		log.Warn("Challenge could not be resolved")
	}

	if err := page.WaitReady(ctx, readySelector, f.opts.BypassTimeout); err != nil {
		if state == StateNoChallenge {
			return fail(state, ErrFetchTimeout)
		}
		return fail(state, ErrChallengeUnresolved)
	}

	doc, err := f.document(ctx, page, url)
	if err != nil {
		return fail(state, err)
	}
	return doc, state, nil
}

func (f *Fetcher) document(ctx context.Context, page Page, url string) (*RawDocument, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %v", ErrNavigation, err)
	}
	return &RawDocument{URL: url, HTML: html, FetchedAt: f.now()}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, ErrChallengeUnresolved):
		return "challenge"
	default:
		return "navigation"
	}
}
