package fetch

import (
	"context"
	"time"
)

// Page is one browser tab (or one static response) a fetch works on.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches or timeout elapses, in which
	// case it returns ErrWaitTimeout.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	Pause(ctx context.Context, d time.Duration) error
	ChallengePresent(ctx context.Context) (bool, error)
	LocateControl(ctx context.Context) (bool, error)
	ActivateControl(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Browser hands out pages that share one persistent session.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

const (
	challengeFrameSelector = "iframe[id*='cf-chl-widget-']"
	challengeTitle         = "Just a moment"
)
