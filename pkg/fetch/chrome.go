package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/sirupsen/logrus"
)

// ChromeOptions configures the chromedp driver.
type ChromeOptions struct {
	// ProfileDir keeps cookies and challenge tokens between runs.
	ProfileDir string
	Headless   bool
	ExecPath   string
	UserAgent  string
	Proxy      string
	Log        logrus.FieldLogger
}

// Chrome is a Browser backed by one Chrome process with a persistent
// profile. Every fetch opens its own tab.
type Chrome struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	log           logrus.FieldLogger
}

// NewChrome starts Chrome. The returned browser lives until Close, not until
// ctx is done.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	log := utils.LoggerOrNop(opts.Log)
	if opts.ProfileDir == "" {
		return nil, errors.New("chrome: profile dir is required")
	}
	if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("chrome: create profile dir: %w", err)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Debugf),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chrome: start: %w", err)
	}
	log.WithField("profile", opts.ProfileDir).Debug("Chrome started")

	return &Chrome{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		log:           log,
	}, nil
}

func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, err
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

func (c *Chrome) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

type controlBox struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

const detectChallengeJS = `(() => {
  if (document.querySelector("` + challengeFrameSelector + `")) return true;
  return document.title.indexOf("` + challengeTitle + `") !== -1;
})()`

const locateControlJS = `(() => {
  const f = document.querySelector("` + challengeFrameSelector + `");
  if (!f) return {found: false, x: 0, y: 0, w: 0, h: 0};
  const r = f.getBoundingClientRect();
  return {found: r.width > 0 && r.height > 0, x: r.left, y: r.top, w: r.width, h: r.height};
})()`

// chromePage is one tab. Operations run on the tab context and are also
// cancelled when the caller's context ends.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	box    *controlBox
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, 0, chromedp.Navigate(url))
}

func (p *chromePage) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrWaitTimeout
	}
	return err
}

func (p *chromePage) Pause(ctx context.Context, d time.Duration) error {
	return utils.Sleep(ctx, d)
}

func (p *chromePage) ChallengePresent(ctx context.Context) (bool, error) {
	var present bool
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(detectChallengeJS, &present)); err != nil {
		return false, err
	}
	return present, nil
}

func (p *chromePage) LocateControl(ctx context.Context) (bool, error) {
	var box controlBox
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(locateControlJS, &box)); err != nil {
		return false, err
	}
	if !box.Found {
		return false, nil
	}
	p.box = &box
	return true, nil
}

// ActivateControl clicks the checkbox, which sits near the left edge of the
// widget frame.
func (p *chromePage) ActivateControl(ctx context.Context) error {
	if p.box == nil {
		return ErrNoControl
	}
	x := p.box.X + min(30, p.box.W/2)
	y := p.box.Y + p.box.H/2
	return p.run(ctx, 10*time.Second, chromedp.MouseClickXY(x, y))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 30*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
