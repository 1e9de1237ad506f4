package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const cookieFile = "cookies.json"

// StaticOptions configures the plain HTTP driver.
type StaticOptions struct {
	// BaseURL scopes the cookies persisted in ProfileDir.
	BaseURL    string
	ProfileDir string
	Proxy      string
	UserAgent  string
	Timeout    time.Duration
	Log        logrus.FieldLogger
}

// Static is a Browser that issues plain HTTP requests. It sees challenges
// but cannot solve them, and it cannot run the scripts that reveal content.
type Static struct {
	client  *retryablehttp.Client
	jar     http.CookieJar
	base    *url.URL
	profile string
	ua      string
	log     logrus.FieldLogger
	mu      sync.Mutex
}

func NewStatic(opts StaticOptions) (*Static, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client, err := whttp.NewClient(whttp.ClientOptions{Proxy: opts.Proxy, Timeout: timeout, RetryMax: 1, Jar: jar})
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("static: invalid base url: %w", err)
	}
	s := &Static{
		client:  client,
		jar:     jar,
		base:    base,
		profile: opts.ProfileDir,
		ua:      opts.UserAgent,
		log:     utils.LoggerOrNop(opts.Log),
	}
	if err := s.loadCookies(); err != nil {
		s.log.WithError(err).Warn("Could not load saved cookies")
	}
	return s, nil
}

// Client exposes the underlying HTTP client, mainly for tests.
func (s *Static) Client() *retryablehttp.Client {
	return s.client
}

func (s *Static) NewPage(ctx context.Context) (Page, error) {
	return &staticPage{s: s}, nil
}

// Close persists the session cookies.
func (s *Static) Close() error {
	return s.saveCookies()
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Static) cookiePath() string {
	if s.profile == "" {
		return ""
	}
	return filepath.Join(s.profile, cookieFile)
}

func (s *Static) loadCookies() error {
	path := s.cookiePath()
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var saved []savedCookie
	if err := json.Unmarshal(b, &saved); err != nil {
		return err
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	s.jar.SetCookies(s.base, cookies)
	return nil
}

func (s *Static) saveCookies() error {
	path := s.cookiePath()
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var saved []savedCookie
	for _, c := range s.jar.Cookies(s.base) {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	b, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.profile, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// staticPage holds the last response for one URL.
type staticPage struct {
	s   *Static
	url string
	res *whttp.WHTTPRes
	doc *goquery.Document
}

func (p *staticPage) Navigate(ctx context.Context, u string) error {
	req := &whttp.WHTTPReq{URL: u, Method: http.MethodGet}
	if p.s.ua != "" {
		req.Headers = append(req.Headers, whttp.WHTTPHeader{Name: "User-Agent", Value: p.s.ua})
	}
	res, err := whttp.SendHTTPRequest(ctx, req, p.s.client)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return err
	}
	p.url, p.res, p.doc = u, res, doc
	p.s.log.WithFields(logrus.Fields{"url": u, "status": res.StatusCode, "title": res.HTTPTitle}).Debug("Fetched")
	return nil
}

// WaitReady checks the current response. Static content cannot change, so
// there is nothing to wait for.
func (p *staticPage) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if p.doc != nil && p.doc.Find(selector).Length() > 0 {
		return nil
	}
	return ErrWaitTimeout
}

// Pause waits, then reloads the page if it was a challenge, since the
// challenge may have been lifted for this session meanwhile.
func (p *staticPage) Pause(ctx context.Context, d time.Duration) error {
	if err := utils.Sleep(ctx, d); err != nil {
		return err
	}
	if p.url == "" || !p.challenged() {
		return nil
	}
	return p.Navigate(ctx, p.url)
}

func (p *staticPage) challenged() bool {
	if p.doc == nil {
		return false
	}
	if p.doc.Find(challengeFrameSelector).Length() > 0 {
		return true
	}
	return strings.Contains(p.res.HTTPTitle, challengeTitle)
}

func (p *staticPage) ChallengePresent(ctx context.Context) (bool, error) {
	return p.challenged(), nil
}

func (p *staticPage) LocateControl(ctx context.Context) (bool, error) {
	return false, nil
}

func (p *staticPage) ActivateControl(ctx context.Context) error {
	return ErrNoControl
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	if p.res == nil {
		return "", errors.New("no document loaded")
	}
	return p.res.BodyString, nil
}

func (p *staticPage) Close() error {
	return nil
}
