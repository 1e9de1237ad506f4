package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStatic(t *testing.T, baseURL, profile string) *Static {
	t.Helper()
	s, err := NewStatic(StaticOptions{BaseURL: baseURL, ProfileDir: profile, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	// The test server speaks plain HTTP.
	s.Client().HTTPClient.Transport = http.DefaultTransport
	return s
}

func TestStaticFetchContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
		fmt.Fprint(w, `<html><head><title>Stats</title></head><body><table id="stats_standard"></table></body></html>`)
	}))
	defer srv.Close()

	profile := t.TempDir()
	s := newTestStatic(t, srv.URL, profile)
	opts := DefaultOptions()
	opts.ProbeDelay = 0
	doc, err := New(s, opts).Fetch(context.Background(), srv.URL+"/en/comps/9/stats", "table")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.HTML == "" {
		t.Fatalf("expected html")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(profile, cookieFile))
	if err != nil {
		t.Fatalf("cookies not persisted: %v", err)
	}
	if want := `"sessionid"`; !strings.Contains(string(b), want) {
		t.Fatalf("expected %s in %s", want, b)
	}

	again := newTestStatic(t, srv.URL, profile)
	u, _ := again.base.Parse("/")
	if cookies := again.jar.Cookies(u); len(cookies) != 1 || cookies[0].Value != "abc" {
		t.Fatalf("expected persisted cookie to be loaded, got %v", cookies)
	}
}

func TestStaticChallengeIsUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><head><title>Just a moment...</title></head><body><iframe id="cf-chl-widget-x1"></iframe></body></html>`)
	}))
	defer srv.Close()

	s := newTestStatic(t, srv.URL, "")
	opts := DefaultOptions()
	opts.ProbeDelay = 0
	opts.ControlWait = 0
	_, err := New(s, opts).Fetch(context.Background(), srv.URL, "table")
	if !errors.Is(err, ErrChallengeUnresolved) {
		t.Fatalf("expected ErrChallengeUnresolved, got %v", err)
	}
}

func TestStaticMissingContentTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Empty</title></head><body><p>nothing</p></body></html>`)
	}))
	defer srv.Close()

	s := newTestStatic(t, srv.URL, "")
	opts := DefaultOptions()
	opts.ProbeDelay = 0
	_, err := New(s, opts).Fetch(context.Background(), srv.URL, "table")
	if !errors.Is(err, ErrFetchTimeout) {
		t.Fatalf("expected ErrFetchTimeout, got %v", err)
	}
}
