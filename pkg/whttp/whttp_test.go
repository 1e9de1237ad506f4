package whttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSendHTTPRequestReadsTitleAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><head><title>\n Just a moment...\r\n</title></head><body></body></html>")
	}))
	defer srv.Close()

	client, err := NewClient(ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.HTTPClient.Transport = http.DefaultTransport

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		URL:     srv.URL,
		Headers: []WHTTPHeader{{Name: "X-Test", Value: "1"}},
	}, client)
	if err != nil {
		t.Fatalf("SendHTTPRequest: %v", err)
	}
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}
	if res.HTTPTitle != "Just a moment..." {
		t.Fatalf("unexpected title %q", res.HTTPTitle)
	}
}

func TestSameSiteRedirects(t *testing.T) {
	mustReq := func(raw string) *http.Request {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		return &http.Request{URL: u}
	}
	origin := []*http.Request{mustReq("https://fbref.com/en/comps/9/Premier-League-Stats")}

	if err := SameSiteRedirects(mustReq("https://www.fbref.com/en/"), origin); err != nil {
		t.Fatalf("same site redirect rejected: %v", err)
	}
	if err := SameSiteRedirects(mustReq("https://challenges.example.net/"), origin); err != http.ErrUseLastResponse {
		t.Fatalf("expected ErrUseLastResponse, got %v", err)
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host, want string
	}{
		{"fbref.com", "fbref.com"},
		{"www.fbref.com", "fbref.com"},
		{"cdn.ssref.net", "ssref.net"},
		{"127.0.0.1", "127.0.0.1"},
	}
	for _, tt := range tests {
		if got := RegistrableDomain(tt.host); got != tt.want {
			t.Fatalf("RegistrableDomain(%q)\nwant: %s\ngot:  %s", tt.host, tt.want, got)
		}
	}
}
