package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/keibadata/config"
)

func testFetcher(maxConcurrent int) *Fetcher {
	f := New(config.ScrapingConfig{
		UserAgent:     "test-agent",
		MaxRetries:    3,
		MaxConcurrent: maxConcurrent,
		Timeout:       5 * time.Second,
	}, zap.NewNop())
	return f.WithPolicy(RetryPolicy{
		MaxAttempts: 3,
		Multiplier:  time.Millisecond,
		Floor:       time.Millisecond,
		Ceiling:     5 * time.Millisecond,
		Retryable:   IsRetryable,
	})
}

const okPage = `<html><head><title>レース結果</title></head><body><div>ok</div></body></html>`

func TestFetchParsesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, okPage)
	}))
	defer srv.Close()

	doc, err := testFetcher(2).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := doc.Find("div").Text(); got != "ok" {
		t.Errorf("div text = %q, want ok", got)
	}
}

func TestFetchBadStatusNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testFetcher(2).Fetch(context.Background(), srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("want StatusError 500, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestFetchDetectsErrorPage(t *testing.T) {
	pages := []string{
		`<html><head><title>404 Not Found</title></head><body></body></html>`,
		`<html><head><title>db</title></head><body>ページが存在しません</body></html>`,
	}
	for _, page := range pages {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, page)
		}))

		_, err := testFetcher(2).Fetch(context.Background(), srv.URL)
		srv.Close()

		var pageErr *PageError
		if !errors.As(err, &pageErr) {
			t.Errorf("want PageError for %q, got %v", page, err)
		}
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			// Hijack and drop the connection to force a network error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		fmt.Fprint(w, okPage)
	}))
	defer srv.Close()

	doc, err := testFetcher(2).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch after retries: %v", err)
	}
	if doc == nil {
		t.Fatal("nil document")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("server hit %d times, want 3", n)
	}
}

func TestFetchManyBoundsConcurrency(t *testing.T) {
	const limit = 5

	var mu sync.Mutex
	inflight, peak := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		fmt.Fprint(w, okPage)
	}))
	defer srv.Close()

	targets := make([]string, 25)
	for i := range targets {
		targets[i] = fmt.Sprintf("%s/?p=%d", srv.URL, i)
	}

	results := testFetcher(limit).FetchMany(context.Background(), targets, 10)
	for _, res := range results {
		if res.Err != nil {
			t.Errorf("target %s: %v", res.Target, res.Err)
		}
	}

	if peak > limit {
		t.Errorf("peak in-flight = %d, exceeds cap %d", peak, limit)
	}
}

func TestFetchManyIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("p") == "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, okPage)
	}))
	defer srv.Close()

	targets := []string{srv.URL + "/?p=0", srv.URL + "/?p=1", srv.URL + "/?p=2"}
	results := testFetcher(3).FetchMany(context.Background(), targets, 3)

	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy siblings failed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("failing target reported no error")
	}
	if results[1].Target != targets[1] {
		t.Errorf("error paired with %q, want %q", results[1].Target, targets[1])
	}
}

func TestBackoffClamped(t *testing.T) {
	p := DefaultRetryPolicy(3)
	if got := p.Backoff(1); got != 4*time.Second {
		t.Errorf("attempt 1 backoff = %v, want 4s", got)
	}
	if got := p.Backoff(10); got != 10*time.Second {
		t.Errorf("late attempt backoff = %v, want 10s ceiling", got)
	}
}
