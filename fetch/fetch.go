// Package fetch retrieves and parses origin pages under a global concurrency
// cap, with retry for transient network failures and content-based detection
// of the origin's soft error pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/padraicbc/keibadata/config"
)

// StatusError is a non-retryable HTTP status failure.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Code)
}

// PageError marks a page the origin served with 200 but whose content is one
// of its known error pages. Never retried.
type PageError struct {
	URL string
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetch %s: origin error page", e.URL)
}

// Error phrases the origin embeds in soft-404 and maintenance pages.
var errorPhrases = []string{
	"エラー",
	"Error",
	"見つかりません",
	"ページが存在しません",
}

// RetryPolicy decides how many attempts a fetch gets and how long to wait
// between them. Backoff is exponential, clamped to [Floor, Ceiling].
type RetryPolicy struct {
	MaxAttempts int
	Multiplier  time.Duration
	Floor       time.Duration
	Ceiling     time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy mirrors the limits agreed with the origin: three
// attempts, exponential backoff between 4s and 10s, network errors only.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Multiplier:  time.Second,
		Floor:       4 * time.Second,
		Ceiling:     10 * time.Second,
		Retryable:   IsRetryable,
	}
}

// Backoff returns the wait before the given 1-based retry attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := p.Multiplier << (attempt - 1)
	if wait < p.Floor {
		wait = p.Floor
	}
	if wait > p.Ceiling {
		wait = p.Ceiling
	}
	return wait
}

// IsRetryable reports whether an error is a transient network/timeout failure.
// Status errors and detected error pages are final.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	var pageErr *PageError
	if errors.As(err, &statusErr) || errors.As(err, &pageErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Result pairs one fan-out target with its document or error.
type Result struct {
	Target string
	Doc    *goquery.Document
	Err    error
}

// Fetcher issues origin requests. All fetches, including fan-out, pass
// through one weighted semaphore so the origin never sees more than
// MaxConcurrent requests in flight.
type Fetcher struct {
	client *http.Client
	gate   *semaphore.Weighted
	policy RetryPolicy
	ua     string
	delay  time.Duration
	log    *zap.Logger

	// sleep is swapped out by tests; time.Sleep otherwise.
	sleep func(time.Duration)
}

// New builds a Fetcher from the scraping config.
func New(cfg config.ScrapingConfig, log *zap.Logger) *Fetcher {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		gate:   semaphore.NewWeighted(int64(maxConcurrent)),
		policy: DefaultRetryPolicy(cfg.MaxRetries),
		ua:     cfg.UserAgent,
		delay:  cfg.RequestDelay,
		log:    log,
		sleep:  time.Sleep,
	}
}

// WithPolicy overrides the retry policy. Used by callers with their own limits.
func (f *Fetcher) WithPolicy(p RetryPolicy) *Fetcher {
	f.policy = p
	return f
}

// Fetch retrieves one page and parses it, holding an admission slot for the
// whole attempt cycle. The final attempt's error propagates unchanged.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := f.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.gate.Release(1)

	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		doc, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			// Post-fetch pause keeps us inside the origin's implicit rate limit.
			f.sleep(f.delay)
			return doc, nil
		}

		lastErr = err
		retryable := f.policy.Retryable != nil && f.policy.Retryable(err)
		if !retryable || attempt == f.policy.MaxAttempts {
			break
		}

		wait := f.policy.Backoff(attempt)
		f.log.Warn("fetch retrying",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	if isErrorPage(doc) {
		return nil, &PageError{URL: pageURL}
	}
	return doc, nil
}

// FetchMany fans out one fetch per target, bounded by maxConcurrent on top of
// the shared admission gate. A failing target yields its error in the result
// slice; siblings run to completion regardless. Results keep target order.
func (f *Fetcher) FetchMany(ctx context.Context, targets []string, maxConcurrent int) []Result {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	results := make([]Result, len(targets))
	batch := semaphore.NewWeighted(int64(maxConcurrent))
	done := make(chan struct{})

	for i, target := range targets {
		go func(i int, target string) {
			defer func() { done <- struct{}{} }()
			if err := batch.Acquire(ctx, 1); err != nil {
				results[i] = Result{Target: target, Err: err}
				return
			}
			defer batch.Release(1)

			doc, err := f.Fetch(ctx, target)
			if err != nil {
				f.log.Error("fetch target failed", zap.String("url", target), zap.Error(err))
			}
			results[i] = Result{Target: target, Doc: doc, Err: err}
		}(i, target)
	}
	for range targets {
		<-done
	}
	return results
}

// isErrorPage applies the origin's content-based error markers: a not-found
// title or any known error phrase in the body.
func isErrorPage(doc *goquery.Document) bool {
	title := doc.Find("title").Text()
	if strings.Contains(title, "404") || strings.Contains(title, "Not Found") {
		return true
	}

	text := doc.Text()
	for _, phrase := range errorPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
