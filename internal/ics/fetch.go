package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	appLog "meetbadge/internal/log"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultUserAgent    = "meetbadge/0.1"

	// maxBodyBytes bounds a single feed download.
	maxBodyBytes = 8 << 20
)

// Source yields one raw calendar document per call.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetcherOptions configures an HTTP Fetcher.
type FetcherOptions struct {
	URL string

	// Mirrors are URL templates tried in order when the direct request
	// fails. "{url}" is replaced by the raw feed URL and "{url_escaped}" by
	// its query-escaped form, e.g. "https://proxy.example/raw?url={url_escaped}".
	Mirrors []string

	// Timeout bounds each individual request. Zero means DefaultFetchTimeout.
	Timeout time.Duration

	UserAgent string

	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// cacheEntry holds HTTP validators and the body they belong to. It lives
// in memory only.
type cacheEntry struct {
	ETag         string
	LastModified string
	Body         []byte
}

// Fetcher downloads the feed over HTTP with conditional requests
// (ETag / Last-Modified) and an optional mirror chain.
type Fetcher struct {
	opts   FetcherOptions
	client *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher creates a new Fetcher. It fails only when no feed URL is set.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("ics: feed URL is empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		opts:   opts,
		client: client,
		cache:  make(map[string]cacheEntry),
	}, nil
}

// Fetch tries the feed URL directly, then each mirror. The first
// successful body wins; if all fail, the last error is returned.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	candidates := f.candidates()

	var lastErr error
	for i, u := range candidates {
		body, err := f.fetchOne(ctx, u)
		if err == nil {
			if i > 0 {
				appLog.Info("ics fetch succeeded via mirror", "mirror", i, "url", redactURL(u))
			}
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(candidates) {
			appLog.Warn("ics fetch failed, trying next mirror", "attempt", i+1, "of", len(candidates),
				"url", redactURL(u), "reason", err)
		}
	}
	return nil, lastErr
}

func (f *Fetcher) candidates() []string {
	out := []string{f.opts.URL}
	for _, m := range f.opts.Mirrors {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		r := strings.NewReplacer(
			"{url_escaped}", url.QueryEscape(f.opts.URL),
			"{url}", f.opts.URL,
		)
		out = append(out, r.Replace(m))
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.1")

	f.mu.Lock()
	meta, hasMeta := f.cache[target]
	f.mu.Unlock()

	// Conditional headers from cached validators.
	if hasMeta && len(meta.Body) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	start := time.Now()
	appLog.Debug("ics fetch start", "url", redactURL(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics fetch %s: %w", redactURL(target), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("ics fetch %s: read body: %w", redactURL(target), err)
		}

		f.mu.Lock()
		f.cache[target] = cacheEntry{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		}
		f.mu.Unlock()

		appLog.Info("ics fetch success", "url", redactURL(target), "status", resp.StatusCode,
			"bytes", len(body), "elapsed", time.Since(start).Round(time.Millisecond))
		return body, nil

	case http.StatusNotModified:
		if !hasMeta || len(meta.Body) == 0 {
			return nil, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified; using cached body", "url", redactURL(target))
		return meta.Body, nil

	default:
		return nil, fmt.Errorf("ics fetch %s: unexpected status %s", redactURL(target), resp.Status)
	}
}

// redactURL hides the secret parts of a feed URL for logging. Private
// calendar URLs carry their token in the path or query.
//
//	https://calendar.google.com/calendar/ical/x/private-abc/basic.ics
//	-> https://calendar.google.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
