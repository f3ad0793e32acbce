package collyfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qfrontier/qfrontier/internal/metrics"
)

const (
	robotsCacheTTL    = time.Hour
	robotsBodyMaxSize = 1 << 20
)

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsCacheTransport caches robots.txt responses per host. Each fetch
// clones the collector, and a fresh collector re-reads robots.txt; the
// cache keeps that to one real request per host and TTL. Persistent TLS
// handshake timeouts on the probe degrade to a synthetic allow-all
// response instead of failing the page fetch behind them.
type robotsCacheTransport struct {
	base http.RoundTripper
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]*robotsEntry
}

type robotsEntry struct {
	status    int
	body      []byte
	fetchedAt time.Time
}

func newRobotsCacheTransport(base http.RoundTripper) *robotsCacheTransport {
	return &robotsCacheTransport{
		base:    base,
		ttl:     robotsCacheTTL,
		entries: make(map[string]*robotsEntry),
	}
}

func (t *robotsCacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if !isRobotsTxtRequest(req) {
		return t.base.RoundTrip(req)
	}

	key := req.URL.Scheme + "://" + req.URL.Host
	if entry := t.cached(key); entry != nil {
		return entry.response(req), nil
	}

	resp, err := t.fetchWithRetry(req)
	if err != nil {
		return nil, err
	}
	entry, err := newRobotsEntry(resp)
	if err != nil {
		return nil, err
	}
	t.store(key, entry)
	return entry.response(req), nil
}

func (t *robotsCacheTransport) cached(key string) *robotsEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok || time.Since(entry.fetchedAt) > t.ttl {
		return nil
	}
	return entry
}

func (t *robotsCacheTransport) store(key string, entry *robotsEntry) {
	t.mu.Lock()
	t.entries[key] = entry
	t.mu.Unlock()
}

func (t *robotsCacheTransport) fetchWithRetry(req *http.Request) (*http.Response, error) {
	maxAttempts := len(robotsRetryBackoff) + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := t.base.RoundTrip(cloneRequest(req))
		if err == nil {
			return resp, nil
		}
		if !isTransientTLSError(err) {
			return nil, fmt.Errorf("robots roundtrip: %w", err)
		}
		if attempt == maxAttempts-1 {
			metrics.ObserveRobotsFallback()
			return syntheticRobotsAllowAll(req), nil
		}
		if err := sleepWithContext(req.Context(), robotsRetryBackoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots backoff sleep: %w", err)
		}
	}
	return nil, fmt.Errorf("robots roundtrip exhausted retries")
}

func newRobotsEntry(resp *http.Response) (*robotsEntry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsBodyMaxSize))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	return &robotsEntry{
		status:    resp.StatusCode,
		body:      body,
		fetchedAt: time.Now(),
	}, nil
}

// response synthesizes a fresh http.Response from the cached entry so
// every caller gets its own readable body.
func (e *robotsEntry) response(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    e.status,
		Status:        fmt.Sprintf("%d %s", e.status, http.StatusText(e.status)),
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func cloneRequest(req *http.Request) *http.Request {
	if req == nil {
		return nil
	}
	clone := req.Clone(req.Context())
	clone.Body = req.Body
	return clone
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots backoff sleep context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func syntheticRobotsAllowAll(req *http.Request) *http.Response {
	const body = "User-agent: *\nAllow: /"
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransientTLSError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
