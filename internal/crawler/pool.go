package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolDeps bundles the collaborators of the fetch pool. Fetcher, Scorer,
// and Links are required. A nil Limiter disables politeness waits, a nil
// Retry falls back to the exponential policy, and a nil Hasher skips
// content hashing.
type PoolDeps struct {
	Fetcher Fetcher
	Scorer  Scorer
	Links   LinkExtractor
	Limiter Limiter
	Retry   RetryPolicy
	Hasher  Hasher
}

// Pool is the fetch worker pool. Workers pull requests from the
// orchestrator, respect the per-domain limiter, fetch with retries, then
// score the page and extract its links before posting the outcome back.
type Pool struct {
	deps     PoolDeps
	workers  int
	maxDepth int
	logger   *zap.Logger
}

// NewPool builds a pool of the given size. maxDepth bounds how deep link
// extraction still happens; zero or negative means unbounded.
func NewPool(workers, maxDepth int, deps PoolDeps, logger *zap.Logger) (*Pool, error) {
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("pool requires a fetcher")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("pool requires a scorer")
	}
	if deps.Links == nil {
		return nil, fmt.Errorf("pool requires a link extractor")
	}
	if deps.Retry == nil {
		deps.Retry = NewExponentialRetryPolicy()
	}
	if workers <= 0 {
		workers = defaultConcurrency
	}
	return &Pool{deps: deps, workers: workers, maxDepth: maxDepth, logger: logger}, nil
}

// Run blocks until the context is canceled or the requests channel is
// closed, whichever comes first.
func (p *Pool) Run(ctx context.Context, requests <-chan FetchRequest, completions chan<- Outcome) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id, requests, completions)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int, requests <-chan FetchRequest, completions chan<- Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			out := p.process(ctx, req)
			select {
			case completions <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one request end to end and always returns an outcome, so
// the orchestrator's in-flight accounting stays balanced.
func (p *Pool) process(ctx context.Context, req FetchRequest) Outcome {
	out := Outcome{
		NodeID:   req.NodeID,
		URL:      req.URL,
		FinalURL: req.URL,
		Domain:   req.Domain,
		Depth:    req.Depth,
	}

	if p.deps.Limiter != nil {
		if err := p.deps.Limiter.Wait(ctx, req.Domain); err != nil {
			out.Err = fmt.Errorf("rate limit wait: %w", err)
			return out
		}
	}

	start := time.Now()
	resp, err := p.fetchWithRetry(ctx, req)
	if err != nil {
		out.Err = err
		return out
	}

	out.StatusCode = resp.StatusCode
	out.Bytes = len(resp.Body)
	out.HasContent = len(resp.Body) > 0
	if resp.FinalURL != "" {
		if norm, err := NormalizeURL(resp.FinalURL); err == nil {
			out.FinalURL = norm
		}
	}
	if d, err := DomainOf(out.FinalURL); err == nil && d != req.Domain {
		out.OffDomain = true
	}

	out.Success = resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		out.HasContent && isHTML(resp.ContentType) && !out.OffDomain
	p.logger.Debug("fetched",
		zap.String("url", out.FinalURL),
		zap.Int("status", out.StatusCode),
		zap.Int("bytes", out.Bytes),
		zap.Bool("success", out.Success),
		zap.Duration("took", time.Since(start)),
	)
	if !out.Success {
		return out
	}

	scores, err := p.deps.Scorer.Score(resp.Body)
	if err != nil {
		p.logger.Warn("score page", zap.String("url", out.FinalURL), zap.Error(err))
	} else {
		out.Scores = scores
	}

	if p.maxDepth <= 0 || req.Depth+1 <= p.maxDepth {
		links, err := p.deps.Links.Links(out.FinalURL, resp.Body)
		if err != nil {
			p.logger.Warn("extract links", zap.String("url", out.FinalURL), zap.Error(err))
		} else {
			out.Links = links
		}
	}

	if p.deps.Hasher != nil {
		if h, err := p.deps.Hasher.Hash(resp.Body); err == nil {
			out.ContentHash = h
		}
	}
	return out
}

func (p *Pool) fetchWithRetry(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := p.deps.Fetcher.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !p.deps.Retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, err)
		}
		backoff := p.deps.Retry.Backoff(attempt)
		p.logger.Debug("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return FetchResponse{}, ctx.Err()
		}
	}
}

// isHTML reports whether the content type names an HTML document. An
// absent header counts: plenty of small sites never set one.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
