// Package ratelimit enforces per-domain politeness with token buckets.
// One bucket per domain, created on first use; all domains share the
// configured rate.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/qfrontier/qfrontier/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// QPS is the per-domain request rate; zero or negative disables
	// limiting.
	QPS   float64
	Burst int
}

// Limiter manages per-domain token buckets. Safe for concurrent use by
// the fetch pool workers.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.QPS)
	if cfg.QPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// Wait blocks until the domain's bucket grants a token, respecting the
// context.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	l.mu.Lock()
	bucket, ok := l.buckets[domain]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[domain] = bucket
	}
	l.mu.Unlock()

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, delay)
	}
	return nil
}
