package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Scorer turns a fetched page into named scores. Types enumerates every
// score type the scorer can emit; it fixes the estimator's state layout
// and the zero-score map recorded for failed fetches.
type Scorer interface {
	Types() []string
	Score(body []byte) (map[string]float64, error)
}

// LinkExtractor finds outbound links and their features on a page.
type LinkExtractor interface {
	Links(pageURL string, body []byte) ([]Link, error)
}

// Estimator predicts and learns the value of following a link while its
// domain is in a given state.
type Estimator interface {
	Predict(state, action map[string]float64) float64
	Update(st, at map[string]float64, r float64, st1, at1 map[string]float64)
	Updates() int
}

// Limiter enforces per-domain politeness before a fetch starts.
type Limiter interface {
	Wait(ctx context.Context, domain string) error
}

// RetryPolicy decides whether and when to retry a failed fetch.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Archive persists page metadata rows. Implementations may be backed by
// Postgres or be no-ops.
type Archive interface {
	RecordPage(ctx context.Context, page PageRecord) error
}

// Publisher pushes page-crawled notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for archived content.
type Hasher interface {
	Hash(data []byte) (string, error)
}
