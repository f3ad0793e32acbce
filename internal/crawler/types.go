package crawler

import "time"

// FetchRequest is one unit of work handed to the fetch pool. NodeID is
// zero for seed URLs, whose graph node is created when the fetch
// completes. Domain is the domain the request was scheduled under; a
// response ending up elsewhere is dropped as off-domain.
type FetchRequest struct {
	NodeID int
	URL    string
	Domain string
	Depth  int
}

// FetchResponse is what a Fetcher returns for one attempt.
type FetchResponse struct {
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Link is one outbound link extracted from a fetched page, with the
// feature mapping describing how it was presented (anchor words,
// position, attributes).
type Link struct {
	URL      string
	Features map[string]float64
}

// Outcome is the fetch pool's report for one completed request, the only
// message that crosses back into the orchestrator loop.
type Outcome struct {
	NodeID      int
	URL         string
	FinalURL    string
	Domain      string
	Depth       int
	StatusCode  int
	Bytes       int
	Success     bool
	HasContent  bool
	OffDomain   bool
	Scores      map[string]float64
	Links       []Link
	ContentHash string
	Err         error
}

// PageRecord is the archived metadata row for one completed fetch.
type PageRecord struct {
	CrawlID     string             `json:"crawl_id"`
	NodeID      int                `json:"node_id"`
	URL         string             `json:"url"`
	Domain      string             `json:"domain"`
	StatusCode  int                `json:"status_code"`
	Success     bool               `json:"success"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	Reward      float64            `json:"reward"`
	ContentHash string             `json:"content_hash,omitempty"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

// Status is a read-only snapshot of the crawl, served by the API.
type Status struct {
	CrawlID      string             `json:"crawl_id"`
	StartedAt    time.Time          `json:"started_at"`
	Nodes        int                `json:"nodes"`
	Edges        int                `json:"edges"`
	Visited      int                `json:"visited"`
	Queued       int                `json:"queued"`
	Domains      int                `json:"domains"`
	ModelUpdates int                `json:"model_updates"`
	RandomPicks  int                `json:"random_picks"`
	RewardTotal  float64            `json:"reward_total"`
	ScoreTotals  map[string]float64 `json:"score_totals,omitempty"`
}

// DomainStatus is the per-domain slice of a Status snapshot.
type DomainStatus struct {
	Domain string             `json:"domain"`
	Queued int                `json:"queued"`
	State  map[string]float64 `json:"state,omitempty"`
}
