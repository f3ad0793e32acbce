package crawler

import "time"

// Config captures every knob that influences one crawl run. Values are
// validated by the config layer; zero intervals fall back to the
// defaults below.
type Config struct {
	CrawlID string
	Seeds   []string

	// BlockedDomains lists domains never enqueued: exact hosts or
	// suffix wildcards ("*.ads.example").
	BlockedDomains []string

	// Epsilon is the scheduler's exploration rate in [0, 1].
	Epsilon float64

	Concurrency int
	MaxDepth    int
	// MaxPages stops the crawl after that many completed fetches; zero
	// means unbounded.
	MaxPages int

	// UpdateInterval is the number of completed fetches between global
	// re-prioritization sweeps. Zero selects the adaptive threshold
	// max(500, number of domains seen).
	UpdateInterval int

	// ResweepReward is the reward above which the fetched page's domain
	// queue is re-scored immediately. Zero selects the default;
	// negative disables immediate re-scoring.
	ResweepReward float64

	StatsInterval      time.Duration
	CheckpointInterval time.Duration
	SweepCheckInterval time.Duration
}

const (
	defaultConcurrency        = 8
	defaultResweepReward      = 0.1
	defaultStatsInterval      = 10 * time.Second
	defaultCheckpointInterval = 10 * time.Minute
	defaultSweepCheckInterval = 30 * time.Second
	sweepFloor                = 500
)

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.ResweepReward == 0 {
		c.ResweepReward = defaultResweepReward
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = defaultStatsInterval
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = defaultCheckpointInterval
	}
	if c.SweepCheckInterval <= 0 {
		c.SweepCheckInterval = defaultSweepCheckInterval
	}
	return c
}
