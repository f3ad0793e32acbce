package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/qfrontier/qfrontier/internal/frontier"
	"github.com/qfrontier/qfrontier/internal/graph"
	"github.com/qfrontier/qfrontier/internal/metrics"
	"github.com/qfrontier/qfrontier/internal/rl"
)

// Sentinel causes for keeping an entry's previous priority during a
// sweep.
var (
	errSeedEntry      = errors.New("seed entry has no link features")
	errNoIncomingLink = errors.New("node has no incoming link")
	errUnknownNode    = errors.New("entry references unknown node")
)

// Deps bundles the orchestrator's collaborators. Estimator, ScoreTypes,
// and Clock are required; the rest may be nil to disable the concern.
type Deps struct {
	Estimator    Estimator
	ScoreTypes   []string
	Checkpointer *Checkpointer
	Recorder     *Recorder
	Clock        Clock
	Rand         *rand.Rand
}

// Orchestrator drives the crawl: every completed fetch flows through it
// exactly once, updating the graph, the domain states, the estimator,
// and the frontier. All of that state is confined to the Run goroutine;
// the fetch pool and the API talk to it over channels only.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger

	graph  *graph.Graph
	states *rl.DomainStates
	est    Estimator
	sched  *frontier.Scheduler

	scoreTypes   []string
	checkpointer *Checkpointer
	recorder     *Recorder
	clock        Clock
	rng          *rand.Rand
	blocked      *blocklist

	requests    chan FetchRequest
	completions chan Outcome
	statusReqs  chan chan Status
	domainReqs  chan chan []DomainStatus

	seen   map[string]int
	depths map[int]int

	startedAt   time.Time
	responseSeq int
	completed   int
	sinceSweep  int
	inFlight    int
	rewardTotal float64
}

// New builds an orchestrator. Seeds are queued by Seed before Run.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if deps.Estimator == nil {
		return nil, fmt.Errorf("orchestrator requires an estimator")
	}
	if len(deps.ScoreTypes) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one score type")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("orchestrator requires a clock")
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		cfg:          cfg,
		logger:       logger,
		graph:        graph.New(),
		states:       rl.NewDomainStates(),
		est:          deps.Estimator,
		sched:        frontier.NewScheduler(cfg.Epsilon, deps.Rand),
		scoreTypes:   deps.ScoreTypes,
		checkpointer: deps.Checkpointer,
		recorder:     deps.Recorder,
		clock:        deps.Clock,
		rng:          deps.Rand,
		blocked:      newBlocklist(cfg.BlockedDomains),
		requests:     make(chan FetchRequest, cfg.Concurrency),
		completions:  make(chan Outcome, cfg.Concurrency),
		statusReqs:   make(chan chan Status),
		domainReqs:   make(chan chan []DomainStatus),
		seen:         make(map[string]int),
		depths:       make(map[int]int),
	}, nil
}

// Requests is the channel the fetch pool consumes work from.
func (o *Orchestrator) Requests() <-chan FetchRequest { return o.requests }

// Completions is the channel the fetch pool delivers outcomes on.
func (o *Orchestrator) Completions() chan<- Outcome { return o.completions }

// Seed queues the starting URLs. Seed entries carry node id zero; their
// graph node is created when the fetch completes, so they never produce
// a learning transition.
func (o *Orchestrator) Seed(urls []string) error {
	for _, raw := range urls {
		norm, err := NormalizeURL(raw)
		if err != nil {
			return fmt.Errorf("seed %q: %w", raw, err)
		}
		domain, err := DomainOf(norm)
		if err != nil {
			return fmt.Errorf("seed %q: %w", raw, err)
		}
		if o.blocked.Blocked(domain) {
			o.logger.Warn("seed domain is blocklisted, skipping", zap.String("url", norm))
			continue
		}
		if _, dup := o.seen[norm]; dup {
			continue
		}
		o.seen[norm] = 0
		o.sched.Push(domain, frontier.Entry{NodeID: 0, URL: norm, Priority: 0})
	}
	if o.sched.Len() == 0 {
		return fmt.Errorf("no usable seed URLs")
	}
	return nil
}

// Run drives the crawl until the context is canceled, the page budget is
// reached, or the frontier drains. It always takes a final checkpoint on
// the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startedAt = o.clock.Now()
	o.logger.Info("crawl starting",
		zap.String("crawl_id", o.cfg.CrawlID),
		zap.Int("seeds", o.sched.Len()),
		zap.Float64("epsilon", o.cfg.Epsilon),
		zap.Int("concurrency", o.cfg.Concurrency),
		zap.Strings("score_types", o.scoreTypes),
	)
	o.writeManifest(ctx)

	stats := time.NewTicker(o.cfg.StatsInterval)
	defer stats.Stop()
	checkpoint := time.NewTicker(o.cfg.CheckpointInterval)
	defer checkpoint.Stop()
	sweep := time.NewTicker(o.cfg.SweepCheckInterval)
	defer sweep.Stop()

	o.dispatch()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("shutdown requested", zap.Int("in_flight", o.inFlight))
			o.finalize()
			return nil

		case out := <-o.completions:
			o.inFlight--
			o.handleOutcome(out)
			if o.cfg.MaxPages > 0 && o.completed >= o.cfg.MaxPages {
				o.logger.Info("page budget reached", zap.Int("completed", o.completed))
				o.finalize()
				return nil
			}
			o.dispatch()
			if o.inFlight == 0 && o.sched.Len() == 0 {
				o.logger.Info("frontier exhausted", zap.Int("completed", o.completed))
				o.finalize()
				return nil
			}

		case <-stats.C:
			o.logStats()

		case <-checkpoint.C:
			o.snapshot(false)

		case <-sweep.C:
			o.maybeGlobalSweep()

		case reply := <-o.statusReqs:
			reply <- o.buildStatus()

		case reply := <-o.domainReqs:
			reply <- o.buildDomainStatuses()
		}
	}
}

// dispatch fills the fetch pool up to the concurrency limit. The
// requests channel is sized so the sends can never block while inFlight
// stays below the limit.
func (o *Orchestrator) dispatch() {
	for o.inFlight < o.cfg.Concurrency {
		if o.cfg.MaxPages > 0 && o.completed+o.inFlight >= o.cfg.MaxPages {
			return
		}
		e, ok := o.sched.Pop()
		if !ok {
			return
		}
		domain, err := DomainOf(e.URL)
		if err != nil {
			o.logger.Warn("dropping entry with unparseable url", zap.String("url", e.URL), zap.Error(err))
			continue
		}
		var depth int
		if e.NodeID != 0 {
			depth = o.depths[e.NodeID]
		}
		o.requests <- FetchRequest{NodeID: e.NodeID, URL: e.URL, Domain: domain, Depth: depth}
		o.inFlight++
	}
}

// handleOutcome processes one completed fetch to the end: graph update,
// state update, link discovery, then the learning step. Nothing else
// runs in between, so the transition's snapshots stay consistent.
func (o *Orchestrator) handleOutcome(out Outcome) {
	id := out.NodeID
	if id == 0 {
		if out.OffDomain {
			// The request never had a node; nothing to record.
			o.logger.Warn("off-domain drop without node id", zap.String("url", out.URL))
			metrics.ObservePage(out.Domain, "offdomain", 0)
			return
		}
		id = o.graph.AddNode(out.URL, out.Domain)
		o.seen[out.URL] = id
	}

	o.responseSeq++

	stBefore := o.states.State(out.Domain)
	observed := out.Scores
	if !out.Success || observed == nil {
		observed = o.zeroScores()
	}

	if err := o.graph.MarkVisited(id, out.Success, observed, o.responseSeq); err != nil {
		o.logger.Warn("completion for unknown node, skipping", zap.Int("node_id", id), zap.String("url", out.URL))
		return
	}
	o.states.Update(out.Domain, observed)
	o.completed++
	o.sinceSweep++

	outcome := "ok"
	switch {
	case out.OffDomain:
		outcome = "offdomain"
	case !out.Success:
		outcome = "failed"
	}
	metrics.ObservePage(out.Domain, outcome, out.Bytes)
	if out.Err != nil {
		o.logger.Debug("fetch failed", zap.String("url", out.URL), zap.Error(out.Err))
	}

	if out.Success {
		o.discoverLinks(id, out)
	}

	reward := rl.Reward(stBefore, observed)
	o.rewardTotal += reward
	o.learn(id, out, stBefore, reward)
	o.record(id, out, observed, reward)
}

// discoverLinks creates a node, an edge, and a queue entry for every
// not-yet-seen, not-blocklisted link on the page. Links are shuffled
// first so siblings with equal priority are not explored in page order.
func (o *Orchestrator) discoverLinks(parentID int, out Outcome) {
	if o.cfg.MaxDepth > 0 && out.Depth+1 > o.cfg.MaxDepth {
		return
	}
	links := out.Links
	o.rng.Shuffle(len(links), func(i, j int) {
		links[i], links[j] = links[j], links[i]
	})

	for _, link := range links {
		norm, err := NormalizeURL(link.URL)
		if err != nil {
			continue
		}
		if _, dup := o.seen[norm]; dup {
			continue
		}
		domain, err := DomainOf(norm)
		if err != nil {
			continue
		}
		if o.blocked.Blocked(domain) {
			continue
		}

		nid := o.graph.AddNode(norm, domain)
		if err := o.graph.AddEdge(parentID, nid, link.Features); err != nil {
			o.logger.Warn("record edge", zap.Error(err))
		}
		o.seen[norm] = nid
		o.depths[nid] = out.Depth + 1

		pri := frontier.PriorityFor(o.est.Predict(o.states.State(domain), link.Features))
		o.sched.Push(domain, frontier.Entry{NodeID: nid, URL: norm, Priority: pri})
	}
}

// learn builds the TD transition for the response and feeds it to the
// estimator. Seed responses have no incoming link and produce none. The
// lookahead action is the incoming link of the domain queue's next
// entry, found after discovery so fresh links take part.
func (o *Orchestrator) learn(id int, out Outcome, stBefore map[string]float64, reward float64) {
	action, ok := o.graph.IncomingLink(id)
	if !ok {
		return
	}

	stAfter := o.states.State(out.Domain)
	var nextAction map[string]float64
	if next, ok := o.sched.Queue(out.Domain).Peek(); ok && next.NodeID != 0 {
		if link, ok := o.graph.IncomingLink(next.NodeID); ok {
			nextAction = link
		}
	}

	o.est.Update(stBefore, action, reward, stAfter, nextAction)
	metrics.ObserveReward(reward)
	o.logger.Debug("learned from response",
		zap.Int("node_id", id),
		zap.String("domain", out.Domain),
		zap.Float64("reward", reward),
	)

	if reward > o.cfg.ResweepReward {
		o.sweepDomain(out.Domain)
	}
}

// record hands the page to the recorder, when one is configured.
func (o *Orchestrator) record(id int, out Outcome, observed map[string]float64, reward float64) {
	if o.recorder == nil {
		return
	}
	o.recorder.Offer(PageRecord{
		CrawlID:     o.cfg.CrawlID,
		NodeID:      id,
		URL:         out.URL,
		Domain:      out.Domain,
		StatusCode:  out.StatusCode,
		Success:     out.Success,
		Scores:      observed,
		Reward:      reward,
		ContentHash: out.ContentHash,
		FetchedAt:   o.clock.Now(),
	})
}

// scoreEntry is the sweep scoring function: re-predict the entry's value
// from the latest model and domain state. Entries without link features
// keep their previous priority.
func (o *Orchestrator) scoreEntry(e frontier.Entry) (int, error) {
	if e.NodeID == 0 {
		return 0, errSeedEntry
	}
	n, ok := o.graph.Node(e.NodeID)
	if !ok {
		return 0, errUnknownNode
	}
	link, ok := o.graph.IncomingLink(e.NodeID)
	if !ok {
		return 0, errNoIncomingLink
	}
	return frontier.PriorityFor(o.est.Predict(o.states.State(n.Domain), link)), nil
}

// sweepDomain re-scores a single domain's queue right away, done when a
// fetch just earned a meaningful reward there.
func (o *Orchestrator) sweepDomain(domain string) {
	q := o.sched.Queue(domain)
	if q.Len() == 0 {
		return
	}
	start := time.Now()
	q.UpdateAll(o.scoreEntry)
	metrics.ObserveSweep("domain", time.Since(start))
	o.logger.Debug("re-prioritized domain", zap.String("domain", domain), zap.Int("entries", q.Len()))
}

// maybeGlobalSweep re-scores every queue once enough fetches have
// completed since the last sweep. The ticker only polls the counter, so
// an expensive sweep can never overlap itself.
func (o *Orchestrator) maybeGlobalSweep() {
	threshold := o.cfg.UpdateInterval
	if threshold <= 0 {
		threshold = sweepFloor
		if n := o.states.Len(); n > threshold {
			threshold = n
		}
	}
	if o.sinceSweep < threshold {
		return
	}

	start := time.Now()
	var entries int
	for _, domain := range o.sched.Domains() {
		q := o.sched.Queue(domain)
		entries += q.Len()
		q.UpdateAll(o.scoreEntry)
	}
	o.sinceSweep = 0
	elapsed := time.Since(start)
	metrics.ObserveSweep("global", elapsed)
	o.logger.Info("re-prioritized frontier",
		zap.Int("entries", entries),
		zap.Int("domains", len(o.sched.Domains())),
		zap.Duration("took", elapsed),
	)
}

func (o *Orchestrator) zeroScores() map[string]float64 {
	zero := make(map[string]float64, len(o.scoreTypes))
	for _, t := range o.scoreTypes {
		zero[t] = 0
	}
	return zero
}

func (o *Orchestrator) writeManifest(ctx context.Context) {
	if o.checkpointer == nil {
		return
	}
	m := Manifest{
		CrawlID:    o.cfg.CrawlID,
		Seeds:      o.cfg.Seeds,
		Epsilon:    o.cfg.Epsilon,
		MaxDepth:   o.cfg.MaxDepth,
		ScoreTypes: o.scoreTypes,
		StartedAt:  o.startedAt,
	}
	if err := o.checkpointer.WriteManifest(ctx, m); err != nil {
		o.logger.Error("write run manifest", zap.Error(err))
	}
}

// snapshot checkpoints the graph. Failures are logged and the crawl goes
// on.
func (o *Orchestrator) snapshot(final bool) {
	if o.checkpointer == nil {
		return
	}
	o.checkpointer.Snapshot(o.graph, final)
}

func (o *Orchestrator) finalize() {
	o.logStats()
	o.snapshot(true)
}

func (o *Orchestrator) logStats() {
	queued := o.sched.Len()
	domains := o.states.Len()
	metrics.SetFrontierGauges(queued, domains, o.sched.RandomPicks())
	o.logger.Info("crawl stats",
		zap.Int("nodes", o.graph.NodeCount()),
		zap.Int("edges", o.graph.EdgeCount()),
		zap.Int("visited", o.graph.VisitedCount()),
		zap.Int("queued", queued),
		zap.Int("domains", domains),
		zap.Int("completed", o.completed),
		zap.Int("model_updates", o.est.Updates()),
		zap.Float64("reward_total", o.rewardTotal),
		zap.Any("score_totals", o.states.Totals()),
	)
}

func (o *Orchestrator) buildStatus() Status {
	return Status{
		CrawlID:      o.cfg.CrawlID,
		StartedAt:    o.startedAt,
		Nodes:        o.graph.NodeCount(),
		Edges:        o.graph.EdgeCount(),
		Visited:      o.graph.VisitedCount(),
		Queued:       o.sched.Len(),
		Domains:      o.states.Len(),
		ModelUpdates: o.est.Updates(),
		RandomPicks:  o.sched.RandomPicks(),
		RewardTotal:  o.rewardTotal,
		ScoreTotals:  o.states.Totals(),
	}
}

func (o *Orchestrator) buildDomainStatuses() []DomainStatus {
	domains := o.sched.Domains()
	out := make([]DomainStatus, 0, len(domains))
	for _, d := range domains {
		out = append(out, DomainStatus{
			Domain: d,
			Queued: o.sched.Queue(d).Len(),
			State:  o.states.State(d),
		})
	}
	return out
}

// Status answers an API snapshot request by round-tripping through the
// Run loop, so readers never touch loop state directly.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case o.statusReqs <- reply:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// DomainStates answers a per-domain snapshot request the same way.
func (o *Orchestrator) DomainStates(ctx context.Context) ([]DomainStatus, error) {
	reply := make(chan []DomainStatus, 1)
	select {
	case o.domainReqs <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
