package frontier

import (
	"math/rand"
	"time"
)

// Scheduler owns one Queue per domain and decides which domain serves the
// next request. Domain choice is epsilon-greedy: a uniformly random
// non-empty domain with probability epsilon, otherwise round-robin over
// non-empty domains so no single domain can starve the rest. Within the
// chosen domain the highest-priority entry wins.
type Scheduler struct {
	epsilon float64
	rng     *rand.Rand

	queues map[string]*Queue
	order  []string
	cursor int

	randomPicks int
}

// NewScheduler builds a scheduler with the given exploration rate. A nil
// rng gets a time-seeded source; tests pass a fixed seed.
func NewScheduler(epsilon float64, rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		epsilon: epsilon,
		rng:     rng,
		queues:  make(map[string]*Queue),
	}
}

// Push queues an entry under its domain, creating the domain queue on
// first use.
func (s *Scheduler) Push(domain string, e Entry) {
	s.Queue(domain).Push(e)
}

// Pop selects a domain and returns its best entry, or false when every
// queue is empty.
func (s *Scheduler) Pop() (Entry, bool) {
	nonEmpty := s.nonEmptyDomains()
	if len(nonEmpty) == 0 {
		return Entry{}, false
	}

	var domain string
	if s.epsilon > 0 && s.rng.Float64() < s.epsilon {
		domain = nonEmpty[s.rng.Intn(len(nonEmpty))]
		s.randomPicks++
	} else {
		domain = s.nextRoundRobin()
	}
	return s.queues[domain].Pop()
}

// Queue returns the domain's queue, creating it lazily.
func (s *Scheduler) Queue(domain string) *Queue {
	q, ok := s.queues[domain]
	if !ok {
		q = NewQueue()
		s.queues[domain] = q
		s.order = append(s.order, domain)
	}
	return q
}

// Domains lists every domain seen so far, in first-seen order.
func (s *Scheduler) Domains() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the total number of queued entries across all domains.
func (s *Scheduler) Len() int {
	var n int
	for _, q := range s.queues {
		n += q.Len()
	}
	return n
}

// Lens returns the per-domain queue sizes.
func (s *Scheduler) Lens() map[string]int {
	out := make(map[string]int, len(s.queues))
	for d, q := range s.queues {
		out[d] = q.Len()
	}
	return out
}

// RandomPicks returns how many pops took the epsilon branch.
func (s *Scheduler) RandomPicks() int { return s.randomPicks }

func (s *Scheduler) nonEmptyDomains() []string {
	out := make([]string, 0, len(s.order))
	for _, d := range s.order {
		if s.queues[d].Len() > 0 {
			out = append(out, d)
		}
	}
	return out
}

// nextRoundRobin advances the cursor to the next non-empty domain. Only
// called when at least one exists.
func (s *Scheduler) nextRoundRobin() string {
	for i := 0; i < len(s.order); i++ {
		d := s.order[s.cursor%len(s.order)]
		s.cursor++
		if s.queues[d].Len() > 0 {
			return d
		}
	}
	return ""
}
