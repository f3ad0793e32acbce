// Package rl holds the learning half of the frontier: per-domain state
// aggregation and the temporal-difference value estimator that turns
// (state, link) pairs into priorities.
//
// Everything in this package is owned by the orchestrator loop and is not
// safe for concurrent use.
package rl

// DomainStates tracks, per domain, the running maximum of every observed
// score type. Maxima never decrease, so the state is a monotone signal of
// how valuable a domain has proven so far.
type DomainStates struct {
	max map[string]map[string]float64
}

// NewDomainStates returns an empty tracker.
func NewDomainStates() *DomainStates {
	return &DomainStates{max: make(map[string]map[string]float64)}
}

// State returns a snapshot copy of the domain's state. Callers may diff
// against it after later updates; the copy never changes. Unknown domains
// yield an empty state.
func (d *DomainStates) State(domain string) map[string]float64 {
	cur := d.max[domain]
	snap := make(map[string]float64, len(cur))
	for k, v := range cur {
		snap[k] = v
	}
	return snap
}

// Update folds an observation into the domain's state, keeping the
// component-wise maximum. Zero-score observations (failed fetches) still
// create the domain entry so it counts as seen.
func (d *DomainStates) Update(domain string, observed map[string]float64) {
	cur, ok := d.max[domain]
	if !ok {
		cur = make(map[string]float64, len(observed))
		d.max[domain] = cur
	}
	for k, v := range observed {
		if v > cur[k] {
			cur[k] = v
		}
	}
}

// Len returns the number of domains seen so far.
func (d *DomainStates) Len() int { return len(d.max) }

// Totals sums the per-domain maxima by score type, for stats reporting.
func (d *DomainStates) Totals() map[string]float64 {
	totals := make(map[string]float64)
	for _, state := range d.max {
		for k, v := range state {
			totals[k] += v
		}
	}
	return totals
}
