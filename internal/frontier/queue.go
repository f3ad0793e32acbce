// Package frontier holds the pending side of the crawl: per-domain
// priority queues and the balanced scheduler that picks which domain to
// serve next. Owned by the orchestrator loop, not safe for concurrent
// use.
package frontier

import (
	"container/heap"
	"math"
)

// PriorityScale converts an estimator prediction into the fixed-point
// integer priorities the queues order by.
const PriorityScale = 10000

// PriorityFor maps a prediction to an integer priority. NaN sorts below
// everything; infinities clamp to the integer range.
func PriorityFor(v float64) int {
	if math.IsNaN(v) {
		return math.MinInt32
	}
	p := v * PriorityScale
	if p >= math.MaxInt32 {
		return math.MaxInt32
	}
	if p <= math.MinInt32 {
		return math.MinInt32
	}
	return int(p)
}

// Entry is one pending request. NodeID is its identity and never changes;
// Priority is re-scored in place by sweeps.
type Entry struct {
	NodeID   int
	URL      string
	Priority int
}

// Queue is the priority worklist for a single domain: highest priority
// first, FIFO among equal priorities.
type Queue struct {
	h   entryHeap
	seq int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push adds an entry.
func (q *Queue) Push(e Entry) {
	q.seq++
	heap.Push(&q.h, &queued{Entry: e, seq: q.seq})
}

// Pop removes and returns the best entry, or false when empty.
func (q *Queue) Pop() (Entry, bool) {
	if len(q.h) == 0 {
		return Entry{}, false
	}
	item := heap.Pop(&q.h).(*queued)
	return item.Entry, true
}

// Peek returns the entry Pop would return, without removing it. The
// orchestrator uses it as the TD lookahead action.
func (q *Queue) Peek() (Entry, bool) {
	if len(q.h) == 0 {
		return Entry{}, false
	}
	return q.h[0].Entry, true
}

// Len returns the number of queued entries.
func (q *Queue) Len() int { return len(q.h) }

// UpdateAll re-scores every entry with fn and restores heap order. An
// entry whose fn call fails keeps its previous priority; the sweep
// continues. Runs in O(n log n).
func (q *Queue) UpdateAll(fn func(Entry) (int, error)) {
	for _, item := range q.h {
		p, err := fn(item.Entry)
		if err != nil {
			continue
		}
		item.Priority = p
	}
	heap.Init(&q.h)
}

// queued wraps an Entry with its insertion sequence for FIFO tie-breaks.
type queued struct {
	Entry
	seq int
}

type entryHeap []*queued

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(*queued))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
