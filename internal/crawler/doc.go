// Package crawler drives an adaptive crawl. The orchestrator owns the
// crawl graph, the per-domain state, the value estimator, and the
// frontier, and processes every completed fetch on a single goroutine.
// The fetch pool, the recorder, and the checkpointer hang off it through
// small interfaces so transports and sinks stay swappable.
package crawler
