package crawler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qfrontier/qfrontier/internal/metrics"
)

const (
	recorderBuffer = 256
	recordTimeout  = 10 * time.Second
	dropLogEvery   = 100
)

// Recorder drains page records to the archive and the publisher off the
// crawl's hot path. Offer never blocks: when the buffer is full the
// record is dropped and counted instead of stalling the orchestrator.
type Recorder struct {
	archive   Archive
	publisher Publisher
	topic     string
	logger    *zap.Logger
	records   chan PageRecord
	dropped   atomic.Int64
}

// NewRecorder builds a recorder. Either sink may be nil; publishing also
// needs a non-empty topic.
func NewRecorder(archive Archive, publisher Publisher, topic string, logger *zap.Logger) *Recorder {
	return &Recorder{
		archive:   archive,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		records:   make(chan PageRecord, recorderBuffer),
	}
}

// Offer enqueues a record without blocking.
func (r *Recorder) Offer(page PageRecord) {
	select {
	case r.records <- page:
	default:
		n := r.dropped.Add(1)
		metrics.ObserveRecordDrop()
		if n%dropLogEvery == 1 {
			r.logger.Warn("record buffer full, dropping", zap.Int64("dropped_total", n))
		}
	}
}

// Run consumes records until the context is canceled, then flushes
// whatever is already buffered before returning.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case page := <-r.records:
			r.flush(page)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case page := <-r.records:
			r.flush(page)
		default:
			return
		}
	}
}

// flush writes one record under its own deadline so a stuck sink cannot
// wedge the drain loop.
func (r *Recorder) flush(page PageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if r.archive != nil {
		if err := r.archive.RecordPage(ctx, page); err != nil {
			r.logger.Warn("archive page", zap.String("url", page.URL), zap.Error(err))
		}
	}
	if r.publisher != nil && r.topic != "" {
		if _, err := r.publisher.Publish(ctx, r.topic, page); err != nil {
			r.logger.Warn("publish page event", zap.String("url", page.URL), zap.Error(err))
		}
	}
}

// Dropped reports how many records were discarded due to a full buffer.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }
