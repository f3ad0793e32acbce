package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qfrontier/qfrontier/internal/graph"
	"github.com/qfrontier/qfrontier/internal/metrics"
)

const (
	checkpointTimeout  = 2 * time.Minute
	finalObjectName    = "crawl.json.gz"
	manifestObjectName = "info.json"
)

// Manifest describes one crawl run. It is written once at startup so a
// bucket listing explains what each run directory holds.
type Manifest struct {
	CrawlID    string    `json:"crawl_id"`
	Seeds      []string  `json:"seeds"`
	Epsilon    float64   `json:"epsilon"`
	MaxDepth   int       `json:"max_depth"`
	ScoreTypes []string  `json:"score_types"`
	StartedAt  time.Time `json:"started_at"`
}

// Checkpointer writes periodic graph snapshots to a blob store. Encoding
// always happens on the caller's goroutine; only the upload runs in the
// background, and a new snapshot is skipped while the previous upload is
// still going.
type Checkpointer struct {
	blob    BlobStore
	clock   Clock
	logger  *zap.Logger
	crawlID string
	busy    atomic.Bool
}

// NewCheckpointer builds a checkpointer rooted at crawls/<crawlID>/ in
// the store.
func NewCheckpointer(blob BlobStore, clock Clock, crawlID string, logger *zap.Logger) *Checkpointer {
	return &Checkpointer{blob: blob, clock: clock, logger: logger, crawlID: crawlID}
}

// WriteManifest uploads the run manifest.
func (c *Checkpointer) WriteManifest(ctx context.Context, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	uri, err := c.blob.PutObject(ctx, c.objectPath(manifestObjectName), "application/json", data)
	if err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	c.logger.Info("wrote run manifest", zap.String("uri", uri))
	return nil
}

// Snapshot encodes the graph and uploads it. Periodic snapshots upload
// asynchronously and are skipped when one is already in flight; the
// final snapshot always runs, synchronously, under its own deadline.
func (c *Checkpointer) Snapshot(g *graph.Graph, final bool) {
	if !final && !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("checkpoint skipped, upload still in progress")
		return
	}

	var buf bytes.Buffer
	if err := graph.Encode(&buf, g); err != nil {
		c.logger.Error("encode checkpoint", zap.Error(err))
		metrics.ObserveCheckpoint(0, err)
		if !final {
			c.busy.Store(false)
		}
		return
	}

	name := fmt.Sprintf("crawl-%d.json.gz", c.clock.Now().Unix())
	if final {
		name = finalObjectName
	}
	nodes := g.NodeCount()

	if final {
		c.upload(name, buf.Bytes(), nodes)
		return
	}
	go func() {
		defer c.busy.Store(false)
		c.upload(name, buf.Bytes(), nodes)
	}()
}

func (c *Checkpointer) upload(name string, data []byte, nodes int) {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	start := time.Now()
	uri, err := c.blob.PutObject(ctx, c.objectPath(name), "application/gzip", data)
	elapsed := time.Since(start)
	metrics.ObserveCheckpoint(elapsed, err)
	if err != nil {
		c.logger.Error("upload checkpoint", zap.String("object", name), zap.Error(err))
		return
	}
	c.logger.Info("wrote checkpoint",
		zap.String("uri", uri),
		zap.Int("nodes", nodes),
		zap.Int("bytes", len(data)),
		zap.Duration("took", elapsed),
	)
}

func (c *Checkpointer) objectPath(name string) string {
	return path.Join("crawls", c.crawlID, name)
}
