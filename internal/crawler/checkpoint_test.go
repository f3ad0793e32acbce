package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qfrontier/qfrontier/internal/graph"
	"github.com/qfrontier/qfrontier/internal/metrics"
)

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
	delay   time.Duration
	puts    atomic.Int32
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *memBlobStore) PutObject(ctx context.Context, path, contentType string, data []byte) (string, error) {
	s.puts.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = cp
	s.types[path] = contentType
	return "mem://" + path, nil
}

func (s *memBlobStore) object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

func (s *memBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	seed := g.AddNode("http://a.test/", "a.test")
	link := g.AddNode("http://a.test/one", "a.test")
	require.NoError(t, g.AddEdge(seed, link, map[string]float64{"bias": 1}))
	require.NoError(t, g.MarkVisited(seed, true, map[string]float64{"forms": 0.8}, 1))
	return g
}

func TestCheckpointerWriteManifest(t *testing.T) {
	t.Parallel()
	metrics.Init()

	store := newMemBlobStore()
	c := NewCheckpointer(store, fixedClock{t: time.Unix(1700000000, 0)}, "run-1", zap.NewNop())

	m := Manifest{
		CrawlID:    "run-1",
		Seeds:      []string{"http://a.test/"},
		Epsilon:    0.2,
		MaxDepth:   5,
		ScoreTypes: []string{"forms"},
		StartedAt:  time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, c.WriteManifest(context.Background(), m))

	data, ok := store.object("crawls/run-1/info.json")
	require.True(t, ok)
	require.Equal(t, "application/json", store.types["crawls/run-1/info.json"])

	var got Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, m.CrawlID, got.CrawlID)
	require.Equal(t, m.Seeds, got.Seeds)
	require.Equal(t, m.Epsilon, got.Epsilon)
	require.Equal(t, m.MaxDepth, got.MaxDepth)
	require.Equal(t, m.ScoreTypes, got.ScoreTypes)
	require.True(t, got.StartedAt.Equal(m.StartedAt))
}

func TestCheckpointerFinalSnapshot(t *testing.T) {
	t.Parallel()
	metrics.Init()

	store := newMemBlobStore()
	c := NewCheckpointer(store, fixedClock{t: time.Unix(1700000000, 0)}, "run-1", zap.NewNop())
	g := testGraph(t)

	c.Snapshot(g, true)

	data, ok := store.object("crawls/run-1/crawl.json.gz")
	require.True(t, ok, "final snapshot must land synchronously")
	require.Equal(t, "application/gzip", store.types["crawls/run-1/crawl.json.gz"])

	decoded, err := graph.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, g.NodeCount(), decoded.NodeCount())
	require.Equal(t, g.EdgeCount(), decoded.EdgeCount())
	require.Equal(t, g.VisitedCount(), decoded.VisitedCount())
}

func TestCheckpointerPeriodicSnapshotNaming(t *testing.T) {
	t.Parallel()
	metrics.Init()

	store := newMemBlobStore()
	c := NewCheckpointer(store, fixedClock{t: time.Unix(1700000123, 0)}, "run-1", zap.NewNop())

	c.Snapshot(testGraph(t), false)

	require.Eventually(t, func() bool {
		_, ok := store.object("crawls/run-1/crawl-1700000123.json.gz")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCheckpointerSkipsWhileUploadInFlight(t *testing.T) {
	t.Parallel()
	metrics.Init()

	store := newMemBlobStore()
	store.delay = 200 * time.Millisecond
	c := NewCheckpointer(store, fixedClock{t: time.Unix(1700000123, 0)}, "run-1", zap.NewNop())
	g := testGraph(t)

	c.Snapshot(g, false)
	c.Snapshot(g, false)

	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), store.puts.Load(), "the second snapshot is skipped, not queued")
}
