// Package graph maintains the crawl graph: one node per fetch attempt and
// one directed edge per followed link. It is pure bookkeeping; reward and
// priority logic live elsewhere. The graph only grows, nodes are never
// removed during a crawl.
//
// The graph is owned by the orchestrator loop and is not safe for
// concurrent use.
package graph

import "fmt"

// Node is a single fetch attempt. A node is created unvisited when a link
// is discovered (or a seed is loaded) and mutated exactly once when its
// fetch completes.
type Node struct {
	ID      int                `json:"id"`
	URL     string             `json:"url"`
	Domain  string             `json:"domain"`
	Visited bool               `json:"visited"`
	OK      bool               `json:"ok"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	// ResponseSeq is the 1-based order in which the response was
	// processed; zero until the fetch completes.
	ResponseSeq int `json:"response_seq,omitempty"`
}

// Edge is a directed link between two nodes. Link holds the feature
// mapping describing how the target was reached (anchor text tokens,
// position, attributes).
type Edge struct {
	Src  int                `json:"src"`
	Dst  int                `json:"dst"`
	Link map[string]float64 `json:"link,omitempty"`
}

// Graph stores nodes and edges in arenas keyed by stable integer ids.
// Adjacency is kept as edge-index lists so lookups on the hot path are
// point reads, never scans.
type Graph struct {
	nodes map[int]*Node
	edges []Edge
	in    map[int][]int // node id -> indexes into edges where Dst == id
	out   map[int][]int // node id -> indexes into edges where Src == id

	nextID  int
	visited int
}

// New returns an empty graph. Node ids start at 1 so that zero can mean
// "no node" in fetch metadata.
func New() *Graph {
	return &Graph{
		nodes:  make(map[int]*Node),
		in:     make(map[int][]int),
		out:    make(map[int][]int),
		nextID: 1,
	}
}

// AddNode creates an unvisited node for url and returns its id.
func (g *Graph) AddNode(url, domain string) int {
	id := g.nextID
	g.nextID++
	g.nodes[id] = &Node{ID: id, URL: url, Domain: domain}
	return id
}

// AddEdge records a directed link from src to dst. Both nodes must exist.
func (g *Graph) AddEdge(src, dst int, link map[string]float64) error {
	if _, ok := g.nodes[src]; !ok {
		return fmt.Errorf("add edge: unknown source node %d", src)
	}
	if _, ok := g.nodes[dst]; !ok {
		return fmt.Errorf("add edge: unknown target node %d", dst)
	}
	idx := len(g.edges)
	g.edges = append(g.edges, Edge{Src: src, Dst: dst, Link: copyFeatures(link)})
	g.out[src] = append(g.out[src], idx)
	g.in[dst] = append(g.in[dst], idx)
	return nil
}

// MarkVisited records the outcome of the node's fetch: ok, the observed
// scores, and the response sequence number. Scores are copied. Calling it
// for an unknown id is an error the caller is expected to log and skip.
func (g *Graph) MarkVisited(id int, ok bool, scores map[string]float64, seq int) error {
	n, found := g.nodes[id]
	if !found {
		return fmt.Errorf("mark visited: unknown node %d", id)
	}
	if !n.Visited {
		g.visited++
	}
	n.Visited = true
	n.OK = ok
	n.Scores = copyFeatures(scores)
	n.ResponseSeq = seq
	return nil
}

// Node returns a copy of the node with the given id. Mutations go through
// MarkVisited, never through the returned value.
func (g *Graph) Node(id int) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	c := *n
	c.Scores = copyFeatures(n.Scores)
	return c, true
}

// IncomingLink returns the link features of the edge that discovered the
// node. Seed nodes have none. When several incoming edges exist the first
// recorded one wins, matching the first-link-wins dedup policy.
func (g *Graph) IncomingLink(id int) (map[string]float64, bool) {
	idxs := g.in[id]
	if len(idxs) == 0 {
		return nil, false
	}
	return copyFeatures(g.edges[idxs[0]].Link), true
}

// Predecessors returns the ids of nodes with an edge into id.
func (g *Graph) Predecessors(id int) []int {
	idxs := g.in[id]
	if len(idxs) == 0 {
		return nil
	}
	parents := make([]int, 0, len(idxs))
	for _, i := range idxs {
		parents = append(parents, g.edges[i].Src)
	}
	return parents
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// VisitedCount returns the number of nodes whose fetch has completed.
func (g *Graph) VisitedCount() int { return g.visited }

// EachNode calls fn with a copy of every node, in unspecified order. Used
// by snapshotting and stats, not on the per-response path.
func (g *Graph) EachNode(fn func(Node)) {
	for _, n := range g.nodes {
		c := *n
		c.Scores = copyFeatures(n.Scores)
		fn(c)
	}
}

func copyFeatures(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
