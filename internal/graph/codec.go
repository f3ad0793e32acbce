package graph

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// snapshot is the serialized form of a Graph. Every Node and Edge field
// round-trips; the adjacency indexes are rebuilt on load.
type snapshot struct {
	NextID int    `json:"next_id"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// Encode writes the graph to w as gzip-compressed JSON. Nodes are emitted
// in id order so equal graphs produce equal bytes.
func Encode(w io.Writer, g *Graph) error {
	snap := snapshot{
		NextID: g.nextID,
		Nodes:  make([]Node, 0, len(g.nodes)),
		Edges:  g.edges,
	}
	for _, n := range g.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("encode graph: close gzip: %w", err)
	}
	return nil
}

// Decode reads a graph previously written by Encode.
func Decode(r io.Reader) (*Graph, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode graph: open gzip: %w", err)
	}
	defer zr.Close()

	var snap snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}

	g := New()
	for i := range snap.Nodes {
		n := snap.Nodes[i]
		g.nodes[n.ID] = &n
		if n.Visited {
			g.visited++
		}
		if n.ID >= g.nextID {
			g.nextID = n.ID + 1
		}
	}
	if snap.NextID > g.nextID {
		g.nextID = snap.NextID
	}
	for idx, e := range snap.Edges {
		if _, ok := g.nodes[e.Src]; !ok {
			return nil, fmt.Errorf("decode graph: edge %d references unknown source %d", idx, e.Src)
		}
		if _, ok := g.nodes[e.Dst]; !ok {
			return nil, fmt.Errorf("decode graph: edge %d references unknown target %d", idx, e.Dst)
		}
		g.edges = append(g.edges, e)
		g.out[e.Src] = append(g.out[e.Src], idx)
		g.in[e.Dst] = append(g.in[e.Dst], idx)
	}
	return g, nil
}
