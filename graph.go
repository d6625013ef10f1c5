package storygraph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node), Edges: []Edge{}}
}

// newNodeID tags the id with the node type and creation time so ids stay
// readable in stored documents. The uuid suffix keeps nodes created in the
// same millisecond apart.
func newNodeID(t NodeType) string {
	return fmt.Sprintf("%s_%d_%s", t, time.Now().UnixMilli(), uuid.NewString()[:8])
}

func newEdgeID() string {
	return "e_" + uuid.NewString()
}

// CreateNode adds an idle node of type t at pos.
func (g *Graph) CreateNode(t NodeType, pos Position) (*Node, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}
	n := &Node{
		ID:           newNodeID(t),
		Type:         t,
		X:            pos.X,
		Y:            pos.Y,
		Status:       StatusIdle,
		Data:         map[string]any{},
		OutputImages: []string{},
		OutputVideos: []string{},
	}
	g.Nodes[n.ID] = n
	return n, nil
}

// DeleteNode removes the node and every edge touching it.
// Reports whether the node existed.
func (g *Graph) DeleteNode(id string) bool {
	_, ok := g.Nodes[id]
	delete(g.Nodes, id)

	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == id || e.Target == id {
			ok = true
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	return ok
}

// CreateEdge connects source.srcPort to target.dstPort.
//
// The request is refused (ok == false, graph unchanged) when it would be a
// self-loop, when source and target are already connected, when either node
// is missing, when a port is not part of the node type's schema, or when the
// target input port is already fed by another edge.
func (g *Graph) CreateEdge(source, target string, srcPort, dstPort Port) (Edge, bool) {
	if source == target {
		return Edge{}, false
	}
	src, ok := g.Nodes[source]
	if !ok {
		return Edge{}, false
	}
	dst, ok := g.Nodes[target]
	if !ok {
		return Edge{}, false
	}
	if !schemas[src.Type].HasOutput(srcPort) || !schemas[dst.Type].HasInput(dstPort) {
		return Edge{}, false
	}
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return Edge{}, false
		}
		if e.Target == target && e.DstPort == dstPort {
			return Edge{}, false
		}
	}

	e := Edge{ID: newEdgeID(), Source: source, Target: target, SrcPort: srcPort, DstPort: dstPort}
	g.Edges = append(g.Edges, e)
	return e, true
}

// DeleteEdge removes the edge with the given id. Reports whether it existed.
func (g *Graph) DeleteEdge(id string) bool {
	for i, e := range g.Edges {
		if e.ID == id {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// ListEdges returns a copy of the edges in insertion order.
func (g *Graph) ListEdges() []Edge {
	return append([]Edge{}, g.Edges...)
}

// EdgesFrom returns the edges whose source is id.
func (g *Graph) EdgesFrom(id string) []Edge {
	out := []Edge{}
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns the edges whose target is id. An empty port matches
// every input port.
func (g *Graph) EdgesTo(id string, port Port) []Edge {
	out := []Edge{}
	for _, e := range g.Edges {
		if e.Target == id && (port == "" || e.DstPort == port) {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes: make(map[string]*Node, len(g.Nodes)),
		Edges: append([]Edge{}, g.Edges...),
	}
	for id, n := range g.Nodes {
		c.Nodes[id] = n.Clone()
	}
	return c
}
