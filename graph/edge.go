// Package graph provides the workflow graph model and the engine that executes it.
package graph

// Edge represents a directed data dependency between two nodes.
//
// The output of Source becomes one of Target's resolved inputs. Edges leaving a
// condition node may be tagged through SourceHandle:
//   - "true": fires only when the condition evaluated true.
//   - "false": fires only when the condition evaluated false.
//   - anything else: untagged, always fires.
//
// Animated is a cosmetic editor flag and is ignored by execution.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	Animated     bool   `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// Guard reports the branch an edge is tagged with. tagged is false for edges
// that fire regardless of a condition's result.
func (e Edge) Guard() (branch bool, tagged bool) {
	switch e.SourceHandle {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// Graph is the immutable input to a single run: nodes and edges in declaration
// order. Declaration order decides result ordering within a wave and the order
// in which multiple outputs are joined.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// incoming returns the edges targeting each node, in edge insertion order.
// Edges are identified by pointer since ids are not required to be unique.
func (g *Graph) incoming() map[string][]*Edge {
	in := make(map[string][]*Edge, len(g.Nodes))
	for i := range g.Edges {
		e := &g.Edges[i]
		in[e.Target] = append(in[e.Target], e)
	}
	return in
}

// outgoing returns the edges leaving each node, in edge insertion order.
func (g *Graph) outgoing() map[string][]*Edge {
	out := make(map[string][]*Edge, len(g.Nodes))
	for i := range g.Edges {
		e := &g.Edges[i]
		out[e.Source] = append(out[e.Source], e)
	}
	return out
}
