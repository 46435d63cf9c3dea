package graph

// Validate checks the structure of g without mutating it.
//
// Checks run in a fixed order and the first failure is returned:
//  1. node ids are unique
//  2. every edge endpoint resolves to a node (DanglingEdge)
//  3. the graph restricted to non-memory-cell nodes is acyclic (CycleDetected)
//  4. every node's config belongs to its type and has its required fields
//     (InvalidNodeConfig)
//
// The returned error is always a *GraphError.
func Validate(g *Graph) error {
	ids := make(map[string]NodeType, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := ids[n.ID]; dup {
			return &GraphError{Kind: DuplicateNode, NodeID: n.ID}
		}
		ids[n.ID] = n.Type
	}

	for _, e := range g.Edges {
		if _, ok := ids[e.Source]; !ok {
			return &GraphError{Kind: DanglingEdge, EdgeID: e.ID, NodeID: e.Source}
		}
		if _, ok := ids[e.Target]; !ok {
			return &GraphError{Kind: DanglingEdge, EdgeID: e.ID, NodeID: e.Target}
		}
	}

	if path := findCycle(g, func(id string) bool { return ids[id] != NodeMemoryCell }); path != nil {
		return &GraphError{Kind: CycleDetected, Path: path}
	}

	for _, n := range g.Nodes {
		if field := configProblem(n); field != "" {
			return &GraphError{Kind: InvalidNodeConfig, NodeID: n.ID, Field: field}
		}
	}
	return nil
}

func configProblem(n Node) string {
	if !n.Type.Known() {
		return "type"
	}
	if n.Config == nil || n.Config.NodeType() != n.Type {
		return "config"
	}
	return n.Config.missingField()
}

const (
	white = iota
	grey
	black
)

// findCycle runs a three-colour DFS over the nodes accepted by include and
// returns the first cycle found as a closed path, or nil. Nodes are visited in
// declaration order so the reported path is deterministic.
func findCycle(g *Graph, include func(id string) bool) []string {
	out := g.outgoing()
	color := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = grey
		stack = append(stack, id)
		for _, e := range out[id] {
			if !include(e.Target) {
				continue
			}
			switch color[e.Target] {
			case grey:
				for i, s := range stack {
					if s == e.Target {
						path := append([]string(nil), stack[i:]...)
						return append(path, e.Target)
					}
				}
			case white:
				if p := visit(e.Target); p != nil {
					return p
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, n := range g.Nodes {
		if include(n.ID) && color[n.ID] == white {
			if p := visit(n.ID); p != nil {
				return p
			}
		}
	}
	return nil
}
