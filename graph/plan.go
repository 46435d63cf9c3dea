package graph

// Plan validates g and returns its waves: wave 0 holds every node without
// incoming edges and wave k the nodes whose dependencies all sit in earlier
// waves. Within a wave nodes keep declaration order.
//
// Cycles are only legal through memory cells. When such a cycle blocks the
// layering, the first memory cell on it (in declaration order) is released:
// its unsatisfied incoming edges become feedback edges and are ignored for
// the run, so the cell reads what earlier runs stored.
func Plan(g *Graph) ([][]string, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	return buildPlan(g).waves, nil
}

type plan struct {
	waves    [][]string
	feedback map[*Edge]bool
}

func buildPlan(g *Graph) *plan {
	in, out := g.incoming(), g.outgoing()
	p := &plan{feedback: make(map[*Edge]bool)}

	indegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.ID] = len(in[n.ID])
	}

	done := make(map[string]bool, len(g.Nodes))
	for len(done) < len(g.Nodes) {
		var wave []string
		for _, n := range g.Nodes {
			if !done[n.ID] && indegree[n.ID] == 0 {
				wave = append(wave, n.ID)
			}
		}

		if len(wave) == 0 {
			cell := p.releasable(g, done, out)
			for _, e := range in[cell] {
				if !done[e.Source] && !p.feedback[e] {
					p.feedback[e] = true
					indegree[cell]--
				}
			}
			continue
		}

		for _, id := range wave {
			done[id] = true
			for _, e := range out[id] {
				if !p.feedback[e] {
					indegree[e.Target]--
				}
			}
		}
		p.waves = append(p.waves, wave)
	}
	return p
}

// releasable picks the node whose incoming edges are cut when layering
// stalls: the first pending memory cell that lies on a remaining cycle.
// Validation guarantees one exists; the first pending node is a fallback
// that keeps the loop finite.
func (p *plan) releasable(g *Graph, done map[string]bool, out map[string][]*Edge) string {
	fallback := ""
	for _, n := range g.Nodes {
		if done[n.ID] {
			continue
		}
		if fallback == "" {
			fallback = n.ID
		}
		if n.Type == NodeMemoryCell && p.reaches(n.ID, n.ID, done, out) {
			return n.ID
		}
	}
	return fallback
}

// reaches reports whether target is reachable from start over live edges
// between pending nodes.
func (p *plan) reaches(start, target string, done map[string]bool, out map[string][]*Edge) bool {
	seen := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range out[id] {
			if p.feedback[e] || done[e.Target] {
				continue
			}
			if e.Target == target {
				return true
			}
			if !seen[e.Target] {
				seen[e.Target] = true
				stack = append(stack, e.Target)
			}
		}
	}
	return false
}
