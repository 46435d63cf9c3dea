package graph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		graph *Graph
		want  [][]string
	}{
		{
			name: "chain",
			graph: &Graph{
				Nodes: []Node{textInput("a", ""), merge("b", ""), output("c")},
				Edges: []Edge{edge("a", "b"), edge("b", "c")},
			},
			want: [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name: "diamond keeps declaration order",
			graph: &Graph{
				Nodes: []Node{output("out"), merge("right", ""), merge("left", ""), textInput("src", "")},
				Edges: []Edge{edge("src", "left"), edge("src", "right"), edge("left", "out"), edge("right", "out")},
			},
			want: [][]string{{"src"}, {"right", "left"}, {"out"}},
		},
		{
			name: "independent roots share wave 0",
			graph: &Graph{
				Nodes: []Node{textInput("a", ""), textInput("b", ""), merge("m", "")},
				Edges: []Edge{edge("b", "m"), edge("a", "m")},
			},
			want: [][]string{{"a", "b"}, {"m"}},
		},
		{
			name: "long and short path",
			graph: &Graph{
				Nodes: []Node{textInput("a", ""), merge("b", ""), merge("c", "")},
				Edges: []Edge{edge("a", "b"), edge("b", "c"), edge("a", "c")},
			},
			want: [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:  "empty graph",
			graph: &Graph{},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.graph)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("waves mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlan_InvalidGraph(t *testing.T) {
	g := &Graph{
		Nodes: []Node{merge("a", ""), merge("b", "")},
		Edges: []Edge{edge("a", "b"), edge("b", "a")},
	}
	if _, err := Plan(g); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestPlan_MemoryCycleReleasesFirstCell(t *testing.T) {
	// counter -> gen -> store -> counter, where counter and store are memory cells.
	g := &Graph{
		Nodes: []Node{
			memCell("counter", "n", MemoryRead),
			merge("gen", ""),
			memCell("store", "n", MemoryWrite),
		},
		Edges: []Edge{edge("counter", "gen"), edge("gen", "store"), edge("store", "counter")},
	}
	p := buildPlan(g)
	if diff := cmp.Diff([][]string{{"counter"}, {"gen"}, {"store"}}, p.waves); diff != "" {
		t.Errorf("waves mismatch (-want +got):\n%s", diff)
	}
	if len(p.feedback) != 1 || !p.feedback[&g.Edges[2]] {
		t.Errorf("expected store->counter to be the only feedback edge, got %v", p.feedback)
	}
}

func TestPlan_MemorySelfLoop(t *testing.T) {
	g := &Graph{
		Nodes: []Node{memCell("m", "k", MemoryWrite), output("out")},
		Edges: []Edge{edge("m", "m"), edge("m", "out")},
	}
	got, err := Plan(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]string{{"m"}, {"out"}}, got); diff != "" {
		t.Errorf("waves mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_EveryNodeOnce(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			textInput("a", ""), textInput("b", ""), merge("c", ""), merge("d", ""),
			memCell("m", "k", MemoryWrite), output("o"),
		},
		Edges: []Edge{
			edge("a", "c"), edge("b", "c"), edge("c", "d"), edge("a", "d"),
			edge("d", "m"), edge("m", "c"), edge("d", "o"),
		},
	}
	waves, err := Plan(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]int{}
	for i, w := range waves {
		for _, id := range w {
			if _, dup := seen[id]; dup {
				t.Fatalf("node %s planned twice", id)
			}
			seen[id] = i
		}
	}
	if len(seen) != len(g.Nodes) {
		t.Fatalf("expected %d nodes planned, got %d", len(g.Nodes), len(seen))
	}
	p := buildPlan(g)
	for i := range g.Edges {
		e := &g.Edges[i]
		if p.feedback[e] {
			continue
		}
		if seen[e.Source] >= seen[e.Target] {
			t.Errorf("edge %s: source wave %d not before target wave %d", e.ID, seen[e.Source], seen[e.Target])
		}
	}
}
