package graph

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNode_UnmarshalJSON(t *testing.T) {
	data := `{
		"nodes": [
			{"id": "fetch", "type": "source-fetch", "config": {"repoUrl": "acme/widgets", "fetchReadme": true, "label": "ignored"}},
			{"id": "gen", "type": "text-generate", "config": {"provider": "openai", "model": "gpt-4o", "prompt": "Summarize: {{input}}", "temperature": 0.2}},
			{"id": "join", "type": "merge", "config": {"separator": ""}},
			{"id": "odd", "type": "webhook", "config": {"url": "x"}}
		],
		"edges": [{"id": "e1", "source": "fetch", "target": "gen", "animated": true}]
	}`

	var g Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	fetch, ok := g.Nodes[0].Config.(*SourceFetchConfig)
	if !ok || fetch.RepoURL != "acme/widgets" || !fetch.FetchReadme {
		t.Errorf("unexpected fetch config %#v", g.Nodes[0].Config)
	}

	gen := g.Nodes[1].Config.(*TextGenerateConfig)
	if gen.Temperature == nil || *gen.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", gen.Temperature)
	}

	join := g.Nodes[2].Config.(*MergeConfig)
	if join.Separator == nil || join.separator() != "" {
		t.Error("explicit empty separator must be kept")
	}

	if g.Nodes[3].Config != nil {
		t.Errorf("unknown type must decode with nil config, got %#v", g.Nodes[3].Config)
	}
	if !g.Edges[0].Animated {
		t.Error("expected animated edge")
	}
}

func TestNode_MarshalJSONShape(t *testing.T) {
	n := NewNode("out", &OutputConfig{Kind: OutputMarkdown, Filename: "report.md"})
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"out","type":"output","config":{"kind":"markdown","filename":"report.md"}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestNode_UnmarshalYAML(t *testing.T) {
	data := `
nodes:
  - id: cond
    type: condition
    config:
      left: readme
      operator: contains
      value: error
  - id: mem
    type: memory-cell
    config:
      key: last
      operation: read
      dataType: number
      defaultValue: "0"
edges:
  - id: e1
    source: cond
    target: mem
    sourceHandle: "true"
`
	var g Graph
	if err := yaml.Unmarshal([]byte(data), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cond := g.Nodes[0].Config.(*ConditionConfig)
	if cond.Left != "readme" || cond.Operator != OpContains || cond.Value != "error" {
		t.Errorf("unexpected condition config %#v", cond)
	}
	mem := g.Nodes[1].Config.(*MemoryCellConfig)
	if mem.DataType != DataNumber || mem.DefaultValue != "0" {
		t.Errorf("unexpected memory config %#v", mem)
	}
	if branch, tagged := g.Edges[0].Guard(); !tagged || !branch {
		t.Errorf("expected true-tagged edge, got %v %v", branch, tagged)
	}
	if err := Validate(&g); err != nil {
		t.Errorf("decoded graph should validate: %v", err)
	}
}

func TestEdge_Guard(t *testing.T) {
	tests := []struct {
		handle         string
		branch, tagged bool
	}{
		{"true", true, true},
		{"false", false, true},
		{"", false, false},
		{"output-1", false, false},
	}
	for _, tt := range tests {
		branch, tagged := Edge{SourceHandle: tt.handle}.Guard()
		if branch != tt.branch || tagged != tt.tagged {
			t.Errorf("handle %q: expected (%v,%v), got (%v,%v)", tt.handle, tt.branch, tt.tagged, branch, tagged)
		}
	}
}
