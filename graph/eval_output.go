package graph

import (
	"context"
	"encoding/json"
	"strings"
)

func evaluateTextInput(_ context.Context, inv Invocation) (any, error) {
	return inv.Node.Config.(*TextInputConfig).Text, nil
}

func evaluateMerge(_ context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*MergeConfig)
	parts := make([]string, len(inv.Inputs))
	for i, in := range inv.Inputs {
		parts[i] = Render(in.Output)
	}
	return strings.Join(parts, cfg.separator()), nil
}

// OutputArtifact is the rendered result of an output node. Its Content is
// what the run's final output is assembled from.
type OutputArtifact struct {
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content"`
}

// String returns the artifact content.
func (o OutputArtifact) String() string { return o.Content }

func evaluateOutput(_ context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*OutputConfig)

	kind := cfg.Kind
	if kind == "" {
		kind = OutputText
	}

	var content string
	switch {
	case cfg.Template != "":
		content = Resolve(cfg.Template, inv.Combined())
	case len(inv.Inputs) > 1:
		return nil, evalErr(CodeAmbiguousInput, "output has more than one unmerged input and no template")
	case kind == OutputJSON:
		content = renderJSON(inv.Combined())
	default:
		content = Render(inv.Combined())
	}

	return OutputArtifact{Kind: kind, Filename: cfg.Filename, Content: content}, nil
}

// renderJSON pretty-prints v. Strings holding JSON are reindented; other
// strings are encoded as JSON strings.
func renderJSON(v any) string {
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			v = decoded
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Render(v)
	}
	return string(data)
}
