package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dshills/flowgraph/graph/emit"
	"github.com/dshills/flowgraph/graph/model"
	"github.com/dshills/flowgraph/graph/tool"
)

func textInput(id, text string) Node {
	return NewNode(id, &TextInputConfig{Text: text})
}

func merge(id, sep string) Node {
	return NewNode(id, &MergeConfig{Separator: &sep})
}

func output(id string) Node {
	return NewNode(id, &OutputConfig{Kind: OutputText})
}

func condition(id, op, value string) Node {
	return NewNode(id, &ConditionConfig{Operator: op, Value: value})
}

func memCell(id, key, op string) Node {
	return NewNode(id, &MemoryCellConfig{Key: key, Operation: op})
}

func generate(id, provider, prompt string) Node {
	return NewNode(id, &TextGenerateConfig{Provider: provider, Model: "test-model", Prompt: prompt})
}

func edge(src, dst string) Edge {
	return Edge{ID: src + "->" + dst, Source: src, Target: dst}
}

func guarded(src, dst, handle string) Edge {
	return Edge{ID: src + "-" + handle + "->" + dst, Source: src, Target: dst, SourceHandle: handle}
}

type fakeFetcher struct {
	artifacts tool.Artifacts
	err       error

	mu    sync.Mutex
	calls []tool.FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req tool.FetchRequest) (tool.Artifacts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.artifacts, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// echoModel answers every prompt with "echo: <prompt>".
func echoModel() *model.MockTextModel {
	return &model.MockTextModel{Respond: func(req model.TextRequest) (model.TextResponse, error) {
		return model.TextResponse{Text: "echo: " + req.Prompt, Model: req.Model, InputTokens: 10, OutputTokens: 5}, nil
	}}
}

func newTestEngine(t *testing.T, c Collaborators, opts ...Option) (*Engine, *emit.BufferedEmitter) {
	t.Helper()
	emitter := emit.NewBufferedEmitter()
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	})}, opts...)
	e, err := New(NewRegistry(c), NewMemoryMap(), emitter, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, emitter
}
