package graph

import (
	"context"

	"github.com/dshills/flowgraph/graph/model"
	"github.com/dshills/flowgraph/graph/tool"
)

// Invocation is everything an evaluator sees of one node evaluation.
type Invocation struct {
	RunID string
	Node  Node

	// Inputs are the completed upstream results feeding live edges, in edge
	// insertion order.
	Inputs []NodeResult

	// Memory is the run's view of the memory store. Writes become visible
	// after the current wave.
	Memory MemoryStore
}

// Combined folds the inputs into one value: a single input keeps its raw
// output, several are rendered and joined with a blank line.
func (inv Invocation) Combined() any {
	return combine(inv.Inputs)
}

// Evaluator computes the output of one node type.
//
// Evaluators return *EvalError for failures they classify themselves. Any
// other error is treated as a collaborator failure: it may be retried and is
// reported with PROVIDER_ERROR or FETCH_ERROR.
type Evaluator interface {
	Evaluate(ctx context.Context, inv Invocation) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, inv Invocation) (any, error)

// Evaluate calls f(ctx, inv).
func (f EvaluatorFunc) Evaluate(ctx context.Context, inv Invocation) (any, error) {
	return f(ctx, inv)
}

// Registry dispatches evaluation on node type.
type Registry map[NodeType]Evaluator

// SourceFetcher retrieves repository artifacts for source-fetch nodes.
// *tool.GitHubFetcher implements it.
type SourceFetcher interface {
	Fetch(ctx context.Context, req tool.FetchRequest) (tool.Artifacts, error)
}

// Collaborators are the external services evaluators delegate to. Models are
// keyed by the provider name used in node configs ("anthropic", "openai",
// "google", ...).
type Collaborators struct {
	Fetcher     SourceFetcher
	TextModels  map[string]model.TextModel
	ImageModels map[string]model.ImageModel
}

// NewRegistry returns a registry with an evaluator for every node type.
func NewRegistry(c Collaborators) Registry {
	return Registry{
		NodeSourceFetch:   &sourceFetchEvaluator{fetcher: c.Fetcher},
		NodeTextInput:     EvaluatorFunc(evaluateTextInput),
		NodeTextGenerate:  &textGenerateEvaluator{models: c.TextModels},
		NodeImageGenerate: &imageGenerateEvaluator{models: c.ImageModels},
		NodeCondition:     EvaluatorFunc(evaluateCondition),
		NodeMemoryCell:    EvaluatorFunc(evaluateMemoryCell),
		NodeMerge:         EvaluatorFunc(evaluateMerge),
		NodeOutput:        EvaluatorFunc(evaluateOutput),
	}
}
