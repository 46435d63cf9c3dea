package graph

import (
	"context"
	"strings"

	"github.com/dshills/flowgraph/graph/tool"
)

// sourceFetchEvaluator hands the node config to the fetcher. The repository
// reference is opaque here; the fetcher decides which forms it accepts and
// reports the rest with tool.ErrInvalidRepoURL.
type sourceFetchEvaluator struct {
	fetcher SourceFetcher
}

func (e *sourceFetchEvaluator) Evaluate(ctx context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*SourceFetchConfig)

	if strings.TrimSpace(cfg.RepoURL) == "" {
		return nil, &EvalError{Code: CodeInvalidURL, Message: "repository url is empty", Cause: ErrInvalidRepoURL}
	}
	if e.fetcher == nil {
		return nil, evalErr(CodeFetchError, "no source fetcher configured")
	}

	return e.fetcher.Fetch(ctx, tool.FetchRequest{
		RepoURL:   cfg.RepoURL,
		Branch:    cfg.Branch,
		Readme:    cfg.FetchReadme,
		Structure: cfg.FetchStructure,
		KeyFiles:  cfg.FetchKeyFiles,
	})
}
