package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/graph/store"
)

// WorkflowFile is the on-disk form of a workflow.
//
//	name: summarize
//	nodes:
//	  - id: fetch
//	    type: source-fetch
//	    config: {repoUrl: "owner/repo", fetchReadme: true}
//	edges:
//	  - {id: e1, source: fetch, target: generate}
type WorkflowFile struct {
	ID    string       `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string       `json:"name" yaml:"name"`
	Nodes []graph.Node `json:"nodes" yaml:"nodes"`
	Edges []graph.Edge `json:"edges" yaml:"edges"`
}

// Loader reads workflow files from any location afs understands: local
// paths, file://, mem://, s3:// or gs:// URLs.
type Loader struct {
	fs afs.Service
}

// NewLoader returns a Loader on the default afs service.
func NewLoader() *Loader {
	return &Loader{fs: afs.New()}
}

// Load downloads and decodes one workflow file. Files ending in .json are
// decoded as JSON, everything else as YAML. The graph is not validated.
func (l *Loader) Load(ctx context.Context, location string) (*store.Workflow, error) {
	URL, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}
	data, err := l.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", location, err)
	}

	wf, err := DecodeWorkflow(data, path.Ext(URL))
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", location, err)
	}
	if wf.Name == "" {
		wf.Name = strings.TrimSuffix(path.Base(URL), path.Ext(URL))
	}
	return wf, nil
}

// DecodeWorkflow decodes a workflow document; ext selects JSON (".json") or
// YAML (anything else).
func DecodeWorkflow(data []byte, ext string) (*store.Workflow, error) {
	var file WorkflowFile
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return &store.Workflow{ID: file.ID, Name: file.Name, Nodes: file.Nodes, Edges: file.Edges}, nil
}

// normalizeLocation turns a plain path into an absolute file URL and leaves
// URLs with a scheme untouched.
func normalizeLocation(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("workflow location is empty")
	}
	if strings.Contains(location, "://") {
		return location, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", location, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
