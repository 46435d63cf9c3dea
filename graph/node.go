package graph

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeType tags the variant of a node. The set is closed.
type NodeType string

const (
	NodeSourceFetch   NodeType = "source-fetch"
	NodeTextInput     NodeType = "text-input"
	NodeTextGenerate  NodeType = "text-generate"
	NodeImageGenerate NodeType = "image-generate"
	NodeCondition     NodeType = "condition"
	NodeMemoryCell    NodeType = "memory-cell"
	NodeMerge         NodeType = "merge"
	NodeOutput        NodeType = "output"
)

// NodeTypes lists every supported node type.
var NodeTypes = []NodeType{
	NodeSourceFetch, NodeTextInput, NodeTextGenerate, NodeImageGenerate,
	NodeCondition, NodeMemoryCell, NodeMerge, NodeOutput,
}

// Known reports whether t is one of the supported node types.
func (t NodeType) Known() bool {
	for _, k := range NodeTypes {
		if t == k {
			return true
		}
	}
	return false
}

// External reports whether nodes of this type call an external collaborator.
// Only these nodes are subject to timeouts and retries.
func (t NodeType) External() bool {
	return t == NodeSourceFetch || t == NodeTextGenerate || t == NodeImageGenerate
}

// Node is a typed processing step. The concrete type of Config is decided by
// Type; a node never carries another type's configuration.
type Node struct {
	ID     string
	Type   NodeType
	Config NodeConfig
}

// NewNode builds a node whose type is taken from its configuration.
func NewNode(id string, cfg NodeConfig) Node {
	return Node{ID: id, Type: cfg.NodeType(), Config: cfg}
}

// NodeConfig is implemented by every per-type configuration record.
type NodeConfig interface {
	// NodeType returns the node type this configuration belongs to.
	NodeType() NodeType

	// missingField returns the first required field left empty, or "".
	missingField() string
}

// newConfig returns an empty configuration for t, or nil for unknown types.
func newConfig(t NodeType) NodeConfig {
	switch t {
	case NodeSourceFetch:
		return &SourceFetchConfig{}
	case NodeTextInput:
		return &TextInputConfig{}
	case NodeTextGenerate:
		return &TextGenerateConfig{}
	case NodeImageGenerate:
		return &ImageGenerateConfig{}
	case NodeCondition:
		return &ConditionConfig{}
	case NodeMemoryCell:
		return &MemoryCellConfig{}
	case NodeMerge:
		return &MergeConfig{}
	case NodeOutput:
		return &OutputConfig{}
	}
	return nil
}

type nodeJSON struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes the config payload into the struct selected by type.
// Unknown types decode with a nil Config and are reported by Validate.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID, n.Type, n.Config = raw.ID, raw.Type, nil

	cfg := newConfig(raw.Type)
	if cfg == nil {
		return nil
	}
	if len(raw.Config) > 0 && string(raw.Config) != "null" {
		if err := json.Unmarshal(raw.Config, cfg); err != nil {
			return fmt.Errorf("node %s: decode %s config: %w", raw.ID, raw.Type, err)
		}
	}
	n.Config = cfg
	return nil
}

// MarshalJSON writes the node in the same shape UnmarshalJSON reads.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string     `json:"id"`
		Type   NodeType   `json:"type"`
		Config NodeConfig `json:"config,omitempty"`
	}{n.ID, n.Type, n.Config})
}

// UnmarshalYAML mirrors UnmarshalJSON for workflow files.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ID     string    `yaml:"id"`
		Type   NodeType  `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	n.ID, n.Type, n.Config = raw.ID, raw.Type, nil

	cfg := newConfig(raw.Type)
	if cfg == nil {
		return nil
	}
	if raw.Config.Kind != 0 {
		if err := raw.Config.Decode(cfg); err != nil {
			return fmt.Errorf("node %s: decode %s config: %w", raw.ID, raw.Type, err)
		}
	}
	n.Config = cfg
	return nil
}

// SourceFetchConfig selects which artifacts to retrieve from a repository.
type SourceFetchConfig struct {
	RepoURL        string `json:"repoUrl" yaml:"repoUrl"`
	Branch         string `json:"branch,omitempty" yaml:"branch,omitempty"`
	FetchReadme    bool   `json:"fetchReadme,omitempty" yaml:"fetchReadme,omitempty"`
	FetchStructure bool   `json:"fetchStructure,omitempty" yaml:"fetchStructure,omitempty"`
	FetchKeyFiles  bool   `json:"fetchKeyFiles,omitempty" yaml:"fetchKeyFiles,omitempty"`
}

func (*SourceFetchConfig) NodeType() NodeType { return NodeSourceFetch }

func (c *SourceFetchConfig) missingField() string {
	if c.RepoURL == "" {
		return "repoUrl"
	}
	return ""
}

// TextInputConfig holds a literal. An empty literal is valid.
type TextInputConfig struct {
	Text string `json:"text" yaml:"text"`
}

func (*TextInputConfig) NodeType() NodeType { return NodeTextInput }
func (*TextInputConfig) missingField() string { return "" }

// TextGenerateConfig configures a call to a text generation provider.
// Temperature is optional; nil leaves the provider default in place.
type TextGenerateConfig struct {
	Provider     string   `json:"provider" yaml:"provider"`
	Model        string   `json:"model" yaml:"model"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	SystemPrompt string   `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int      `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

func (*TextGenerateConfig) NodeType() NodeType { return NodeTextGenerate }

func (c *TextGenerateConfig) missingField() string {
	switch {
	case c.Provider == "":
		return "provider"
	case c.Model == "":
		return "model"
	case c.Prompt == "":
		return "prompt"
	}
	return ""
}

// ImageGenerateConfig configures a call to an image generation provider.
type ImageGenerateConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	Size     string `json:"size,omitempty" yaml:"size,omitempty"`
}

func (*ImageGenerateConfig) NodeType() NodeType { return NodeImageGenerate }

func (c *ImageGenerateConfig) missingField() string {
	switch {
	case c.Provider == "":
		return "provider"
	case c.Prompt == "":
		return "prompt"
	}
	return ""
}

// ConditionConfig compares the upstream input against Value.
//
// Left optionally narrows the input: it is a gjson path evaluated against the
// JSON form of the input, e.g. "readme" for a source-fetch result. When empty
// the whole rendered input is compared.
type ConditionConfig struct {
	Left     string `json:"left,omitempty" yaml:"left,omitempty"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
}

func (*ConditionConfig) NodeType() NodeType { return NodeCondition }

func (c *ConditionConfig) missingField() string {
	if c.Operator == "" {
		return "operator"
	}
	return ""
}

// Memory cell operations.
const (
	MemoryRead  = "read"
	MemoryWrite = "write"
)

// MemoryCellConfig reads or writes one key of the memory store.
// DataType is one of string (default), number, boolean or json.
type MemoryCellConfig struct {
	Key          string `json:"key" yaml:"key"`
	Operation    string `json:"operation" yaml:"operation"`
	DataType     string `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

func (*MemoryCellConfig) NodeType() NodeType { return NodeMemoryCell }

func (c *MemoryCellConfig) missingField() string {
	switch {
	case c.Key == "":
		return "key"
	case c.Operation != MemoryRead && c.Operation != MemoryWrite:
		return "operation"
	}
	return ""
}

// MergeConfig joins all inputs. A nil Separator means "\n"; an explicit empty
// string concatenates without separator.
type MergeConfig struct {
	Separator *string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

func (*MergeConfig) NodeType() NodeType { return NodeMerge }
func (*MergeConfig) missingField() string { return "" }

func (c *MergeConfig) separator() string {
	if c.Separator == nil {
		return "\n"
	}
	return *c.Separator
}

// Output kinds.
const (
	OutputText     = "text"
	OutputDocument = "document"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// OutputConfig renders the final artifact of a branch.
type OutputConfig struct {
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Template string `json:"template,omitempty" yaml:"template,omitempty"`
}

func (*OutputConfig) NodeType() NodeType { return NodeOutput }
func (*OutputConfig) missingField() string { return "" }
