package graph

import (
	"context"
	"strings"

	"github.com/dshills/flowgraph/graph/model"
)

// GeneratedText is the output of a text-generate node. It renders as Text.
type GeneratedText struct {
	Text         string `json:"text"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
}

// String returns the generated text.
func (g GeneratedText) String() string { return g.Text }

// GeneratedImage is the output of an image-generate node. It renders as URL,
// which is a data URL when the provider returned inline image bytes.
type GeneratedImage struct {
	URL           string `json:"url"`
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

// String returns the image URL.
func (g GeneratedImage) String() string { return g.URL }

type textGenerateEvaluator struct {
	models map[string]model.TextModel
}

func (e *textGenerateEvaluator) Evaluate(ctx context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*TextGenerateConfig)

	m, ok := e.models[cfg.Provider]
	if !ok {
		return nil, evalErr(CodeUnknownProvider, "no text model registered for provider "+cfg.Provider)
	}

	input := inv.Combined()
	prompt := Resolve(cfg.Prompt, input)
	if strings.TrimSpace(prompt) == "" {
		return nil, evalErr(CodeEmptyPrompt, "prompt is empty after template resolution")
	}

	resp, err := m.Generate(ctx, model.TextRequest{
		Model:       cfg.Model,
		System:      Resolve(cfg.SystemPrompt, input),
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = cfg.Model
	}
	return GeneratedText{
		Text:         resp.Text,
		Provider:     cfg.Provider,
		Model:        modelName,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

type imageGenerateEvaluator struct {
	models map[string]model.ImageModel
}

func (e *imageGenerateEvaluator) Evaluate(ctx context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*ImageGenerateConfig)

	m, ok := e.models[cfg.Provider]
	if !ok {
		return nil, evalErr(CodeUnknownProvider, "no image model registered for provider "+cfg.Provider)
	}

	prompt := Resolve(cfg.Prompt, inv.Combined())
	if strings.TrimSpace(prompt) == "" {
		return nil, evalErr(CodeEmptyPrompt, "prompt is empty after template resolution")
	}

	resp, err := m.GenerateImage(ctx, model.ImageRequest{
		Model:  cfg.Model,
		Prompt: prompt,
		Size:   cfg.Size,
	})
	if err != nil {
		return nil, err
	}

	url := resp.URL
	if url == "" && resp.B64JSON != "" {
		url = "data:image/png;base64," + resp.B64JSON
	}
	return GeneratedImage{
		URL:           url,
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		RevisedPrompt: resp.RevisedPrompt,
	}, nil
}
