// Package google adapts Gemini models (generative-ai-go) to model.TextModel.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/flowgraph/graph/model"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gemini-2.5-flash"

// contentAPI issues one GenerateContent call. The default implementation opens
// a genai client per call; tests replace it.
type contentAPI interface {
	generate(ctx context.Context, req model.TextRequest) (*genai.GenerateContentResponse, error)
}

// TextModel implements model.TextModel for Gemini.
type TextModel struct {
	client contentAPI
}

// New creates a TextModel authenticated with apiKey.
func New(apiKey string) (*TextModel, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	return &TextModel{client: &sdkClient{apiKey: apiKey}}, nil
}

// Generate sends req to Gemini and returns the first candidate's text with
// its token usage.
func (m *TextModel) Generate(ctx context.Context, req model.TextRequest) (model.TextResponse, error) {
	if err := ctx.Err(); err != nil {
		return model.TextResponse{}, err
	}
	resp, err := m.client.generate(ctx, req)
	if err != nil {
		return model.TextResponse{}, err
	}
	out, err := convertResponse(resp)
	if err != nil {
		return model.TextResponse{}, err
	}
	out.Model = req.Model
	if out.Model == "" {
		out.Model = DefaultModel
	}
	return out, nil
}

type sdkClient struct {
	apiKey string
}

func (c *sdkClient) generate(ctx context.Context, req model.TextRequest) (*genai.GenerateContentResponse, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	defer func() { _ = client.Close() }()

	name := req.Model
	if name == "" {
		name = DefaultModel
	}
	gm := client.GenerativeModel(name)
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature != nil {
		gm.SetTemperature(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, &model.ProviderError{Provider: "google", Message: err.Error(), Cause: err}
	}
	return resp, nil
}

// ErrBlocked is returned when Gemini withholds the answer, typically because
// of a safety filter.
var ErrBlocked = errors.New("google: response blocked")

func convertResponse(resp *genai.GenerateContentResponse) (model.TextResponse, error) {
	var out model.TextResponse
	if resp == nil {
		return out, nil
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return out, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
		}
		return out, nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return out, fmt.Errorf("%w: safety", ErrBlocked)
	}
	if candidate.Content == nil {
		return out, nil
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	out.Text = strings.Join(parts, "\n")
	return out, nil
}
