// Package anthropic adapts Anthropic's Messages API to model.TextModel.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/flowgraph/graph/model"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// messagesAPI is the slice of the SDK client the adapter uses, so tests can
// substitute it.
type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// TextModel implements model.TextModel for Claude models.
//
//	m, err := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"))
//	out, err := m.Generate(ctx, model.TextRequest{Model: "claude-sonnet-4-5", Prompt: "Hi"})
type TextModel struct {
	messages messagesAPI
}

// New creates a TextModel authenticated with apiKey. Extra SDK options, such
// as option.WithBaseURL, are passed through to the client.
func New(apiKey string, opts ...option.RequestOption) (*TextModel, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &TextModel{messages: &client.Messages}, nil
}

// Generate sends one user message, with the optional system prompt, and
// returns the concatenated text blocks of the reply.
func (m *TextModel) Generate(ctx context.Context, req model.TextRequest) (model.TextResponse, error) {
	if err := ctx.Err(); err != nil {
		return model.TextResponse{}, err
	}

	msg, err := m.messages.New(ctx, buildParams(req))
	if err != nil {
		return model.TextResponse{}, translateError(err)
	}
	return convertMessage(msg, req.Model), nil
}

func buildParams(req model.TextRequest) anthropic.MessageNewParams {
	name := req.Model
	if name == "" {
		name = DefaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(name),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

func convertMessage(msg *anthropic.Message, requested string) model.TextResponse {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	name := string(msg.Model)
	if name == "" {
		name = requested
	}
	return model.TextResponse{
		Text:         sb.String(),
		Model:        name,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
}

// translateError maps SDK API errors to model.ProviderError. Rate limits,
// overload and server errors are marked retryable.
func translateError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		return &model.ProviderError{
			Provider:  "anthropic",
			Status:    status,
			Message:   err.Error(),
			Retryable: status == 429 || status == 529 || status >= 500,
			Cause:     err,
		}
	}
	return err
}
