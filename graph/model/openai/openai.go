// Package openai adapts the OpenAI Chat Completions and Images APIs to
// model.TextModel and model.ImageModel.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/flowgraph/graph/model"
)

const (
	DefaultModel      = "gpt-4o-mini"
	DefaultImageModel = "dall-e-3"
	DefaultImageSize  = "1024x1024"
)

type completionsAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type imagesAPI interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// Client implements both model.TextModel and model.ImageModel.
type Client struct {
	completions completionsAPI
	images      imagesAPI
}

// New creates a Client authenticated with apiKey.
func New(apiKey string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Client{completions: &client.Chat.Completions, images: &client.Images}, nil
}

// Generate runs a chat completion with an optional system message followed by
// the prompt as a user message.
func (c *Client) Generate(ctx context.Context, req model.TextRequest) (model.TextResponse, error) {
	if err := ctx.Err(); err != nil {
		return model.TextResponse{}, err
	}

	completion, err := c.completions.New(ctx, buildChatParams(req))
	if err != nil {
		return model.TextResponse{}, translateError(err)
	}
	if len(completion.Choices) == 0 {
		return model.TextResponse{}, &model.ProviderError{Provider: "openai", Message: "no choices in response"}
	}

	name := completion.Model
	if name == "" {
		name = req.Model
	}
	return model.TextResponse{
		Text:         completion.Choices[0].Message.Content,
		Model:        name,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

func buildChatParams(req model.TextRequest) openai.ChatCompletionNewParams {
	name := req.Model
	if name == "" {
		name = DefaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(req.System)},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(req.Prompt)},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(name),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// GenerateImage creates one image and returns its URL or base64 payload.
func (c *Client) GenerateImage(ctx context.Context, req model.ImageRequest) (model.ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return model.ImageResponse{}, err
	}

	resp, err := c.images.Generate(ctx, buildImageParams(req))
	if err != nil {
		return model.ImageResponse{}, translateError(err)
	}
	if len(resp.Data) == 0 {
		return model.ImageResponse{}, &model.ProviderError{Provider: "openai", Message: "no image in response"}
	}
	img := resp.Data[0]
	return model.ImageResponse{URL: img.URL, B64JSON: img.B64JSON, RevisedPrompt: img.RevisedPrompt}, nil
}

func buildImageParams(req model.ImageRequest) openai.ImageGenerateParams {
	name := req.Model
	if name == "" {
		name = DefaultImageModel
	}
	size := req.Size
	if size == "" {
		size = DefaultImageSize
	}
	return openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(name),
		Size:   openai.ImageGenerateParamsSize(size),
	}
}

// translateError maps SDK API errors to model.ProviderError.
func translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		return &model.ProviderError{
			Provider:  "openai",
			Status:    status,
			Message:   err.Error(),
			Retryable: status == 429 || status >= 500,
			Cause:     err,
		}
	}
	return err
}
