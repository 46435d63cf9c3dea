// Package model defines the generative collaborators used by text-generate
// and image-generate nodes, plus test doubles for them.
package model

import (
	"context"
	"errors"
)

// TextModel generates text from a resolved prompt.
//
// Implementations translate the request to one provider's protocol. They do
// not retry; the engine owns retries and timeouts.
type TextModel interface {
	Generate(ctx context.Context, req TextRequest) (TextResponse, error)
}

// TextRequest carries everything a provider needs for one completion.
type TextRequest struct {
	// Model is the provider's model identifier, e.g. "claude-sonnet-4-5".
	Model string

	// System is an optional system prompt.
	System string

	// Prompt is the user prompt after template resolution.
	Prompt string

	// Temperature is nil to keep the provider default.
	Temperature *float64

	// MaxTokens caps the completion length. Zero means the adapter default.
	MaxTokens int
}

// TextResponse is the provider's answer with token usage for cost tracking.
type TextResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// ImageModel generates an image from a resolved prompt.
type ImageModel interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error)
}

// ImageRequest describes one image generation call. Size uses the provider's
// notation, e.g. "1024x1024".
type ImageRequest struct {
	Model  string
	Prompt string
	Size   string
}

// ImageResponse references the generated image. Providers return either a URL
// or inline base64 data.
type ImageResponse struct {
	URL           string
	B64JSON       string
	RevisedPrompt string
}

// ErrMissingAPIKey is returned by adapters constructed without credentials.
var ErrMissingAPIKey = errors.New("model: API key is required")

// ProviderError is a provider failure translated to a common shape.
type ProviderError struct {
	Provider  string
	Status    int
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Message
}

// Unwrap returns the underlying SDK or transport error.
func (e *ProviderError) Unwrap() error { return e.Cause }
