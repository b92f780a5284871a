// Package docmodel implements pipeline.DocumentModelClient on top of hosted
// multimodal models.
package docmodel

import "errors"

// ErrEmptyResponse is returned when the model reply has no text segment.
var ErrEmptyResponse = errors.New("empty response from model")

// ErrUnsupportedBlock is returned when a provider cannot accept the block kind.
var ErrUnsupportedBlock = errors.New("content block not supported by provider")

// Providers understood by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options configures a model client.
type Options struct {
	Provider        string
	Model           string
	APIKey          string
	MaxOutputTokens int
}
