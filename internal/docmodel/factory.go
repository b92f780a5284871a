package docmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-review/internal/pipeline"
)

// New builds the client for opts.Provider.
func New(ctx context.Context, opts Options) (pipeline.DocumentModelClient, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderGemini:
		client, err := NewGeminiClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("New: openai provider requires an API key")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("New: unknown model provider %q", opts.Provider)
	}
}
