package docmodel

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-review/internal/pipeline"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini model used for extraction.
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the part of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient sends documents to Gemini as inline data.
type GeminiClient struct {
	models          contentGenerator
	model           string
	maxOutputTokens int32
}

// NewGeminiClient creates a Gemini client. An empty API key falls back to
// the GEMINI_API_KEY / GOOGLE_API_KEY environment the SDK reads itself.
func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return newGeminiClient(client.Models, opts), nil
}

func newGeminiClient(models contentGenerator, opts Options) *GeminiClient {
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		models:          models,
		model:           model,
		maxOutputTokens: int32(opts.MaxOutputTokens),
	}
}

// Complete implements pipeline.DocumentModelClient.
func (c *GeminiClient) Complete(ctx context.Context, req pipeline.ModelRequest) (string, error) {
	data, err := req.Content.Bytes()
	if err != nil {
		return "", fmt.Errorf("GeminiClient.Complete: decode content block: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: req.Content.MediaType,
						Data:     data,
					},
				},
				{Text: req.Instruction},
			},
		},
	}

	var config *genai.GenerateContentConfig
	if c.maxOutputTokens > 0 {
		config = &genai.GenerateContentConfig{MaxOutputTokens: c.maxOutputTokens}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GeminiClient.Complete: generate content: %w", err)
	}

	text := firstText(resp)
	if text == "" {
		return "", fmt.Errorf("GeminiClient.Complete: %w", ErrEmptyResponse)
	}
	return text, nil
}

// firstText returns the first non-thought text part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			return part.Text
		}
	}
	return ""
}
