package docmodel

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the default OpenAI model used for extraction.
const DefaultOpenAIModel = "gpt-4o"

// chatCompleter is the part of *openai.Client the client uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient sends images to the OpenAI chat completions API as data URLs.
// Chat completions take no PDF input, so document blocks are rejected.
type OpenAIClient struct {
	chat      chatCompleter
	model     string
	maxTokens int
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient(opts Options) *OpenAIClient {
	return newOpenAIClient(openai.NewClient(opts.APIKey), opts)
}

func newOpenAIClient(chat chatCompleter, opts Options) *OpenAIClient {
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{chat: chat, model: model, maxTokens: opts.MaxOutputTokens}
}

// Complete implements pipeline.DocumentModelClient.
func (c *OpenAIClient) Complete(ctx context.Context, req pipeline.ModelRequest) (string, error) {
	if req.Content.Kind != pipeline.BlockImage {
		return "", fmt.Errorf("OpenAIClient.Complete: %s block: %w", req.Content.Kind, ErrUnsupportedBlock)
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:" + req.Content.MediaType + ";base64," + req.Content.Data,
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Instruction,
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAIClient.Complete: chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("OpenAIClient.Complete: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
