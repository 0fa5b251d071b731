// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// Backend abstracts the language-model endpoint so tests can supply a mock.
// Complete sends one prompt and returns the raw response text.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIBackend issues chat completions against any OpenAI-compatible
// endpoint (OpenAI, Azure, local servers). JSON object mode is requested so
// the response parses without fence stripping on conforming backends.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds a backend from the shared AI config.
func NewOpenAIBackend(cfg types.AIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4Turbo
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
