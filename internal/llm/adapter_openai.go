package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Responder using the chat completions API.
// Groq reuses it through its OpenAI-compatible endpoint.
type OpenAIAdapter struct {
	name   string
	client *openai.Client
	config Config
}

// NewOpenAIAdapter creates a new OpenAI responder
func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	return &OpenAIAdapter{
		name:   "openai-llm-adapter",
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}
}

func (a *OpenAIAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", nil
	}

	req := openai.ChatCompletionRequest{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: a.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("%s: API call failed after %v: %v", a.name, duration, err)
		return "", fmt.Errorf("%s chat completion: %w", a.config.Provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no response choices", a.config.Provider)
	}

	result := resp.Choices[0].Message.Content
	log.Printf("%s: completed in %v (%d prompt tokens, %d completion tokens)",
		a.name, duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return result, nil
}
