package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// GeminiAdapter implements Responder with the Gemini API in JSON response mode
type GeminiAdapter struct {
	client *genai.Client
	config Config
}

func NewGeminiAdapter(ctx context.Context, cfg Config) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiAdapter{client: client, config: cfg}, nil
}

func (a *GeminiAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", nil
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(ctx, a.config.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(a.config.Temperature),
		ResponseMIMEType:  "application/json",
	})
	duration := time.Since(start)

	if err != nil {
		log.Printf("gemini-llm-adapter: API call failed after %v: %v", duration, err)
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate content: empty response")
	}
	log.Printf("gemini-llm-adapter: completed in %v", duration)
	return text, nil
}
