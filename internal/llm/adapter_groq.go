package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/leonardotrapani/factstream/internal/provider"
)

// NewGroqAdapter creates a responder against Groq's OpenAI-compatible API
func NewGroqAdapter(cfg Config) *OpenAIAdapter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = groqBaseURL()
	return &OpenAIAdapter{
		name:   "groq-llm-adapter",
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

func groqBaseURL() string {
	p := provider.GetProvider(provider.ProviderGroq)
	if p != nil {
		for _, m := range p.Models() {
			if m.Endpoint != nil {
				return m.Endpoint.URL()
			}
		}
	}
	return "https://api.groq.com/openai/v1"
}
