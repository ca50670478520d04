package provider

import "strings"

// GroqProvider implements Provider for Groq's OpenAI-compatible API
type GroqProvider struct{}

func (p *GroqProvider) Name() string {
	return ProviderGroq
}

func (p *GroqProvider) RequiresAPIKey() bool {
	return true
}

func (p *GroqProvider) ValidateAPIKey(key string) bool {
	return strings.HasPrefix(key, "gsk_")
}

var groqEndpoint = &EndpointConfig{BaseURL: "https://api.groq.com", Path: "/openai/v1"}

func (p *GroqProvider) Models() []Model {
	return []Model{
		{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", Description: "Best quality on Groq", Type: LLM, AdapterType: AdapterOpenAI, Endpoint: groqEndpoint},
		{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B", Description: "Lowest latency", Type: LLM, AdapterType: AdapterOpenAI, Endpoint: groqEndpoint},
	}
}

func (p *GroqProvider) DefaultModel(t ModelType) string {
	if t == LLM {
		return "llama-3.3-70b-versatile"
	}
	return ""
}
