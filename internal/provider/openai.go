package provider

import "strings"

// OpenAIProvider implements Provider for OpenAI chat models
type OpenAIProvider struct{}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) RequiresAPIKey() bool {
	return true
}

func (p *OpenAIProvider) ValidateAPIKey(key string) bool {
	return strings.HasPrefix(key, "sk-")
}

func (p *OpenAIProvider) Models() []Model {
	return []Model{
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Description: "Fast and cheap, good JSON output", Type: LLM, AdapterType: AdapterOpenAI},
		{ID: "gpt-4o", Name: "GPT-4o", Description: "Most capable", Type: LLM, AdapterType: AdapterOpenAI},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Description: "Newer small model", Type: LLM, AdapterType: AdapterOpenAI},
	}
}

func (p *OpenAIProvider) DefaultModel(t ModelType) string {
	if t == LLM {
		return "gpt-4o-mini"
	}
	return ""
}
