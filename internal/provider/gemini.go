package provider

// GeminiProvider implements Provider for Google's Gemini API
type GeminiProvider struct{}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

func (p *GeminiProvider) RequiresAPIKey() bool {
	return true
}

func (p *GeminiProvider) ValidateAPIKey(key string) bool {
	return len(key) > 0
}

func (p *GeminiProvider) Models() []Model {
	return []Model{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Fast, native JSON mode", Type: LLM, AdapterType: AdapterGemini},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Strongest reasoning", Type: LLM, AdapterType: AdapterGemini},
	}
}

func (p *GeminiProvider) DefaultModel(t ModelType) string {
	if t == LLM {
		return "gemini-2.5-flash"
	}
	return ""
}
