package provider

// MockProvider serves scripted transcripts and LLM answers without network access
type MockProvider struct{}

func (p *MockProvider) Name() string {
	return ProviderMock
}

func (p *MockProvider) RequiresAPIKey() bool {
	return false
}

func (p *MockProvider) ValidateAPIKey(string) bool {
	return true
}

func (p *MockProvider) Models() []Model {
	return []Model{
		{ID: "mock-stt", Name: "Mock transcription", Type: Transcription, SupportsBatch: true, SupportsStreaming: true, AdapterType: AdapterMock},
		{ID: "mock-llm", Name: "Mock LLM", Type: LLM, AdapterType: AdapterMock},
	}
}

func (p *MockProvider) DefaultModel(t ModelType) string {
	if t == Transcription {
		return "mock-stt"
	}
	return "mock-llm"
}
