package provider

// DeepgramProvider implements Provider for Deepgram transcription services
type DeepgramProvider struct{}

func (p *DeepgramProvider) Name() string {
	return ProviderDeepgram
}

func (p *DeepgramProvider) RequiresAPIKey() bool {
	return true
}

func (p *DeepgramProvider) ValidateAPIKey(key string) bool {
	// Deepgram API keys are opaque; reject empty and the sample placeholder
	return len(key) > 0 && key != placeholderKey
}

var (
	deepgramStreaming = &EndpointConfig{BaseURL: "wss://api.deepgram.com", Path: "/v1/listen"}
	deepgramBatch     = &EndpointConfig{BaseURL: "https://api.deepgram.com", Path: "/v1/listen"}
)

func (p *DeepgramProvider) Models() []Model {
	nova3Langs := []string{
		"ar", "be", "bs", "bg", "ca", "hr", "cs", "da", "nl", "en", "et", "fi",
		"fr", "de", "el", "hi", "hu", "id", "it", "ja", "kn", "ko", "lv", "lt",
		"mk", "ms", "mr", "no", "pl", "pt", "ro", "ru", "sr", "sk", "sl", "es",
		"sv", "tl", "ta", "tr", "uk", "vi",
	}

	return []Model{
		{
			ID:                 "nova-3",
			Name:               "Nova-3",
			Description:        "Best accuracy, 40+ languages, real-time",
			Type:               Transcription,
			SupportsBatch:      true,
			SupportsStreaming:  true,
			AdapterType:        AdapterDeepgram,
			Endpoint:           deepgramBatch,
			StreamingEndpoint:  deepgramStreaming,
			SupportedLanguages: nova3Langs,
		},
		{
			ID:                "nova-2",
			Name:              "Nova-2",
			Description:       "Fast, 30+ languages, filler words",
			Type:              Transcription,
			SupportsBatch:     true,
			SupportsStreaming: true,
			AdapterType:       AdapterDeepgram,
			Endpoint:          deepgramBatch,
			StreamingEndpoint: deepgramStreaming,
		},
	}
}

func (p *DeepgramProvider) DefaultModel(t ModelType) string {
	if t == Transcription {
		return "nova-3"
	}
	return ""
}
