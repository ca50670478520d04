package provider

// ModelType represents the type of a model
type ModelType int

const (
	Transcription ModelType = iota
	LLM
)

func (t ModelType) String() string {
	switch t {
	case Transcription:
		return "transcription"
	case LLM:
		return "llm"
	default:
		return "unknown"
	}
}

// Model represents a model with full metadata
type Model struct {
	ID                 string          // unique identifier (e.g., "nova-3", "gpt-4o-mini")
	Name               string          // display name
	Description        string          // short description
	Type               ModelType       // transcription or LLM
	SupportsBatch      bool            // can transcribe uploaded files
	SupportsStreaming  bool            // can do real-time streaming transcription
	AdapterType        string          // which adapter to use (e.g., "deepgram", "openai", "gemini")
	Endpoint           *EndpointConfig // batch/HTTP endpoint, nil when the SDK owns it
	StreamingEndpoint  *EndpointConfig // streaming endpoint (if different from Endpoint)
	SupportedLanguages []string        // explicit list of provider language codes, empty = any
}

// EndpointConfig holds HTTP/WebSocket endpoint configuration
type EndpointConfig struct {
	BaseURL string // e.g., "https://api.deepgram.com" or "wss://api.deepgram.com"
	Path    string // e.g., "/v1/listen"
}

// URL joins base and path
func (e *EndpointConfig) URL() string {
	if e == nil {
		return ""
	}
	return e.BaseURL + e.Path
}

// IsStreaming returns true if this model supports streaming
func (m *Model) IsStreaming() bool {
	return m.SupportsStreaming
}

// SupportsLanguage returns true if the model supports the given language code.
// Auto-detect (empty string) is always supported.
func (m *Model) SupportsLanguage(code string) bool {
	if code == "" || len(m.SupportedLanguages) == 0 {
		return true
	}
	for _, supported := range m.SupportedLanguages {
		if supported == code {
			return true
		}
	}
	return false
}
