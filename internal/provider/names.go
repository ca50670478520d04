package provider

// Provider name constants for config and registry
const (
	ProviderDeepgram = "deepgram"
	ProviderOpenAI   = "openai"
	ProviderGroq     = "groq"
	ProviderGemini   = "gemini"
	ProviderMock     = "mock"
)

// Environment variable names for API keys
const (
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvGroqKey     = "GROQ_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
)

// Adapter type constants
const (
	AdapterDeepgram = "deepgram"
	AdapterOpenAI   = "openai"
	AdapterGemini   = "gemini"
	AdapterMock     = "mock"
)

// placeholderKey is the value shipped in example env files
const placeholderKey = "your_deepgram_api_key_here"

// EnvVarForProvider returns the environment variable name for a provider's API key
func EnvVarForProvider(provider string) string {
	switch provider {
	case ProviderDeepgram:
		return EnvDeepgramKey
	case ProviderOpenAI:
		return EnvOpenAIKey
	case ProviderGroq:
		return EnvGroqKey
	case ProviderGemini:
		return EnvGeminiKey
	default:
		return ""
	}
}
