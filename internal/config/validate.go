package config

import (
	"fmt"
	"slices"

	"github.com/leonardotrapani/factstream/internal/provider"
)

var (
	transcriptionProviders = []string{provider.ProviderDeepgram, provider.ProviderMock}
	llmProviders           = []string{provider.ProviderOpenAI, provider.ProviderGroq, provider.ProviderGemini, provider.ProviderMock}
)

// Validate checks value ranges. Missing API keys are not an error: the
// affected component falls back to its mock.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.ReadLimit <= 0 {
		return fmt.Errorf("invalid server.read_limit: %d", c.Server.ReadLimit)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid server.write_timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.UploadLimit <= 0 {
		return fmt.Errorf("invalid server.upload_limit: %d", c.Server.UploadLimit)
	}

	if !slices.Contains(transcriptionProviders, c.Transcription.Provider) {
		return fmt.Errorf("unsupported transcription.provider: %q (must be deepgram or mock)", c.Transcription.Provider)
	}
	if c.Transcription.Provider == provider.ProviderDeepgram {
		p := provider.GetProvider(provider.ProviderDeepgram)
		m, ok := provider.FindModel(p, c.Transcription.Model)
		if !ok {
			return fmt.Errorf("invalid transcription.model for deepgram: %q", c.Transcription.Model)
		}
		if c.Transcription.Language != "" && !m.SupportsLanguage(c.Transcription.Language) {
			return fmt.Errorf("transcription.language %q is not supported by model %s", c.Transcription.Language, m.ID)
		}
	}
	if c.Transcription.MockInterval <= 0 {
		return fmt.Errorf("invalid transcription.mock_interval: %v", c.Transcription.MockInterval)
	}

	if !slices.Contains(llmProviders, c.LLM.Provider) {
		return fmt.Errorf("unsupported llm.provider: %q (must be openai, groq, gemini or mock)", c.LLM.Provider)
	}
	if c.LLM.Provider != provider.ProviderMock && c.LLM.Model == "" {
		return fmt.Errorf("llm.model required when llm.provider = %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid llm.temperature: %v (must be between 0 and 2)", c.LLM.Temperature)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid llm.requests_per_minute: %d", c.LLM.RequestsPerMinute)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("invalid llm.timeout: %v", c.LLM.Timeout)
	}

	if err := c.FactCheck.validate(); err != nil {
		return err
	}

	if c.Knowledge.Path == "" {
		return fmt.Errorf("invalid knowledge.path: empty")
	}
	if c.Knowledge.CacheTTL < 0 {
		return fmt.Errorf("invalid knowledge.cache_ttl: %v", c.Knowledge.CacheTTL)
	}
	if c.Knowledge.FetchTimeout <= 0 {
		return fmt.Errorf("invalid knowledge.fetch_timeout: %v", c.Knowledge.FetchTimeout)
	}
	if c.Knowledge.FetchRPS <= 0 {
		return fmt.Errorf("invalid knowledge.fetch_rps: %v", c.Knowledge.FetchRPS)
	}

	if c.Sink.RedisAddr != "" && c.Sink.RedisChannel == "" {
		return fmt.Errorf("sink.redis_channel required when sink.redis_addr is set")
	}

	return nil
}

func (f FactCheckConfig) validate() error {
	if f.MaxIterations < 1 {
		return fmt.Errorf("invalid factcheck.max_iterations: %d (must be at least 1)", f.MaxIterations)
	}
	if f.SearchLimit < 1 {
		return fmt.Errorf("invalid factcheck.search_limit: %d", f.SearchLimit)
	}
	if f.MaxQueries < 1 {
		return fmt.Errorf("invalid factcheck.max_queries: %d", f.MaxQueries)
	}
	if f.Concurrency < 1 {
		return fmt.Errorf("invalid factcheck.concurrency: %d", f.Concurrency)
	}
	if f.MinClaimConfidence < 0 || f.MinClaimConfidence > 1 {
		return fmt.Errorf("invalid factcheck.min_claim_confidence: %v (must be between 0 and 1)", f.MinClaimConfidence)
	}
	return nil
}
