package config

import (
	"os"

	"github.com/leonardotrapani/factstream/internal/factcheck"
	"github.com/leonardotrapani/factstream/internal/knowledge"
	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/provider"
	"github.com/leonardotrapani/factstream/internal/session"
	"github.com/leonardotrapani/factstream/internal/transcriber"
)

func (c *Config) ToTranscriberConfig() transcriber.Config {
	return transcriber.Config{
		Provider:     c.Transcription.Provider,
		APIKey:       c.ResolveAPIKey(provider.ProviderDeepgram),
		Model:        c.Transcription.Model,
		Language:     c.Transcription.Language,
		SmartFormat:  c.Transcription.SmartFormat,
		Punctuate:    c.Transcription.Punctuate,
		ForceMock:    c.Transcription.MockMode,
		MockInterval: c.Transcription.MockInterval,
	}
}

func (c *Config) ToLLMConfig() llm.Config {
	return llm.Config{
		Provider:          c.LLM.Provider,
		APIKey:            c.ResolveAPIKey(c.LLM.Provider),
		Model:             c.LLM.Model,
		Temperature:       float32(c.LLM.Temperature),
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		Timeout:           c.LLM.Timeout,
	}
}

func (c *Config) ToFactCheckOptions() factcheck.Options {
	return factcheck.Options{
		MaxIterations: c.FactCheck.MaxIterations,
		MaxQueries:    c.FactCheck.MaxQueries,
		SearchLimit:   c.FactCheck.SearchLimit,
		Concurrency:   c.FactCheck.Concurrency,
	}
}

func (c *Config) ToFetcherConfig() knowledge.FetcherConfig {
	return knowledge.FetcherConfig{
		UserAgent:         c.Knowledge.FetchUserAgent,
		Timeout:           c.Knowledge.FetchTimeout,
		RequestsPerSecond: c.Knowledge.FetchRPS,
	}
}

func (c *Config) ToSessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.Transcription = c.ToTranscriberConfig()
	return cfg
}

// ResolveAPIKey returns the key for a provider: providers.<name>.api_key
// first, then the provider's environment variable
func (c *Config) ResolveAPIKey(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}

	if envVar := provider.EnvVarForProvider(providerName); envVar != "" {
		return os.Getenv(envVar)
	}

	return ""
}
