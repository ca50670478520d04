package config

import (
	"time"

	"github.com/leonardotrapani/factstream/internal/provider"
	"github.com/leonardotrapani/factstream/internal/sink"
)

// DefaultConfig returns the configuration used when no file exists and as
// the base that a loaded file overrides
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadLimit:    1 << 20,
			WriteTimeout: 10 * time.Second,
			UploadLimit:  50 << 20,
		},
		Transcription: TranscriptionConfig{
			Provider:     provider.ProviderDeepgram,
			Model:        "nova-3",
			Language:     "en",
			SmartFormat:  true,
			Punctuate:    true,
			MockInterval: 2 * time.Second,
		},
		LLM: LLMConfig{
			Provider:          provider.ProviderOpenAI,
			Model:             "gpt-4o-mini",
			Temperature:       0,
			RequestsPerMinute: 60,
			Timeout:           60 * time.Second,
		},
		FactCheck: FactCheckConfig{
			MaxIterations:      3,
			SearchLimit:        5,
			MaxQueries:         3,
			Concurrency:        1,
			MinClaimConfidence: 0.5,
		},
		Knowledge: KnowledgeConfig{
			Path:           "factstream.db",
			CacheTTL:       5 * time.Minute,
			SeedSamples:    true,
			FetchUserAgent: "factstream/0.1",
			FetchTimeout:   10 * time.Second,
			FetchRPS:       1,
		},
		Sink: SinkConfig{
			RedisChannel:   sink.DefaultChannel,
			RedisKeyPrefix: sink.DefaultKeyPrefix,
		},
		Providers: make(map[string]ProviderConfig),
	}
}
