package config

import "time"

type Config struct {
	Server        ServerConfig              `toml:"server"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	LLM           LLMConfig                 `toml:"llm"`
	FactCheck     FactCheckConfig           `toml:"factcheck"`
	Knowledge     KnowledgeConfig           `toml:"knowledge"`
	Sink          SinkConfig                `toml:"sink"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type ServerConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	ReadLimit      int64         `toml:"read_limit"` // max websocket frame size in bytes
	WriteTimeout   time.Duration `toml:"write_timeout"`
	AllowedOrigins []string      `toml:"allowed_origins"` // empty allows any origin
	UploadLimit    int64         `toml:"upload_limit"`
}

type TranscriptionConfig struct {
	Provider     string        `toml:"provider"` // "deepgram" or "mock"
	Model        string        `toml:"model"`
	Language     string        `toml:"language"`
	SmartFormat  bool          `toml:"smart_format"`
	Punctuate    bool          `toml:"punctuate"`
	MockMode     bool          `toml:"mock_mode"` // force scripted transcripts even with a key
	MockInterval time.Duration `toml:"mock_interval"`
}

type LLMConfig struct {
	Provider          string        `toml:"provider"` // "openai", "groq", "gemini" or "mock"
	Model             string        `toml:"model"`
	Temperature       float64       `toml:"temperature"`
	RequestsPerMinute int           `toml:"requests_per_minute"`
	Timeout           time.Duration `toml:"timeout"`
}

// FactCheckConfig is hot-reloadable; changes apply to new sessions
type FactCheckConfig struct {
	MaxIterations      int     `toml:"max_iterations"`
	SearchLimit        int     `toml:"search_limit"`
	MaxQueries         int     `toml:"max_queries"`
	Concurrency        int     `toml:"concurrency"`
	MinClaimConfidence float64 `toml:"min_claim_confidence"`
}

type KnowledgeConfig struct {
	Path           string        `toml:"path"` // sqlite file, ":memory:" for a throwaway store
	CacheTTL       time.Duration `toml:"cache_ttl"`
	SeedFiles      []string      `toml:"seed_files"`
	SeedSamples    bool          `toml:"seed_samples"`
	FetchUserAgent string        `toml:"fetch_user_agent"`
	FetchTimeout   time.Duration `toml:"fetch_timeout"`
	FetchRPS       float64       `toml:"fetch_rps"`
}

// SinkConfig enables optional result sinks; empty values disable them
type SinkConfig struct {
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisChannel   string `toml:"redis_channel"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`
	JSONLDir       string `toml:"jsonl_dir"`
}
