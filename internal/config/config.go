package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Save writes config to path as TOML, creating parent directories
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString("# factstream configuration\n# Changes to [factcheck] apply to new sessions without a restart.\n\n"); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveDefaultConfig writes the default configuration template to path
func SaveDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config content: %w", err)
	}
	return nil
}

const defaultConfigTemplate = `# factstream configuration
# Changes to [factcheck] apply to new sessions without a restart.

[server]
  host = "0.0.0.0"
  port = 8000
  read_limit = 1048576         # max websocket frame size in bytes
  write_timeout = "10s"
  allowed_origins = []         # empty allows any origin
  upload_limit = 52428800      # max /api/transcribe upload in bytes

[transcription]
  provider = "deepgram"        # "deepgram" or "mock"
  model = "nova-3"
  language = "en"
  smart_format = true
  punctuate = true
  mock_mode = false            # force scripted transcripts even with an API key
  mock_interval = "2s"

[llm]
  provider = "openai"          # "openai", "groq", "gemini" or "mock"
  model = "gpt-4o-mini"
  temperature = 0.0
  requests_per_minute = 60
  timeout = "60s"

[factcheck]
  max_iterations = 3           # retrieval rounds per claim
  search_limit = 5             # evidence items per retrieval
  max_queries = 3
  concurrency = 1              # claims verified in parallel
  min_claim_confidence = 0.5

[knowledge]
  path = "factstream.db"       # sqlite file
  cache_ttl = "5m"
  seed_files = []              # JSON or YAML document files loaded at startup
  seed_samples = true
  fetch_user_agent = "factstream/0.1"
  fetch_timeout = "10s"
  fetch_rps = 1.0

[sink]
  redis_addr = ""              # empty disables the redis sink
  redis_password = ""
  redis_channel = "factstream:results"
  redis_key_prefix = "factstream:session:"
  jsonl_dir = ""               # empty disables per-session JSONL logs

# API keys fall back to DEEPGRAM_API_KEY, OPENAI_API_KEY, GROQ_API_KEY and GEMINI_API_KEY
[providers.deepgram]
  api_key = ""

[providers.openai]
  api_key = ""
`
