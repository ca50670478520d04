package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/leonardotrapani/factstream/internal/provider"
)

// Responder turns a prompt into a model completion
type Responder interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM responder configuration
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	Temperature       float32
	RequestsPerMinute int
	Timeout           time.Duration
	ForceMock         bool
}

func DefaultConfig() Config {
	return Config{
		Provider:          provider.ProviderOpenAI,
		Temperature:       0,
		RequestsPerMinute: 60,
		Timeout:           60 * time.Second,
	}
}

// MockMode reports whether the scripted responder should answer instead of a real model
func (c Config) MockMode() bool {
	if c.ForceMock || c.Provider == provider.ProviderMock {
		return true
	}
	return !provider.KeyUsable(c.Provider, c.APIKey)
}

// NewResponder creates the responder for cfg.Provider, falling back to the
// mock when no usable key is configured
func NewResponder(ctx context.Context, cfg Config) (Responder, error) {
	if cfg.MockMode() {
		log.Printf("llm: using mock responder (provider=%q)", cfg.Provider)
		return NewMockResponder(), nil
	}

	if cfg.Model == "" {
		if p := provider.GetProvider(cfg.Provider); p != nil {
			cfg.Model = p.DefaultModel(provider.LLM)
		}
	}

	var r Responder
	switch cfg.Provider {
	case provider.ProviderOpenAI:
		r = NewOpenAIAdapter(cfg)
	case provider.ProviderGroq:
		r = NewGroqAdapter(cfg)
	case provider.ProviderGemini:
		g, err := NewGeminiAdapter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		r = g
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	if cfg.Timeout > 0 {
		r = WithTimeout(r, cfg.Timeout)
	}
	if cfg.RequestsPerMinute > 0 {
		r = NewLimited(r, cfg.RequestsPerMinute)
	}
	return r, nil
}

type timeoutResponder struct {
	next    Responder
	timeout time.Duration
}

// WithTimeout bounds every Complete call by d
func WithTimeout(r Responder, d time.Duration) Responder {
	return &timeoutResponder{next: r, timeout: d}
}

func (t *timeoutResponder) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, prompt)
}
