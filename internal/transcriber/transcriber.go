package transcriber

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/provider"
)

// TranscriptFunc receives transcripts. Backends call it from their own goroutines.
type TranscriptFunc func(ev model.TranscriptEvent)

// Backend is a live speech-to-text stream for a single session
type Backend interface {
	// Name identifies the backend in logs
	Name() string

	// OnTranscript registers the callback. Must be called before Start.
	OnTranscript(fn TranscriptFunc)

	// Start opens the stream for audio in the given format
	Start(ctx context.Context, format model.AudioFormat) error

	// Send forwards one chunk of audio
	Send(ctx context.Context, audio []byte) error

	// Stop flushes pending audio and releases the stream. Safe to call when not started.
	Stop(ctx context.Context) error
}

// BatchTranscriber transcribes a complete uploaded file
type BatchTranscriber interface {
	TranscribeFile(ctx context.Context, data []byte, format model.AudioFormat) ([]model.TranscriptEvent, error)
}

// Configuration for the transcription backends
type Config struct {
	Provider     string
	APIKey       string
	Model        string
	Language     string
	SmartFormat  bool
	Punctuate    bool
	ForceMock    bool
	MockInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Provider:     provider.ProviderDeepgram,
		Model:        "nova-3",
		SmartFormat:  true,
		Punctuate:    true,
		MockInterval: 2 * time.Second,
	}
}

// MockMode reports whether scripted transcripts replace the real service.
// This is the case when forced, or when no usable Deepgram key is configured.
func (c Config) MockMode() bool {
	if c.ForceMock || c.Provider == provider.ProviderMock {
		return true
	}
	return !provider.KeyUsable(provider.ProviderDeepgram, c.APIKey)
}

// NewBackend picks the live or mock backend once, for the lifetime of a session
func NewBackend(cfg Config) (Backend, error) {
	if cfg.MockMode() {
		return NewMockBackend(cfg.MockInterval), nil
	}

	switch cfg.Provider {
	case provider.ProviderDeepgram, "":
		m, err := deepgramModel(cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewDeepgramAdapter(m.StreamingEndpoint, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Provider)
	}
}

// NewBatch returns the file transcriber matching cfg
func NewBatch(cfg Config) (BatchTranscriber, error) {
	if cfg.MockMode() {
		log.Printf("transcriber: no valid Deepgram key, using mock file transcription")
		return MockBatch{}, nil
	}

	switch cfg.Provider {
	case provider.ProviderDeepgram, "":
		m, err := deepgramModel(cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewDeepgramBatchAdapter(m.Endpoint, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Provider)
	}
}

func deepgramModel(id string) (provider.Model, error) {
	p := provider.GetProvider(provider.ProviderDeepgram)
	if id == "" {
		id = p.DefaultModel(provider.Transcription)
	}
	m, ok := provider.FindModel(p, id)
	if !ok {
		return provider.Model{}, fmt.Errorf("unknown deepgram model: %s", id)
	}
	return m, nil
}

// emit calls fn and swallows a panic so a faulty consumer cannot kill the reader goroutine
func emit(name string, fn TranscriptFunc, ev model.TranscriptEvent) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s: transcript callback panic: %v", name, r)
		}
	}()
	fn(ev)
}
