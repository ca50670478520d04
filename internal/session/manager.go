package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/leonardotrapani/factstream/internal/bridge"
	"github.com/leonardotrapani/factstream/internal/transcriber"
	"github.com/leonardotrapani/factstream/internal/wire"
)

// Config applies to sessions accepted after it is set
type Config struct {
	Transcription transcriber.Config
	Bridge        bridge.Options
	StopTimeout   time.Duration // bound on backend Stop during teardown
	DrainTimeout  time.Duration // how long a stop command waits for queued transcripts
}

func DefaultConfig() Config {
	return Config{
		Transcription: transcriber.DefaultConfig(),
		StopTimeout:   5 * time.Second,
		DrainTimeout:  500 * time.Millisecond,
	}
}

// BackendFactory builds the transcription backend for a new session
type BackendFactory func(cfg transcriber.Config) (transcriber.Backend, error)

// Manager accepts connections and owns the session registry
type Manager struct {
	registry *Registry

	mu         sync.RWMutex
	cfg        Config
	newBackend BackendFactory
}

func NewManager(cfg Config, registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry:   registry,
		cfg:        withDefaults(cfg),
		newBackend: transcriber.NewBackend,
	}
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = d.StopTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = d.DrainTimeout
	}
	return cfg
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetConfig replaces the configuration. Existing sessions keep theirs.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = withDefaults(cfg)
	m.mu.Unlock()
}

// SetBackendFactory overrides how backends are built
func (m *Manager) SetBackendFactory(f BackendFactory) {
	m.mu.Lock()
	m.newBackend = f
	m.mu.Unlock()
}

// Accept creates and registers a session for a new connection, starts its
// bridge and greets the client. The live or mock backend is chosen here, once.
func (m *Manager) Accept(ctx context.Context, sink Sink) (*Session, error) {
	m.mu.RLock()
	cfg := m.cfg
	newBackend := m.newBackend
	m.mu.RUnlock()

	mock := cfg.Transcription.MockMode()
	backend, err := newBackend(cfg.Transcription)
	if err != nil {
		log.Printf("session: cannot create transcription backend, using mock: %v", err)
		backend = transcriber.NewMockBackend(cfg.Transcription.MockInterval)
		mock = true
	}

	s := newSession(ctx, backend, mock, sink, m.registry, cfg)
	if err := m.registry.Create(s); err != nil {
		s.cancel()
		return nil, err
	}
	s.bridge.Start(s.ctx)

	if mock {
		log.Printf("session %s: using mock transcription (no valid API key)", s.id)
	} else {
		log.Printf("session %s: using %s transcription", s.id, backend.Name())
	}

	err = s.Send(wire.Status{
		Status:           wire.StatusConnected,
		SessionID:        s.id,
		Message:          "Ready to receive audio",
		Mock:             mock,
		SupportedFormats: wire.SupportedFormats,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("greet client: %w", err)
	}
	s.setState(AwaitingStart)
	return s, nil
}
