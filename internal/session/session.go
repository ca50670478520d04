package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leonardotrapani/factstream/internal/bridge"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/transcriber"
	"github.com/leonardotrapani/factstream/internal/wire"
)

var ErrSessionClosed = errors.New("session closed")

// mockChunkThreshold is the chunk size above which a mock session that
// cannot forward audio answers with a placeholder transcript
const mockChunkThreshold = 1000

const mockChunkTranscript = "This is a mock transcript from streaming audio."

type State int

const (
	Connected State = iota
	AwaitingStart
	Streaming
	Stopping
	Closed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case AwaitingStart:
		return "awaiting_start"
	case Streaming:
		return "streaming"
	case Stopping:
		return "stopping"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sink delivers outbound messages to the connected client
type Sink interface {
	Send(ctx context.Context, v any) error
}

// Session is one streaming connection. HandleCommand and HandleAudio must be
// called from a single goroutine, the connection's read loop.
type Session struct {
	id       string
	mock     bool
	backend  transcriber.Backend
	sink     Sink
	registry *Registry

	stopTimeout  time.Duration
	drainTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	bridge      *bridge.Bridge[model.TranscriptEvent]
	transcripts *notify.List[model.TranscriptEvent]

	mu             sync.Mutex
	state          State
	format         model.AudioFormat
	backendStarted bool
	onClose        []func()

	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newSession(parent context.Context, backend transcriber.Backend, mock bool, sink Sink, registry *Registry, cfg Config) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		id:           id,
		mock:         mock,
		backend:      backend,
		sink:         sink,
		registry:     registry,
		stopTimeout:  cfg.StopTimeout,
		drainTimeout: cfg.DrainTimeout,
		ctx:          ctx,
		cancel:       cancel,
		transcripts:  notify.NewList[model.TranscriptEvent]("session " + id),
		state:        Connected,
		format:       model.DefaultAudioFormat(),
	}

	opts := cfg.Bridge
	opts.Name = "session " + id + " bridge"
	s.bridge = bridge.New(s.emit, opts)

	// the outward transport is always the first observer
	s.transcripts.AddFunc(func(_ context.Context, ev model.TranscriptEvent) error {
		return s.Send(wire.TranscriptOf(ev))
	})

	backend.OnTranscript(func(ev model.TranscriptEvent) {
		if !s.bridge.Push(ev) {
			log.Printf("session %s: transcript after close dropped", s.id)
		}
	})
	return s
}

func (s *Session) ID() string { return s.id }

// Mock reports whether the session runs on scripted transcription
func (s *Session) Mock() bool { return s.mock }

// Context is cancelled when the session starts tearing down
func (s *Session) Context() context.Context { return s.ctx }

// Transcripts is the emitter every transcript is delivered through, in order
func (s *Session) Transcripts() *notify.List[model.TranscriptEvent] {
	return s.transcripts
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Format returns the audio format the next start will use
func (s *Session) Format() model.AudioFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// OnClose registers fn to run during teardown, after the bridge has stopped.
// Functions run in reverse registration order.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

// Send writes one message to the client. Writes are serialized.
func (s *Session) Send(v any) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.sink.Send(context.WithoutCancel(s.ctx), v)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		log.Printf("session %s: %s -> %s", s.id, prev, st)
	}
}

func (s *Session) emit(ctx context.Context, ev model.TranscriptEvent) {
	s.transcripts.Notify(ctx, ev)
}

// HandleCommand applies a parsed control message. It returns ErrSessionClosed
// once the session has stopped.
func (s *Session) HandleCommand(ctx context.Context, cmd wire.Command) error {
	switch cmd.Command {
	case wire.CommandStart:
		return s.start(cmd.AudioFormat)
	case wire.CommandStop:
		return s.stop(ctx)
	default:
		return &wire.ParseError{Raw: cmd.Command, Err: wire.ErrUnknownCommand}
	}
}

func (s *Session) start(update *model.AudioFormatUpdate) error {
	switch st := s.State(); st {
	case Streaming:
		log.Printf("session %s: start while streaming ignored", s.id)
		return s.Send(wire.Status{Status: wire.StatusAlreadyStarted})
	case Stopping, Closed:
		return ErrSessionClosed
	}

	s.mu.Lock()
	s.format = s.format.Merge(update).Normalize()
	format := s.format
	s.mu.Unlock()

	log.Printf("session %s: starting transcription, mimetype=%s encoding=%q rate=%d channels=%d",
		s.id, format.Mimetype, format.Encoding, format.SampleRate, format.Channels)
	if err := s.startBackend(format); err != nil && !errors.Is(err, errStartFailed) {
		return err
	}
	return nil
}

// startBackend moves the session to Streaming and reports the outcome to the client.
// A failed start leaves a live session in AwaitingStart and returns errStartFailed.
func (s *Session) startBackend(format model.AudioFormat) error {
	// the backend's goroutines live as long as the session, not the message
	err := s.backend.Start(s.ctx, format)
	if err == nil {
		s.mu.Lock()
		s.backendStarted = true
		s.mu.Unlock()
		s.setState(Streaming)
		return s.Send(wire.Status{Status: wire.StatusStarted, Mock: s.mock})
	}

	log.Printf("session %s: error starting transcription: %v", s.id, err)
	if s.mock {
		s.setState(Streaming)
		return s.Send(wire.Status{Status: wire.StatusStarted, Note: wire.MockNote, Mock: true})
	}

	s.setState(AwaitingStart)
	if sendErr := s.Send(wire.Errorf("Error starting transcription: %v", err)); sendErr != nil {
		return sendErr
	}
	return errStartFailed
}

var errStartFailed = errors.New("transcription not started")

// HandleAudio forwards one binary frame, starting the backend first if the
// client never sent a start command
func (s *Session) HandleAudio(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	switch st := s.State(); st {
	case Stopping, Closed:
		return ErrSessionClosed
	case Connected, AwaitingStart:
		log.Printf("session %s: audio before start, auto-starting", s.id)
		if err := s.startBackend(s.Format().Normalize()); err != nil {
			if errors.Is(err, errStartFailed) {
				return nil
			}
			return err
		}
	}

	if err := s.backend.Send(ctx, chunk); err != nil {
		if s.mock {
			if len(chunk) > mockChunkThreshold {
				s.bridge.Push(model.TranscriptEvent{
					ID:         uuid.NewString(),
					Text:       mockChunkTranscript,
					Confidence: 0.95,
					IsFinal:    true,
					Timestamp:  time.Now(),
				})
			}
			return nil
		}
		log.Printf("session %s: error processing audio: %v", s.id, err)
		return s.Send(wire.Errorf("Error processing audio: %v", err))
	}
	return nil
}

// stop is the client-requested shutdown: flush the backend, let queued
// transcripts reach the client, then report stopped
func (s *Session) stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Stopping || s.state == Closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	started := s.backendStarted
	s.backendStarted = false
	s.mu.Unlock()

	s.setState(Stopping)
	if started {
		s.stopBackend(ctx)
	}
	s.drain()
	s.setState(Closed)

	if err := s.Send(wire.Status{Status: wire.StatusStopped, SessionID: s.id}); err != nil {
		log.Printf("session %s: send stopped: %v", s.id, err)
	}
	return ErrSessionClosed
}

func (s *Session) stopBackend(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stopTimeout)
	defer cancel()
	if err := s.backend.Stop(ctx); err != nil {
		log.Printf("session %s: error stopping %s: %v", s.id, s.backend.Name(), err)
		return err
	}
	return nil
}

// drain waits for the bridge to hand off everything already queued
func (s *Session) drain() {
	deadline := time.Now().Add(s.drainTimeout)
	for s.bridge.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

// Close tears the session down: cancel, stop the backend, close the bridge,
// run OnClose functions, leave the registry. Every step runs even if an
// earlier one fails. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.teardown()
	})
	return s.closeErr
}

func (s *Session) teardown() error {
	var errs []error

	s.cancel()

	s.mu.Lock()
	started := s.backendStarted
	s.backendStarted = false
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	if started {
		if err := s.stopBackend(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("stop backend: %w", err))
		}
	}

	s.bridge.Close()

	for i := len(hooks) - 1; i >= 0; i-- {
		if err := runHook(hooks[i]); err != nil {
			log.Printf("session %s: close hook: %v", s.id, err)
			errs = append(errs, err)
		}
	}

	if !s.registry.Remove(s.id) {
		log.Printf("session %s: not in registry at close", s.id)
	}
	s.setState(Closed)
	log.Printf("session %s: closed", s.id)
	return errors.Join(errs...)
}

func runHook(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
