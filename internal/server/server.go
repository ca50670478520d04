package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/factstream/internal/claims"
	"github.com/leonardotrapani/factstream/internal/config"
	"github.com/leonardotrapani/factstream/internal/factcheck"
	"github.com/leonardotrapani/factstream/internal/knowledge"
	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/session"
	"github.com/leonardotrapani/factstream/internal/transcriber"
)

const Version = "0.1.0"

const shutdownGrace = 10 * time.Second

// Deps are the long-lived collaborators shared by every connection
type Deps struct {
	Responder llm.Responder
	Searcher  knowledge.Searcher
	// Results receive every verdict the server produces, streaming or not
	Results []notify.Observer[model.FactCheckResult]
}

type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	sessions *session.Manager
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	newBatch func(transcriber.Config) (transcriber.BatchTranscriber, error)

	mu       sync.RWMutex
	engine   *factcheck.Engine
	detector *claims.Detector
	jsonlDir string

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

func New(cfg *config.Config, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg.Server,
		deps:     deps,
		sessions: session.NewManager(cfg.ToSessionConfig(), nil),
		mux:      http.NewServeMux(),
		newBatch: transcriber.NewBatch,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}
	s.Apply(cfg)
	s.routes()
	return s
}

// Apply installs a new configuration. Sessions already running keep the
// engine and transcription settings they started with.
func (s *Server) Apply(cfg *config.Config) {
	engine := factcheck.NewEngine(s.deps.Responder, s.deps.Searcher, cfg.ToFactCheckOptions())
	for _, o := range s.deps.Results {
		engine.OnResult(o)
	}
	detector := claims.NewDetector(s.deps.Responder, cfg.LLM.Model, cfg.FactCheck.MinClaimConfidence)

	s.mu.Lock()
	s.engine = engine
	s.detector = detector
	s.jsonlDir = cfg.Sink.JSONLDir
	s.mu.Unlock()

	s.sessions.SetConfig(cfg.ToSessionConfig())
	log.Printf("Server: configuration applied (max_iterations=%d concurrency=%d)",
		engine.Options().MaxIterations, engine.Options().Concurrency)
}

func (s *Server) current() (*factcheck.Engine, *claims.Detector, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, s.detector, s.jsonlDir
}

func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/stream", s.handleStream)
	s.mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /fact-check/claims", s.handleDetectClaims)
	s.mux.HandleFunc("POST /fact-check/verify", s.handleVerify)
	s.mux.HandleFunc("POST /fact-check/analyze", s.handleAnalyze)
}

func (s *Server) originAllowed(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	log.Printf("Server: rejected websocket origin %q", origin)
	return false
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
			return
		}
		listenErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	log.Printf("Server started, listening on %s", s.Addr())

	select {
	case err := <-listenErr:
		s.cancel()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)
	case <-ctx.Done():
		log.Printf("Shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server: http shutdown: %v", err)
	}
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-listenErr
}

// Shutdown ends every live session and waits for their connections to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Server: all sessions closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d sessions: %w", s.sessions.Registry().Len(), ctx.Err())
	}
}
