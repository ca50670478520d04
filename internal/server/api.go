package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/transcriber"
	"github.com/leonardotrapani/factstream/internal/wire"
)

const maxJSONBody = 1 << 20

// TextRequest is the body of /fact-check/claims and /fact-check/analyze
type TextRequest struct {
	Text string `json:"text"`
}

// ClaimRequest is the body of /fact-check/verify
type ClaimRequest struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

type ClaimResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

type FactCheckResponse struct {
	Claim       string        `json:"claim"`
	Verdict     model.Verdict `json:"verdict"`
	Confidence  float64       `json:"confidence"`
	Explanation string        `json:"explanation"`
	Sources     []string      `json:"sources"`
	IsTrue      bool          `json:"is_true"`
}

func responseOf(r model.FactCheckResult) FactCheckResponse {
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	return FactCheckResponse{
		Claim:       r.Claim.Text,
		Verdict:     r.Verdict,
		Confidence:  r.Confidence,
		Explanation: r.Explanation,
		Sources:     sources,
		IsTrue:      r.IsTrue,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Server: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, wire.Errorf(format, args...))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "factstream",
		"version": Version,
		"endpoints": map[string]string{
			"POST /api/transcribe":     "Transcribe an audio file",
			"WebSocket /api/stream":    "Stream audio for real-time transcription and fact checking",
			"GET /api/sessions":        "List live streaming sessions",
			"GET /api/sessions/{id}":   "Inspect one streaming session",
			"POST /fact-check/claims":  "Detect claims in a transcript",
			"POST /fact-check/verify":  "Verify a single claim",
			"POST /fact-check/analyze": "Detect and verify all claims in a transcript",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.sessions.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"sessions":           s.sessions.Registry().Len(),
		"mock_transcription": cfg.Transcription.MockMode(),
	})
}

// SessionInfo describes one live streaming session
type SessionInfo struct {
	SessionID string            `json:"session_id"`
	State     string            `json:"state"`
	Mock      bool              `json:"mock"`
	Format    model.AudioFormat `json:"audio_format"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.Registry().IDs()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Registry().Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session: %s", id)
		return
	}
	writeJSON(w, http.StatusOK, SessionInfo{
		SessionID: sess.ID(),
		State:     sess.State().String(),
		Mock:      sess.Mock(),
		Format:    sess.Format(),
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadLimit)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing audio file: %v", err)
		return
	}
	defer file.Close()

	format, err := transcriber.ResolveUploadFormat(header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported file type: %v", err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading upload: %v", err)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Empty file")
		return
	}

	log.Printf("Server: processing audio file: %s (%d bytes, type: %s)", header.Filename, len(data), format.Mimetype)
	batch, err := s.newBatch(s.sessions.Config().Transcription)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error transcribing audio: %v", err)
		return
	}

	start := time.Now()
	events, err := batch.TranscribeFile(r.Context(), data, format)
	if err != nil {
		log.Printf("Server: error transcribing audio: %v", err)
		status := http.StatusInternalServerError
		if transcriber.IsTransportError(err) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "Error transcribing audio: %v", err)
		return
	}
	log.Printf("Server: transcribed %s into %d segments in %v", header.Filename, len(events), time.Since(start))
	writeJSON(w, http.StatusOK, wire.TranscriptsOf(events))
}

func (s *Server) handleDetectClaims(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	_, detector, _ := s.current()
	found := detector.Detect(r.Context(), apiTranscript(req.Text))

	out := make([]ClaimResponse, 0, len(found))
	for _, c := range found {
		out = append(out, ClaimResponse{Text: c.Text, Confidence: c.Confidence, Context: c.Context})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	engine, _, _ := s.current()
	result := engine.CheckClaim(r.Context(), model.Claim{
		Text:         text,
		TranscriptID: "api-request",
		Confidence:   1.0,
		SourceText:   text,
		Context:      req.Context,
		Timestamp:    time.Now(),
	})
	if r.Context().Err() != nil {
		log.Printf("Server: client went away before verdict for %q", text)
		return
	}
	writeJSON(w, http.StatusOK, responseOf(result))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	engine, detector, _ := s.current()
	found := detector.Detect(r.Context(), apiTranscript(req.Text))
	results := engine.CheckAll(r.Context(), found)

	out := make([]FactCheckResponse, 0, len(results))
	for _, res := range results {
		out = append(out, responseOf(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func apiTranscript(text string) model.TranscriptEvent {
	return model.TranscriptEvent{
		ID:         "api-request",
		Text:       text,
		Confidence: 1.0,
		IsFinal:    true,
		Timestamp:  time.Now(),
	}
}
