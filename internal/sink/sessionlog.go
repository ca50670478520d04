package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/leonardotrapani/factstream/internal/model"
)

// SessionLog writes one JSONL record per session event
type SessionLog struct {
	path string

	mu   sync.Mutex
	file *os.File
}

type logRecord struct {
	Timestamp  string            `json:"ts"`
	Event      string            `json:"event"`
	SessionID  string            `json:"session_id"`
	Text       string            `json:"text,omitempty"`
	IsFinal    *bool             `json:"is_final,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Verdict    model.Verdict     `json:"verdict,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// NewSessionLog creates dir if needed and opens
// <dir>/<started>_session_<id prefix>.jsonl for appending
func NewSessionLog(dir, sessionID string, started time.Time) (*SessionLog, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_session_%s.jsonl", started.Format("20060102_150405"), shortID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &SessionLog{path: path, file: f}, nil
}

func (l *SessionLog) Path() string {
	return l.path
}

func (l *SessionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *SessionLog) write(rec logRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	rec.Text = strings.TrimSpace(rec.Text)
	return json.NewEncoder(l.file).Encode(rec)
}

func (l *SessionLog) LogStart(sessionID string, mock bool, started time.Time) error {
	return l.write(logRecord{
		Timestamp: started.Format(time.RFC3339Nano),
		Event:     "session_start",
		SessionID: sessionID,
		Details:   map[string]string{"mock": fmt.Sprint(mock)},
	})
}

func (l *SessionLog) LogEnd(sessionID, reason string) error {
	return l.write(logRecord{Event: "session_end", SessionID: sessionID, Details: map[string]string{"reason": reason}})
}

func (l *SessionLog) LogClaim(sessionID string, c model.Claim) error {
	return l.write(logRecord{Event: "claim", SessionID: sessionID, Text: c.Text, Confidence: c.Confidence})
}

// Transcripts returns an observer logging every transcript of sessionID
func (l *SessionLog) Transcripts(sessionID string) func(context.Context, model.TranscriptEvent) error {
	return func(_ context.Context, ev model.TranscriptEvent) error {
		final := ev.IsFinal
		return l.write(logRecord{
			Event:      "transcript",
			SessionID:  sessionID,
			Text:       ev.Text,
			IsFinal:    &final,
			Confidence: ev.Confidence,
		})
	}
}

// Results returns an observer logging every verdict of sessionID
func (l *SessionLog) Results(sessionID string) func(context.Context, model.FactCheckResult) error {
	return func(_ context.Context, res model.FactCheckResult) error {
		rec := logRecord{
			Event:      "verdict",
			SessionID:  sessionID,
			Text:       res.Claim.Text,
			Confidence: res.Confidence,
			Verdict:    res.Verdict,
		}
		if res.Metadata.Error != "" {
			rec.Details = map[string]string{"error": res.Metadata.Error}
		}
		return l.write(rec)
	}
}
