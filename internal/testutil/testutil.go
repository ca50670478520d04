package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/transcriber"
)

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// MockBackend implements transcriber.Backend for testing. Transcripts are
// injected with Emit from the test goroutine, which stands in for the
// backend's own reader goroutine.
type MockBackend struct {
	StartError error
	SendError  error
	StopError  error

	mu           sync.Mutex
	onTranscript transcriber.TranscriptFunc
	starts       int
	stops        int
	formats      []model.AudioFormat
	sent         [][]byte
	started      bool
}

var _ transcriber.Backend = (*MockBackend)(nil)

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) Name() string { return "test-backend" }

func (m *MockBackend) OnTranscript(fn transcriber.TranscriptFunc) {
	m.mu.Lock()
	m.onTranscript = fn
	m.mu.Unlock()
}

func (m *MockBackend) Start(_ context.Context, format model.AudioFormat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.formats = append(m.formats, format)
	if m.StartError != nil {
		return m.StartError
	}
	m.started = true
	return nil
}

func (m *MockBackend) Send(_ context.Context, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	if !m.started {
		return transcriber.ErrNotStarted
	}
	m.sent = append(m.sent, append([]byte(nil), audio...))
	return nil
}

func (m *MockBackend) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.started = false
	return m.StopError
}

// Emit delivers ev to the registered callback
func (m *MockBackend) Emit(ev model.TranscriptEvent) {
	m.mu.Lock()
	fn := m.onTranscript
	m.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (m *MockBackend) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *MockBackend) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Formats returns the formats passed to Start, in order
func (m *MockBackend) Formats() []model.AudioFormat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AudioFormat(nil), m.formats...)
}

// Sent returns copies of the audio chunks passed to Send
func (m *MockBackend) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

// ScriptedResponder implements llm.Responder with fixed replies per prompt kind.
// Analyses are consumed in order; the last one repeats.
type ScriptedResponder struct {
	Claims   string
	Queries  string
	Analyses []string
	Verdict  string
	Err      error
	PanicOn  llm.PromptKind

	mu       sync.Mutex
	prompts  []string
	analyzed int
}

func (s *ScriptedResponder) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kind := llm.KindOf(prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)

	if s.PanicOn != llm.PromptUnknown && kind == s.PanicOn {
		panic("scripted panic")
	}
	if s.Err != nil {
		return "", s.Err
	}

	switch kind {
	case llm.PromptClaims:
		return s.Claims, nil
	case llm.PromptQueries:
		return s.Queries, nil
	case llm.PromptAnalysis:
		if len(s.Analyses) == 0 {
			return `{"verdict":"INSUFFICIENT_EVIDENCE","confidence":0.5,"needs_more_evidence":false}`, nil
		}
		i := min(s.analyzed, len(s.Analyses)-1)
		s.analyzed++
		return s.Analyses[i], nil
	case llm.PromptVerdict:
		return s.Verdict, nil
	default:
		return "{}", nil
	}
}

// Prompts returns every prompt received, in order
func (s *ScriptedResponder) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// PromptsOf returns the received prompts of one kind
func (s *ScriptedResponder) PromptsOf(kind llm.PromptKind) []string {
	var out []string
	for _, p := range s.Prompts() {
		if llm.KindOf(p) == kind {
			out = append(out, p)
		}
	}
	return out
}

// MockSearcher implements knowledge.Searcher, returning Results for every
// query unless ByQuery has an entry
type MockSearcher struct {
	Results []model.EvidenceItem
	ByQuery map[string][]model.EvidenceItem
	Err     error

	mu      sync.Mutex
	queries []string
	limits  []int
}

func (m *MockSearcher) Search(_ context.Context, query string, limit int) ([]model.EvidenceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	m.limits = append(m.limits, limit)
	if m.Err != nil {
		return nil, m.Err
	}
	if r, ok := m.ByQuery[query]; ok {
		return append([]model.EvidenceItem(nil), r...), nil
	}
	return append([]model.EvidenceItem(nil), m.Results...), nil
}

// Queries returns the queries searched, in order
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Limits returns the limit passed with each search
func (m *MockSearcher) Limits() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.limits...)
}

// RecordingSink collects outbound session messages as decoded JSON objects
type RecordingSink struct {
	SendError error

	mu       sync.Mutex
	messages []map[string]any
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (r *RecordingSink) Send(_ context.Context, v any) error {
	if r.SendError != nil {
		return r.SendError
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
	return nil
}

// Messages returns everything sent so far
func (r *RecordingSink) Messages() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.messages...)
}

// WithKey returns the messages carrying key with the given value (any value when want is "")
func (r *RecordingSink) WithKey(key, want string) []map[string]any {
	var out []map[string]any
	for _, m := range r.Messages() {
		v, ok := m[key]
		if !ok {
			continue
		}
		if s, _ := v.(string); want == "" || s == want {
			out = append(out, m)
		}
	}
	return out
}

// WaitForMessages blocks until at least n messages match key/want
func (r *RecordingSink) WaitForMessages(t *testing.T, key, want string, n int) []map[string]any {
	t.Helper()
	var got []map[string]any
	WaitForCondition(t, func() bool {
		got = r.WithKey(key, want)
		return len(got) >= n
	}, 3*time.Second)
	return got
}

// Transcripts returns the text of every transcript message, in order
func (r *RecordingSink) Transcripts() []string {
	var out []string
	for _, m := range r.WithKey("transcript", "") {
		s, _ := m["transcript"].(string)
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
