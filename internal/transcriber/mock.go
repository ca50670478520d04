package transcriber

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leonardotrapani/factstream/internal/model"
)

var mockScript = []string{
	"When you look at the map, a map of the Middle East, Israel is a tiny little spot compared to these giant land masses.",
	"It's really a tiny spot. I actually said, is there any way of getting more?",
	"It's so tiny.",
	"This is a mock transcript to test the WebSocket streaming capabilities.",
	"If you see this message, the WebSocket streaming is working.",
}

const mockGreeting = "WebSocket streaming is active and working. You will see mock transcripts every few seconds."

// MockBackend emits scripted final transcripts on a timer once started.
// Audio is accepted and discarded.
type MockBackend struct {
	interval time.Duration
	script   []string

	mu           sync.Mutex
	onTranscript TranscriptFunc
	started      bool
	startedAt    time.Time
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	received     int
}

func NewMockBackend(interval time.Duration) *MockBackend {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &MockBackend{interval: interval, script: mockScript}
}

func (m *MockBackend) Name() string {
	return "mock"
}

func (m *MockBackend) OnTranscript(fn TranscriptFunc) {
	m.mu.Lock()
	m.onTranscript = fn
	m.mu.Unlock()
}

func (m *MockBackend) Start(ctx context.Context, format model.AudioFormat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.started = true
	m.startedAt = time.Now()

	m.wg.Add(1)
	go m.generate(ctx)

	log.Printf("mock-transcriber: started, mimetype=%s, interval=%v", format.Mimetype, m.interval)
	return nil
}

func (m *MockBackend) generate(ctx context.Context) {
	defer m.wg.Done()

	m.publish(mockGreeting, 0.99)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publish(m.script[i%len(m.script)], 0.95)
		}
	}
}

func (m *MockBackend) publish(text string, confidence float64) {
	m.mu.Lock()
	fn := m.onTranscript
	elapsed := time.Since(m.startedAt).Seconds()
	m.mu.Unlock()

	emit("mock-transcriber", fn, model.TranscriptEvent{
		ID:         uuid.NewString(),
		Text:       text,
		Confidence: confidence,
		IsFinal:    true,
		StartTime:  elapsed,
		EndTime:    elapsed,
		Timestamp:  time.Now(),
	})
}

func (m *MockBackend) Send(_ context.Context, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	m.received += len(audio)
	return nil
}

// Received returns the number of audio bytes accepted so far
func (m *MockBackend) Received() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func (m *MockBackend) Stop(context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	log.Printf("mock-transcriber: stopped")
	return nil
}

// MockBatch returns canned transcripts for any upload
type MockBatch struct{}

func (MockBatch) TranscribeFile(_ context.Context, data []byte, _ model.AudioFormat) ([]model.TranscriptEvent, error) {
	if len(data) == 0 {
		return nil, nil
	}
	now := time.Now()
	canned := []struct {
		text       string
		confidence float64
	}{
		{mockScript[0], 0.99},
		{mockScript[1], 0.98},
		{mockScript[2], 0.98},
	}
	events := make([]model.TranscriptEvent, 0, len(canned))
	for i, c := range canned {
		events = append(events, model.TranscriptEvent{
			ID:         uuid.NewString(),
			Text:       c.text,
			Confidence: c.confidence,
			IsFinal:    true,
			StartTime:  float64(i * 5),
			EndTime:    float64((i + 1) * 5),
			Timestamp:  now,
		})
	}
	return events, nil
}
