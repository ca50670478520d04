package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/provider"
)

var defaultRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// finalizeTimeout bounds how long Stop waits for Deepgram to flush
const finalizeTimeout = 3 * time.Second

// DeepgramAdapter implements Backend for Deepgram real-time transcription
type DeepgramAdapter struct {
	endpoint    *provider.EndpointConfig
	apiKey      string
	model       string
	language    string
	smartFormat bool
	punctuate   bool
	dialer      *websocket.Dialer

	mu           sync.Mutex
	conn         *websocket.Conn
	format       model.AudioFormat
	onTranscript TranscriptFunc
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	started      bool
	closing      bool

	// reconnection config
	maxRetries  int
	retryDelays []time.Duration

	// finalization signaling
	finalizeDone chan struct{}
}

// deepgramCloseStream message to signal end of audio
type deepgramCloseStream struct {
	Type string `json:"type"`
}

// Deepgram WebSocket response types (incoming)
type deepgramWSResponse struct {
	Type         string            `json:"type"`
	Channel      *deepgramChannel  `json:"channel,omitempty"`
	Metadata     *deepgramMetadata `json:"metadata,omitempty"`
	Error        *deepgramError    `json:"error,omitempty"`
	Duration     float64           `json:"duration,omitempty"`
	Start        float64           `json:"start,omitempty"`
	IsFinal      bool              `json:"is_final,omitempty"`
	SpeechFinal  bool              `json:"speech_final,omitempty"`
	FromFinalize bool              `json:"from_finalize,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type deepgramMetadata struct {
	RequestID string  `json:"request_id"`
	Duration  float64 `json:"duration,omitempty"`
	ModelInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"model_info"`
}

type deepgramError struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// NewDeepgramAdapter creates a streaming backend for Deepgram
// endpoint: the WebSocket endpoint config (e.g., wss://api.deepgram.com, /v1/listen)
func NewDeepgramAdapter(endpoint *provider.EndpointConfig, cfg Config) *DeepgramAdapter {
	return &DeepgramAdapter{
		endpoint:     endpoint,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		language:     cfg.Language,
		smartFormat:  cfg.SmartFormat,
		punctuate:    cfg.Punctuate,
		dialer:       websocket.DefaultDialer,
		maxRetries:   3,
		retryDelays:  defaultRetryDelays,
		finalizeDone: make(chan struct{}, 1),
	}
}

func (a *DeepgramAdapter) Name() string {
	return "deepgram"
}

func (a *DeepgramAdapter) OnTranscript(fn TranscriptFunc) {
	a.mu.Lock()
	a.onTranscript = fn
	a.mu.Unlock()
}

// Start opens the WebSocket connection to Deepgram
func (a *DeepgramAdapter) Start(ctx context.Context, format model.AudioFormat) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("adapter already started")
	}

	a.format = format
	a.closing = false
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.connectLocked(); err != nil {
		a.cancel()
		return NewTransportError("deepgram", "start", err)
	}
	a.started = true

	a.wg.Add(1)
	go a.readLoop()

	log.Printf("deepgram: connected, model=%s, language=%s, mimetype=%s", a.model, a.language, format.Mimetype)
	return nil
}

// connectLocked establishes WebSocket connection. Must be called with mu held.
func (a *DeepgramAdapter) connectLocked() error {
	wsURL, err := a.buildURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+a.apiKey)

	log.Printf("deepgram: connecting to %s", wsURL)
	conn, resp, err := a.dialer.DialContext(a.ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("deepgram: dial failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	a.conn = conn
	return nil
}

// reconnect attempts to re-establish the WebSocket connection with backoff.
// Returns true if reconnection succeeded.
func (a *DeepgramAdapter) reconnect() bool {
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		select {
		case <-a.ctx.Done():
			return false
		default:
		}

		if attempt > 0 {
			idx := attempt - 1
			if idx >= len(a.retryDelays) {
				idx = len(a.retryDelays) - 1
			}
			delay := a.retryDelays[idx]
			log.Printf("deepgram: reconnect attempt %d/%d after %v", attempt+1, a.maxRetries, delay)

			select {
			case <-a.ctx.Done():
				return false
			case <-time.After(delay):
			}
		} else {
			log.Printf("deepgram: reconnect attempt %d/%d", attempt+1, a.maxRetries)
		}

		a.mu.Lock()
		if a.conn != nil {
			a.conn.Close()
			a.conn = nil
		}
		err := a.connectLocked()
		a.mu.Unlock()

		if err == nil {
			log.Printf("deepgram: reconnected successfully")
			return true
		}
		log.Printf("deepgram: reconnect failed: %v", err)
	}

	return false
}

// buildURL constructs the WebSocket URL with query parameters
func (a *DeepgramAdapter) buildURL() (string, error) {
	u, err := url.Parse(a.endpoint.URL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	if a.model != "" {
		q.Set("model", a.model)
	}
	setFormatParams(q, a.format)

	// interim results let clients render partial text
	q.Set("interim_results", "true")
	if a.smartFormat {
		q.Set("smart_format", "true")
	}
	if a.punctuate {
		q.Set("punctuate", "true")
	}

	if lang := normalizeDeepgramLanguage(a.language); lang != "" {
		q.Set("language", lang)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// setFormatParams adds encoding parameters. Containers are sniffed by Deepgram, so
// only headerless PCM needs them.
func setFormatParams(q url.Values, f model.AudioFormat) {
	if f.Mimetype != "" && !f.IsRaw() {
		return
	}
	encoding := f.Encoding
	if encoding == "" {
		encoding = "linear16"
	}
	sampleRate := f.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}
	q.Set("encoding", encoding)
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(channels))
}

func normalizeDeepgramLanguage(code string) string {
	if code == "" {
		return ""
	}
	if strings.EqualFold(code, "en") || strings.EqualFold(code, "en-us") || strings.EqualFold(code, "en_us") {
		return "en-US"
	}
	return code
}

// readLoop reads messages from the WebSocket and hands transcripts to the callback
func (a *DeepgramAdapter) readLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		a.mu.Lock()
		conn := a.conn
		a.mu.Unlock()

		if conn == nil {
			if !a.reconnect() {
				log.Printf("deepgram: connection lost, reconnection failed after %d attempts", a.maxRetries)
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
			}

			// Deepgram closes the socket after flushing a CloseStream
			if a.isClosing() {
				a.signalFinalized()
				return
			}

			log.Printf("deepgram: read error: %v, attempting reconnection", err)
			if !a.reconnect() {
				log.Printf("deepgram: websocket read: %v, reconnection failed", err)
				return
			}
			continue
		}

		var resp deepgramWSResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			log.Printf("deepgram: parse error: %v", err)
			continue
		}

		a.handleMessage(resp)
	}
}

func (a *DeepgramAdapter) handleMessage(resp deepgramWSResponse) {
	switch resp.Type {
	case "Metadata":
		if resp.Metadata != nil {
			log.Printf("deepgram: session started, request_id=%s, model=%s",
				resp.Metadata.RequestID, resp.Metadata.ModelInfo.Name)
		}

	case "Results":
		if resp.Channel == nil || len(resp.Channel.Alternatives) == 0 {
			return
		}
		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}
		isFinal := resp.IsFinal || resp.SpeechFinal
		if isFinal {
			log.Printf("deepgram: final: %q", alt.Transcript)
			a.signalFinalized()
		}

		a.mu.Lock()
		fn := a.onTranscript
		a.mu.Unlock()

		emit("deepgram", fn, model.TranscriptEvent{
			ID:         uuid.NewString(),
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
			IsFinal:    isFinal,
			StartTime:  resp.Start,
			EndTime:    resp.Start + resp.Duration,
			Timestamp:  time.Now(),
		})

	case "Error":
		if resp.Error != nil {
			errMsg := resp.Error.Message
			if resp.Error.Description != "" {
				errMsg = fmt.Sprintf("%s: %s", errMsg, resp.Error.Description)
			}
			log.Printf("deepgram: error: %s", errMsg)
		}

	case "UtteranceEnd":
		log.Printf("deepgram: utterance end detected")

	case "SpeechStarted":
		log.Printf("deepgram: speech started")

	default:
		log.Printf("deepgram: unknown message type: %s", resp.Type)
	}
}

func (a *DeepgramAdapter) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

func (a *DeepgramAdapter) signalFinalized() {
	select {
	case a.finalizeDone <- struct{}{}:
	default:
	}
}

// Send forwards raw audio bytes. Deepgram expects binary frames, not base64.
func (a *DeepgramAdapter) Send(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	conn := a.conn
	a.mu.Unlock()

	select {
	case <-a.ctx.Done():
		return a.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if conn == nil {
		return fmt.Errorf("no connection")
	}

	err := a.writeAudio(audio)
	if err != nil {
		log.Printf("deepgram: write error: %v, attempting reconnection", err)
		if a.reconnect() {
			// retry the chunk after reconnection
			if err = a.writeAudio(audio); err == nil {
				return nil
			}
		}
		return NewTransportError("deepgram", "send", fmt.Errorf("websocket write: %w", err))
	}

	return nil
}

func (a *DeepgramAdapter) writeAudio(audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("no connection")
	}
	return a.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Stop sends CloseStream, waits for the last final transcript and closes the socket
func (a *DeepgramAdapter) Stop(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()

	if err := a.finalize(fctx); err != nil {
		log.Printf("deepgram: finalize: %v", err)
	}
	return a.close()
}

func (a *DeepgramAdapter) finalize(ctx context.Context) error {
	a.mu.Lock()
	if !a.started || a.conn == nil {
		a.mu.Unlock()
		return nil
	}

	// drain any previous finalize signals
	select {
	case <-a.finalizeDone:
	default:
	}

	a.closing = true
	err := a.conn.WriteJSON(deepgramCloseStream{Type: "CloseStream"})
	a.mu.Unlock()

	if err != nil {
		return fmt.Errorf("finalize write: %w", err)
	}

	log.Printf("deepgram: sent CloseStream, waiting for final transcript")

	select {
	case <-a.finalizeDone:
		log.Printf("deepgram: finalize complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
}

func (a *DeepgramAdapter) close() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}

	// cancel first so the reader does not try to reconnect
	if a.cancel != nil {
		a.cancel()
	}
	conn := a.conn
	a.conn = nil
	a.started = false
	a.mu.Unlock()

	// close outside of lock (readLoop may be blocked on read)
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}

	a.wg.Wait()

	log.Printf("deepgram: closed")
	return nil
}
