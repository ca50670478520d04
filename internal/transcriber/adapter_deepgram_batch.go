package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/provider"
)

// DeepgramBatchAdapter implements BatchTranscriber for Deepgram pre-recorded transcription
type DeepgramBatchAdapter struct {
	endpoint    *provider.EndpointConfig
	apiKey      string
	model       string
	language    string
	smartFormat bool
	punctuate   bool
	client      *http.Client
}

// deepgramBatchResponse is the response from the pre-recorded API
type deepgramBatchResponse struct {
	Metadata *deepgramMetadata     `json:"metadata,omitempty"`
	Results  *deepgramBatchResults `json:"results,omitempty"`
	Error    *deepgramError        `json:"error,omitempty"`
}

type deepgramBatchResults struct {
	Channels   []deepgramBatchChannel `json:"channels,omitempty"`
	Utterances []deepgramUtterance    `json:"utterances,omitempty"`
}

type deepgramBatchChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramUtterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript"`
}

// NewDeepgramBatchAdapter creates a new batch adapter for Deepgram
func NewDeepgramBatchAdapter(endpoint *provider.EndpointConfig, cfg Config) *DeepgramBatchAdapter {
	return &DeepgramBatchAdapter{
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		language:    cfg.Language,
		smartFormat: cfg.SmartFormat,
		punctuate:   cfg.Punctuate,
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// TranscribeFile sends a whole file to Deepgram's pre-recorded API and returns
// one final transcript per utterance
func (a *DeepgramBatchAdapter) TranscribeFile(ctx context.Context, data []byte, format model.AudioFormat) ([]model.TranscriptEvent, error) {
	if len(data) == 0 {
		return nil, nil
	}

	body := data
	contentType := format.Mimetype
	if format.IsRaw() {
		body = wrapPCMAsWAV(data, format.SampleRate, format.Channels)
		contentType = "audio/wav"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	apiURL, err := a.buildURL()
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+a.apiKey)
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, NewTransportError("deepgram", "transcribe", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result deepgramBatchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("deepgram error: %s", result.Error.Message)
	}

	events := result.events()
	log.Printf("deepgram-batch: transcribed %d bytes in %v, %d segments", len(data), time.Since(start), len(events))
	return events, nil
}

func (r *deepgramBatchResponse) events() []model.TranscriptEvent {
	if r.Results == nil {
		return nil
	}
	now := time.Now()

	if len(r.Results.Utterances) > 0 {
		events := make([]model.TranscriptEvent, 0, len(r.Results.Utterances))
		for _, u := range r.Results.Utterances {
			events = append(events, model.TranscriptEvent{
				ID:         uuid.NewString(),
				Text:       u.Transcript,
				Confidence: u.Confidence,
				IsFinal:    true,
				StartTime:  u.Start,
				EndTime:    u.End,
				Timestamp:  now,
			})
		}
		return events
	}

	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return nil
	}
	alt := r.Results.Channels[0].Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	var duration float64
	if r.Metadata != nil {
		duration = r.Metadata.Duration
	}
	return []model.TranscriptEvent{{
		ID:         uuid.NewString(),
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		IsFinal:    true,
		EndTime:    duration,
		Timestamp:  now,
	}}
}

// buildURL constructs the API URL with query parameters
func (a *DeepgramBatchAdapter) buildURL() (string, error) {
	u, err := url.Parse(a.endpoint.URL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	if a.model != "" {
		q.Set("model", a.model)
	}
	q.Set("utterances", "true")
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
