package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
)

const defaultConfidence = 0.7

// Detector extracts candidate factual claims from final transcripts
type Detector struct {
	responder     llm.Responder
	modelName     string
	minConfidence float64
}

func NewDetector(r llm.Responder, modelName string, minConfidence float64) *Detector {
	if modelName == "" {
		modelName = "unknown"
	}
	return &Detector{responder: r, modelName: modelName, minConfidence: minConfidence}
}

type rawClaim struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Context    *string  `json:"context"`
}

// Detect never fails: a broken completion yields no claims
func (d *Detector) Detect(ctx context.Context, ev model.TranscriptEvent) []model.Claim {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}

	log.Printf("claims: detecting claims in transcript: %s...", preview(text, 100))

	reply, err := d.responder.Complete(ctx, llm.ClaimDetectionPrompt(text))
	if err != nil {
		log.Printf("claims: error detecting claims: %v", err)
		return nil
	}

	raws, err := parseClaims(reply)
	if err != nil {
		log.Printf("claims: %v", err)
		return nil
	}

	out := make([]model.Claim, 0, len(raws))
	for _, rc := range raws {
		c, ok := d.toClaim(rc, ev)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	log.Printf("claims: detected %d claims in transcript", len(out))
	return out
}

func (d *Detector) toClaim(rc rawClaim, ev model.TranscriptEvent) (model.Claim, bool) {
	text := strings.TrimSpace(rc.Text)
	if text == "" {
		return model.Claim{}, false
	}
	confidence := defaultConfidence
	if rc.Confidence != nil {
		confidence = *rc.Confidence
	}
	if confidence < d.minConfidence {
		return model.Claim{}, false
	}

	var claimContext string
	if rc.Context != nil {
		claimContext = *rc.Context
	}

	transcriptID := ev.ID
	if transcriptID == "" {
		transcriptID = fmt.Sprint(ev.Timestamp.Unix())
	}

	return model.Claim{
		Text:         text,
		TranscriptID: transcriptID,
		Confidence:   confidence,
		SourceText:   ev.Text,
		Context:      claimContext,
		StartTime:    ev.StartTime,
		EndTime:      ev.EndTime,
		Timestamp:    time.Now(),
		Metadata: map[string]any{
			"model":             d.modelName,
			"original_response": rc,
		},
	}, true
}

// parseClaims accepts either a bare list or an object with a "claims" list
func parseClaims(reply string) ([]rawClaim, error) {
	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	var list []rawClaim
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Claims *[]rawClaim `json:"claims"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil || wrapped.Claims == nil {
		return nil, fmt.Errorf("unexpected response format: %.200s", raw)
	}
	return *wrapped.Claims, nil
}

// preview cuts s to at most n bytes without splitting a rune
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
