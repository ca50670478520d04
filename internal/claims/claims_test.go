package claims

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
)

type stubResponder struct {
	reply string
	err   error
	calls int
}

func (s *stubResponder) Complete(context.Context, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func finalEvent(text string) model.TranscriptEvent {
	return model.TranscriptEvent{ID: "t-1", Text: text, IsFinal: true, StartTime: 1, EndTime: 4}
}

func TestDetect_Formats(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantTexts []string
	}{
		{
			name:      "bare list",
			reply:     `[{"text":"A is B","confidence":0.9},{"text":"C is D"}]`,
			wantTexts: []string{"A is B", "C is D"},
		},
		{
			name:      "wrapped object",
			reply:     `{"claims":[{"text":"A is B","confidence":0.8,"context":"ctx"}]}`,
			wantTexts: []string{"A is B"},
		},
		{
			name:      "fenced list",
			reply:     "```json\n[{\"text\":\"A is B\"}]\n```",
			wantTexts: []string{"A is B"},
		},
		{
			name:      "skips entries without text",
			reply:     `[{"confidence":0.9},{"text":"  "},{"text":"kept"}]`,
			wantTexts: []string{"kept"},
		},
		{
			name:  "unexpected object",
			reply: `{"result":"nothing"}`,
		},
		{
			name:  "prose only",
			reply: "There are no claims here.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(&stubResponder{reply: tt.reply}, "stub", 0)
			got := d.Detect(context.Background(), finalEvent("some speech"))
			if len(got) != len(tt.wantTexts) {
				t.Fatalf("got %d claims, want %d", len(got), len(tt.wantTexts))
			}
			for i, c := range got {
				if c.Text != tt.wantTexts[i] {
					t.Errorf("claim %d = %q, want %q", i, c.Text, tt.wantTexts[i])
				}
			}
		})
	}
}

func TestDetect_ClaimFields(t *testing.T) {
	d := NewDetector(&stubResponder{reply: `[{"text":"A is B","context":"about A"},{"text":"C","confidence":0.3}]`}, "stub-model", 0)
	got := d.Detect(context.Background(), finalEvent("speech about A"))
	if len(got) != 2 {
		t.Fatalf("got %d claims, want 2", len(got))
	}

	c := got[0]
	if c.Confidence != defaultConfidence {
		t.Errorf("Confidence = %v, want default %v", c.Confidence, defaultConfidence)
	}
	if c.Context != "about A" || c.SourceText != "speech about A" {
		t.Errorf("context/source = %q/%q", c.Context, c.SourceText)
	}
	if c.TranscriptID != "t-1" || c.StartTime != 1 || c.EndTime != 4 {
		t.Errorf("transcript link = %q (%v-%v)", c.TranscriptID, c.StartTime, c.EndTime)
	}
	if c.Metadata["model"] != "stub-model" {
		t.Errorf("metadata model = %v", c.Metadata["model"])
	}
	if got[1].Confidence != 0.3 {
		t.Errorf("explicit confidence = %v, want 0.3", got[1].Confidence)
	}
}

func TestDetect_MinConfidence(t *testing.T) {
	d := NewDetector(&stubResponder{reply: `[{"text":"low","confidence":0.2},{"text":"high","confidence":0.95}]`}, "", 0.5)
	got := d.Detect(context.Background(), finalEvent("x"))
	if len(got) != 1 || got[0].Text != "high" {
		t.Errorf("got %+v, want only the high-confidence claim", got)
	}
}

func TestDetect_ErrorYieldsEmpty(t *testing.T) {
	stub := &stubResponder{err: errors.New("upstream down")}
	d := NewDetector(stub, "", 0)
	if got := d.Detect(context.Background(), finalEvent("x")); len(got) != 0 {
		t.Errorf("got %d claims on error, want 0", len(got))
	}
}

func TestDetect_EmptyTranscriptSkipsLLM(t *testing.T) {
	stub := &stubResponder{reply: `[{"text":"x"}]`}
	d := NewDetector(stub, "", 0)
	if got := d.Detect(context.Background(), finalEvent("   ")); got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if stub.calls != 0 {
		t.Errorf("responder called %d times for empty transcript", stub.calls)
	}
}

func TestDetect_MockResponder(t *testing.T) {
	d := NewDetector(llm.NewMockResponder(), "mock-llm", 0.5)
	got := d.Detect(context.Background(), finalEvent("Water boils at 100 degrees everywhere."))
	if len(got) != 6 {
		t.Fatalf("got %d claims from mock, want 6", len(got))
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "water", 10, "water"},
		{"ascii cut", "water boils", 5, "water"},
		{"cut inside rune", "café au lait", 4, "caf"},
		{"cut after rune", "café au lait", 5, "café"},
		{"multibyte only", "中文字", 7, "中文"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preview(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("preview(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("preview(%q, %d) = %q is not valid UTF-8", tt.in, tt.n, got)
			}
		})
	}
}
