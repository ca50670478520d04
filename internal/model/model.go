package model

import (
	"strings"
	"time"
)

// TranscriptEvent is a single transcription result produced by a backend.
// It is passed by value and never modified after creation.
type TranscriptEvent struct {
	ID         string    `json:"id"`
	Text       string    `json:"transcript"`
	Confidence float64   `json:"confidence"`
	IsFinal    bool      `json:"is_final"`
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Timestamp  time.Time `json:"timestamp"`
}

// Claim is a candidate factual assertion extracted from a final transcript
type Claim struct {
	Text         string         `json:"text"`
	TranscriptID string         `json:"transcript_id,omitempty"`
	Confidence   float64        `json:"confidence"`
	SourceText   string         `json:"source_text,omitempty"`
	Context      string         `json:"context,omitempty"`
	StartTime    float64        `json:"start_time"`
	EndTime      float64        `json:"end_time"`
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Source identifies where a piece of evidence came from
type Source struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// EvidenceItem is one passage returned by a knowledge search
type EvidenceItem struct {
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	Source         Source  `json:"source"`
}

// Verdict is the final judgment on a claim
type Verdict string

const (
	VerdictTrue         Verdict = "TRUE"
	VerdictFalse        Verdict = "FALSE"
	VerdictPartlyTrue   Verdict = "PARTLY_TRUE"
	VerdictUnverifiable Verdict = "UNVERIFIABLE"
	VerdictMisleading   Verdict = "MISLEADING"
	VerdictOutdated     Verdict = "OUTDATED"
)

var verdicts = []Verdict{
	VerdictTrue, VerdictFalse, VerdictPartlyTrue,
	VerdictUnverifiable, VerdictMisleading, VerdictOutdated,
}

// ParseVerdict accepts any casing and spaces or dashes in place of underscores
func ParseVerdict(s string) (Verdict, bool) {
	norm := normalizeEnum(s)
	for _, v := range verdicts {
		if string(v) == norm {
			return v, true
		}
	}
	return VerdictUnverifiable, false
}

// Support is the evidence analysis category
type Support string

const (
	Supported            Support = "SUPPORTED"
	Contradicted         Support = "CONTRADICTED"
	InsufficientEvidence Support = "INSUFFICIENT_EVIDENCE"
)

// ParseSupport maps unknown categories to InsufficientEvidence
func ParseSupport(s string) Support {
	switch Support(normalizeEnum(s)) {
	case Supported:
		return Supported
	case Contradicted:
		return Contradicted
	default:
		return InsufficientEvidence
	}
}

func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// EvidenceAnalysis is the outcome of one analysis round
type EvidenceAnalysis struct {
	Support            Support `json:"verdict"`
	Confidence         float64 `json:"confidence"`
	KeyEvidence        string  `json:"key_evidence"`
	NeedsMoreEvidence  bool    `json:"needs_more_evidence"`
	MissingInformation string  `json:"missing_information,omitempty"`
}

// FactCheckResult is what a verification run produces for one claim
type FactCheckResult struct {
	Claim       Claim          `json:"claim"`
	Verdict     Verdict        `json:"verdict"`
	IsTrue      bool           `json:"is_true"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation"`
	Sources     []string       `json:"sources"`
	Metadata    ResultMetadata `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ResultMetadata records how a verdict was reached
type ResultMetadata struct {
	Queries    []string          `json:"queries,omitempty"`
	Evidence   []EvidenceItem    `json:"evidence,omitempty"`
	Analysis   *EvidenceAnalysis `json:"evidence_analysis,omitempty"`
	Iterations int               `json:"iteration_count"`
	Error      string            `json:"error,omitempty"`
}
