package factcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/leonardotrapani/factstream/internal/knowledge"
	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
)

// State is a step of the verification workflow
type State int

const (
	StateConstructQueries State = iota
	StateRetrieveEvidence
	StateAnalyzeEvidence
	StateGenerateVerdict
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConstructQueries:
		return "construct_queries"
	case StateRetrieveEvidence:
		return "retrieve_evidence"
	case StateAnalyzeEvidence:
		return "analyze_evidence"
	case StateGenerateVerdict:
		return "generate_verdict"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// guard is the outcome of a step that selects the outgoing edge
type guard int

const (
	always guard = iota
	needMore
	enough
)

type edge struct {
	from  State
	guard guard
}

var transitions = map[edge]State{
	{StateConstructQueries, always}: StateRetrieveEvidence,
	{StateRetrieveEvidence, always}: StateAnalyzeEvidence,
	{StateAnalyzeEvidence, needMore}: StateRetrieveEvidence,
	{StateAnalyzeEvidence, enough}:   StateGenerateVerdict,
	{StateGenerateVerdict, always}:   StateDone,
}

// run is the mutable record of one claim's verification
type run struct {
	claim         model.Claim
	queries       []string
	evidence      []model.EvidenceItem
	analysis      *model.EvidenceAnalysis
	iteration     int
	maxIterations int
	verdict       verdictReply
	trace         []State
}

// flexString accepts a JSON string, a list of strings, or any other value
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = flexString(strings.Join(list, "; "))
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

type queriesReply struct {
	Queries []string `json:"queries"`
}

type analysisReply struct {
	Verdict            string     `json:"verdict"`
	Confidence         float64    `json:"confidence"`
	KeyEvidence        flexString `json:"key_evidence"`
	NeedsMoreEvidence  bool       `json:"needs_more_evidence"`
	MissingInformation flexString `json:"missing_information"`
}

type verdictReply struct {
	Verdict     string       `json:"verdict"`
	Confidence  *float64     `json:"confidence"`
	Explanation flexString   `json:"explanation"`
	Sources     []flexString `json:"sources"`
}

func (e *Engine) execute(ctx context.Context, r *run) error {
	state := StateConstructQueries
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.trace = append(r.trace, state)

		g, err := e.step(ctx, r, state)
		if err != nil {
			return fmt.Errorf("%s: %w", state, err)
		}
		next, ok := transitions[edge{state, g}]
		if !ok {
			return fmt.Errorf("no transition from %s", state)
		}
		state = next
	}
	return nil
}

func (e *Engine) step(ctx context.Context, r *run, s State) (guard, error) {
	switch s {
	case StateConstructQueries:
		return always, e.constructQueries(ctx, r)
	case StateRetrieveEvidence:
		return always, e.retrieveEvidence(ctx, r)
	case StateAnalyzeEvidence:
		if err := e.analyzeEvidence(ctx, r); err != nil {
			return always, err
		}
		if r.analysis.NeedsMoreEvidence && r.iteration < r.maxIterations {
			return needMore, nil
		}
		return enough, nil
	case StateGenerateVerdict:
		return always, e.generateVerdict(ctx, r)
	default:
		return always, fmt.Errorf("unexpected state %s", s)
	}
}

func (e *Engine) constructQueries(ctx context.Context, r *run) error {
	var reply queriesReply
	if err := llm.CompleteJSON(ctx, e.responder, llm.QueryPrompt(r.claim.Text, r.claim.Context), &reply); err != nil {
		return err
	}

	for _, q := range reply.Queries {
		if q = strings.TrimSpace(q); q != "" {
			r.queries = append(r.queries, q)
		}
		if len(r.queries) == e.opts.MaxQueries {
			break
		}
	}
	if len(r.queries) == 0 {
		r.queries = []string{r.claim.Text}
	}
	log.Printf("factcheck: generated %d search queries", len(r.queries))
	return nil
}

func (e *Engine) retrieveEvidence(ctx context.Context, r *run) error {
	r.iteration++
	idx := min(r.iteration-1, len(r.queries)-1)
	query := r.queries[idx]

	items, err := e.searcher.Search(ctx, query, e.opts.SearchLimit)
	if errors.Is(err, knowledge.ErrEmptyQuery) {
		log.Printf("factcheck: query %q has no searchable terms", query)
		err = nil
	}
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	r.evidence = append(r.evidence, items...)
	log.Printf("factcheck: iteration %d retrieved %d evidence items for %q", r.iteration, len(items), query)
	return nil
}

func (e *Engine) analyzeEvidence(ctx context.Context, r *run) error {
	var reply analysisReply
	prompt := llm.AnalysisPrompt(r.claim.Text, r.claim.Context, FormatEvidence(r.evidence))
	if err := llm.CompleteJSON(ctx, e.responder, prompt, &reply); err != nil {
		return err
	}

	r.analysis = &model.EvidenceAnalysis{
		Support:            model.ParseSupport(reply.Verdict),
		Confidence:         reply.Confidence,
		KeyEvidence:        string(reply.KeyEvidence),
		NeedsMoreEvidence:  reply.NeedsMoreEvidence,
		MissingInformation: string(reply.MissingInformation),
	}
	log.Printf("factcheck: evidence analysis complete: %s", r.analysis.Support)
	return nil
}

func (e *Engine) generateVerdict(ctx context.Context, r *run) error {
	analysis, err := json.Marshal(r.analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	prompt := llm.VerdictPrompt(r.claim.Text, r.claim.Context, string(analysis))
	if err := llm.CompleteJSON(ctx, e.responder, prompt, &r.verdict); err != nil {
		return err
	}
	log.Printf("factcheck: final verdict: %s", r.verdict.Verdict)
	return nil
}

// FormatEvidence renders evidence as the numbered list the analysis prompt expects
func FormatEvidence(items []model.EvidenceItem) string {
	if len(items) == 0 {
		return "No evidence found."
	}
	var b strings.Builder
	for i, it := range items {
		source := it.Source.Name
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&b, "[%d] %s\nSource: %s\n\n", i+1, it.Content, source)
	}
	return b.String()
}
