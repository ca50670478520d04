package factcheck

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/leonardotrapani/factstream/internal/knowledge"
	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/testutil"
)

const (
	needMoreAnalysis = `{"verdict":"INSUFFICIENT_EVIDENCE","confidence":0.4,"key_evidence":"partial","needs_more_evidence":true,"missing_information":"more"}`
	enoughAnalysis   = `{"verdict":"SUPPORTED","confidence":0.9,"key_evidence":["a","b"],"needs_more_evidence":false}`
	trueVerdict      = `{"verdict":"TRUE","confidence":0.85,"explanation":"checks out","sources":["Encyclopedia",""]}`
)

func evidence(contents ...string) []model.EvidenceItem {
	items := make([]model.EvidenceItem, len(contents))
	for i, c := range contents {
		items[i] = model.EvidenceItem{Content: c, RelevanceScore: 1, Source: model.Source{Name: "kb"}}
	}
	return items
}

func claim(text string) model.Claim {
	return model.Claim{Text: text, Confidence: 0.9}
}

func TestCheckClaim_SingleRetrievalWhenEnough(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["q1","q2","q3"]}`,
		Analyses: []string{enoughAnalysis},
		Verdict:  trueVerdict,
	}
	s := &testutil.MockSearcher{Results: evidence("fact one")}
	e := NewEngine(r, s, DefaultOptions())

	res := e.CheckClaim(context.Background(), claim("The sky is blue"))

	if res.Verdict != model.VerdictTrue || !res.IsTrue || res.Confidence != 0.85 {
		t.Errorf("result = %s %v %.2f, want TRUE true 0.85", res.Verdict, res.IsTrue, res.Confidence)
	}
	if diff := cmp.Diff([]string{"q1"}, s.Queries()); diff != "" {
		t.Errorf("searched queries mismatch (-want +got):\n%s", diff)
	}
	if res.Metadata.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", res.Metadata.Iterations)
	}
	if diff := cmp.Diff([]string{"Encyclopedia"}, res.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if res.Metadata.Analysis == nil || res.Metadata.Analysis.Support != model.Supported {
		t.Errorf("analysis = %+v", res.Metadata.Analysis)
	}
	if res.Metadata.Analysis.KeyEvidence != "a; b" {
		t.Errorf("KeyEvidence = %q, want list joined", res.Metadata.Analysis.KeyEvidence)
	}
	if res.Metadata.Error != "" {
		t.Errorf("unexpected error metadata %q", res.Metadata.Error)
	}
	if got := len(r.PromptsOf(llm.PromptAnalysis)); got != 1 {
		t.Errorf("analysis prompts = %d, want 1", got)
	}
}

func TestCheckClaim_IterationBoundAndQueryReuse(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["first","second"]}`,
		Analyses: []string{needMoreAnalysis},
		Verdict:  trueVerdict,
	}
	s := &testutil.MockSearcher{Results: evidence("x", "y")}
	e := NewEngine(r, s, Options{MaxIterations: 3})

	res := e.CheckClaim(context.Background(), claim("Something unclear"))

	// the third round reuses the last query
	if diff := cmp.Diff([]string{"first", "second", "second"}, s.Queries()); diff != "" {
		t.Errorf("searched queries mismatch (-want +got):\n%s", diff)
	}
	if res.Metadata.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", res.Metadata.Iterations)
	}
	if len(res.Metadata.Evidence) != 6 {
		t.Errorf("evidence = %d items, want 6 accumulated", len(res.Metadata.Evidence))
	}
	if got := len(r.PromptsOf(llm.PromptVerdict)); got != 1 {
		t.Errorf("verdict prompts = %d, want 1", got)
	}
}

func TestCheckClaim_EvidenceNeverShrinks(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["a","b","c"]}`,
		Analyses: []string{needMoreAnalysis, needMoreAnalysis, enoughAnalysis},
		Verdict:  trueVerdict,
	}
	s := &testutil.MockSearcher{ByQuery: map[string][]model.EvidenceItem{
		"a": evidence("one"),
		"b": nil,
		"c": evidence("one", "two"),
	}}
	e := NewEngine(r, s, Options{MaxIterations: 5})
	e.CheckClaim(context.Background(), claim("claim"))

	analyses := r.PromptsOf(llm.PromptAnalysis)
	if len(analyses) != 3 {
		t.Fatalf("analysis prompts = %d, want 3", len(analyses))
	}
	wantCounts := []int{1, 1, 3}
	for i, p := range analyses {
		if got := strings.Count(p, "Source: kb"); got != wantCounts[i] {
			t.Errorf("round %d evidence items = %d, want %d", i+1, got, wantCounts[i])
		}
	}
	if !strings.Contains(analyses[1], "[1] one") {
		t.Error("second round lost earlier evidence")
	}
}

func TestCheckClaim_NoEvidence(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries: `{"queries":["q"]}`,
		Verdict: `{"verdict":"UNVERIFIABLE","confidence":0.3,"explanation":"nothing found","sources":[]}`,
	}
	e := NewEngine(r, &testutil.MockSearcher{}, Options{MaxIterations: 1})
	res := e.CheckClaim(context.Background(), claim("claim"))

	analyses := r.PromptsOf(llm.PromptAnalysis)
	if len(analyses) != 1 || !strings.Contains(analyses[0], "No evidence found.") {
		t.Errorf("analysis prompt should state no evidence: %v", analyses)
	}
	if res.Verdict != model.VerdictUnverifiable || res.Confidence != 0.3 {
		t.Errorf("result = %s %.2f", res.Verdict, res.Confidence)
	}
}

func TestCheckClaim_FallsBackToClaimText(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["", "  "]}`,
		Analyses: []string{enoughAnalysis},
		Verdict:  trueVerdict,
	}
	s := &testutil.MockSearcher{}
	e := NewEngine(r, s, DefaultOptions())
	res := e.CheckClaim(context.Background(), claim("Honey never spoils"))

	if diff := cmp.Diff([]string{"Honey never spoils"}, s.Queries()); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Honey never spoils"}, res.Metadata.Queries); diff != "" {
		t.Errorf("metadata queries mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckClaim_MaxQueries(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["a","b","c","d","e"]}`,
		Analyses: []string{enoughAnalysis},
		Verdict:  trueVerdict,
	}
	s := &testutil.MockSearcher{}
	e := NewEngine(r, s, Options{MaxQueries: 2, SearchLimit: 7})
	res := e.CheckClaim(context.Background(), claim("claim"))

	if diff := cmp.Diff([]string{"a", "b"}, res.Metadata.Queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{7}, s.Limits()); diff != "" {
		t.Errorf("limits mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckClaim_UnknownVerdict(t *testing.T) {
	tests := []struct {
		name    string
		verdict string
	}{
		{"unknown label", `{"verdict":"MOSTLY_HARMLESS","confidence":0.9,"explanation":"?"}`},
		{"missing confidence", `{"verdict":"MAYBE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &testutil.ScriptedResponder{
				Queries:  `{"queries":["q"]}`,
				Analyses: []string{enoughAnalysis},
				Verdict:  tt.verdict,
			}
			res := NewEngine(r, &testutil.MockSearcher{}, DefaultOptions()).CheckClaim(context.Background(), claim("claim"))
			if res.Verdict != model.VerdictUnverifiable || res.Confidence != 0 || res.IsTrue {
				t.Errorf("result = %s %.2f %v, want UNVERIFIABLE 0 false", res.Verdict, res.Confidence, res.IsTrue)
			}
		})
	}
}

func TestCheckClaim_LowercaseVerdictAndClamp(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["q"]}`,
		Analyses: []string{enoughAnalysis},
		Verdict:  `{"verdict":"partly true","confidence":1.7,"explanation":["one","two"]}`,
	}
	res := NewEngine(r, &testutil.MockSearcher{}, DefaultOptions()).CheckClaim(context.Background(), claim("claim"))
	if res.Verdict != model.VerdictPartlyTrue || res.Confidence != 1 {
		t.Errorf("result = %s %.2f, want PARTLY_TRUE 1", res.Verdict, res.Confidence)
	}
	if res.Explanation != "one; two" {
		t.Errorf("Explanation = %q", res.Explanation)
	}
}

func TestCheckClaim_Failures(t *testing.T) {
	tests := []struct {
		name      string
		responder *testutil.ScriptedResponder
		searcher  *testutil.MockSearcher
		wantErr   string
		wantIter  int
	}{
		{
			name:      "llm error",
			responder: &testutil.ScriptedResponder{Err: errors.New("quota exceeded")},
			searcher:  &testutil.MockSearcher{},
			wantErr:   "quota exceeded",
		},
		{
			name:      "search error",
			responder: &testutil.ScriptedResponder{Queries: `{"queries":["q"]}`},
			searcher:  &testutil.MockSearcher{Err: errors.New("disk gone")},
			wantErr:   "disk gone",
			wantIter:  1,
		},
		{
			name:      "not json",
			responder: &testutil.ScriptedResponder{Queries: "I refuse"},
			searcher:  &testutil.MockSearcher{},
			wantErr:   "construct_queries",
		},
		{
			name: "panic in verdict",
			responder: &testutil.ScriptedResponder{
				Queries:  `{"queries":["q"]}`,
				Analyses: []string{enoughAnalysis},
				PanicOn:  llm.PromptVerdict,
			},
			searcher: &testutil.MockSearcher{},
			wantErr:  "panic: scripted panic",
			wantIter: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.responder, tt.searcher, DefaultOptions())
			var notified []model.FactCheckResult
			e.OnResult(notify.Func[model.FactCheckResult](func(_ context.Context, r model.FactCheckResult) error {
				notified = append(notified, r)
				return nil
			}))

			res := e.CheckClaim(context.Background(), claim("claim"))

			if res.Verdict != model.VerdictUnverifiable || res.Confidence != 0 {
				t.Errorf("result = %s %.2f, want UNVERIFIABLE 0", res.Verdict, res.Confidence)
			}
			if !strings.HasPrefix(res.Explanation, "Error during fact checking: ") {
				t.Errorf("Explanation = %q", res.Explanation)
			}
			if !strings.Contains(res.Metadata.Error, tt.wantErr) {
				t.Errorf("Metadata.Error = %q, want it to contain %q", res.Metadata.Error, tt.wantErr)
			}
			if res.Metadata.Iterations != tt.wantIter {
				t.Errorf("Iterations = %d, want %d", res.Metadata.Iterations, tt.wantIter)
			}
			if len(notified) != 1 {
				t.Errorf("observers notified %d times, want 1", len(notified))
			}
		})
	}
}

func TestCheckClaim_EmptyQueryIsNoEvidence(t *testing.T) {
	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["of the"]}`,
		Analyses: []string{enoughAnalysis},
		Verdict:  trueVerdict,
	}
	s := &testutil.MockSearcher{Err: knowledge.ErrEmptyQuery}
	res := NewEngine(r, s, DefaultOptions()).CheckClaim(context.Background(), claim("claim"))
	if res.Metadata.Error != "" || res.Verdict != model.VerdictTrue {
		t.Errorf("result = %s, error %q", res.Verdict, res.Metadata.Error)
	}
}

func TestCheckClaim_CancelledContextIsNotPublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(&testutil.ScriptedResponder{}, &testutil.MockSearcher{}, DefaultOptions())
	notified := 0
	e.OnResult(notify.Func[model.FactCheckResult](func(context.Context, model.FactCheckResult) error {
		notified++
		return nil
	}))

	res := e.CheckClaim(ctx, claim("claim"))
	if res.Verdict != model.VerdictUnverifiable || !strings.Contains(res.Metadata.Error, context.Canceled.Error()) {
		t.Errorf("result = %s, Metadata.Error = %q", res.Verdict, res.Metadata.Error)
	}
	if notified != 0 {
		t.Errorf("observers notified %d times for an abandoned check, want 0", notified)
	}
}

func TestCheckClaim_ObserversGetLiveContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &testutil.ScriptedResponder{Verdict: `{"verdict":"TRUE","confidence":0.9}`}
	e := NewEngine(r, &testutil.MockSearcher{}, DefaultOptions())
	notified := 0
	e.OnResult(notify.Func[model.FactCheckResult](func(octx context.Context, _ model.FactCheckResult) error {
		// observers outlive the caller's request
		cancel()
		if octx.Err() != nil {
			t.Error("observer received a cancelled context")
		}
		notified++
		return nil
	}))

	e.CheckClaim(ctx, claim("claim"))
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
}

func TestCheckClaim_MockResponderWithSeededStore(t *testing.T) {
	ctx := context.Background()
	store, err := knowledge.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := knowledge.Seed(ctx, store); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(llm.NewMockResponder(), store, DefaultOptions())
	res := e.CheckClaim(ctx, claim("Water boils at exactly 100 degrees Celsius at all elevations"))

	if res.Verdict != model.VerdictFalse || res.IsTrue || res.Confidence <= 0.9 {
		t.Errorf("result = %s %v %.2f, want FALSE above 0.9", res.Verdict, res.IsTrue, res.Confidence)
	}
	if res.Metadata.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", res.Metadata.Iterations)
	}
	if len(res.Metadata.Evidence) == 0 {
		t.Error("no evidence retrieved from the seeded store")
	}
	if res.Metadata.Analysis.Support != model.Contradicted {
		t.Errorf("Support = %s, want CONTRADICTED", res.Metadata.Analysis.Support)
	}

	unknown := e.CheckClaim(ctx, claim("Bananas are berries"))
	if unknown.Metadata.Iterations != 3 {
		t.Errorf("unknown claim iterations = %d, want the bound of 3", unknown.Metadata.Iterations)
	}
	if unknown.Verdict != model.VerdictUnverifiable {
		t.Errorf("unknown claim verdict = %s", unknown.Verdict)
	}
}

func TestCheckAll_OrderAndConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	block := make(chan struct{})
	var once sync.Once

	s := searcherFunc(func(ctx context.Context, query string, _ int) ([]model.EvidenceItem, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == 2 {
			once.Do(func() { close(block) })
		}
		select {
		case <-block:
		case <-ctx.Done():
		}
		return evidence(query), nil
	})

	r := &testutil.ScriptedResponder{
		Queries:  `{"queries":["q"]}`,
		Analyses: []string{enoughAnalysis},
		Verdict:  trueVerdict,
	}
	e := NewEngine(r, s, Options{Concurrency: 2})

	claims := []model.Claim{claim("one"), claim("two"), claim("three"), claim("four")}
	results := e.CheckAll(context.Background(), claims)

	if len(results) != len(claims) {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res.Claim.Text != claims[i].Text {
			t.Errorf("result %d is for %q, want %q", i, res.Claim.Text, claims[i].Text)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", p)
	}
}

func TestOptionsDefaults(t *testing.T) {
	got := NewEngine(nil, nil, Options{MaxIterations: -4}).Options()
	want := Options{MaxIterations: 1, MaxQueries: 3, SearchLimit: 5, Concurrency: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatEvidence(t *testing.T) {
	got := FormatEvidence([]model.EvidenceItem{
		{Content: "first", Source: model.Source{Name: "A"}},
		{Content: "second"},
	})
	want := "[1] first\nSource: A\n\n[2] second\nSource: Unknown\n\n"
	if got != want {
		t.Errorf("FormatEvidence() = %q, want %q", got, want)
	}
	if FormatEvidence(nil) != "No evidence found." {
		t.Error("empty evidence not reported")
	}
}

func TestTransitions(t *testing.T) {
	for _, s := range []State{StateConstructQueries, StateRetrieveEvidence, StateGenerateVerdict} {
		if _, ok := transitions[edge{s, always}]; !ok {
			t.Errorf("%s has no unconditional edge", s)
		}
	}
	if transitions[edge{StateAnalyzeEvidence, needMore}] != StateRetrieveEvidence {
		t.Error("analysis needing more evidence must loop to retrieval")
	}
	if transitions[edge{StateAnalyzeEvidence, enough}] != StateGenerateVerdict {
		t.Error("sufficient analysis must go to the verdict")
	}
	if _, ok := transitions[edge{StateDone, always}]; ok {
		t.Error("done must be terminal")
	}
}

type searcherFunc func(context.Context, string, int) ([]model.EvidenceItem, error)

func (f searcherFunc) Search(ctx context.Context, q string, limit int) ([]model.EvidenceItem, error) {
	return f(ctx, q, limit)
}
