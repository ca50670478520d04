package factcheck

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leonardotrapani/factstream/internal/knowledge"
	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
)

// Options tunes the verification loop
type Options struct {
	MaxIterations int // retrieval rounds per claim, at least 1
	MaxQueries    int // search queries kept from the LLM
	SearchLimit   int // evidence items per retrieval
	Concurrency   int // claims verified in parallel by CheckAll
}

func DefaultOptions() Options {
	return Options{MaxIterations: 3, MaxQueries: 3, SearchLimit: 5, Concurrency: 1}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations < 1 {
		o.MaxIterations = 1
	}
	if o.MaxQueries < 1 {
		o.MaxQueries = d.MaxQueries
	}
	if o.SearchLimit < 1 {
		o.SearchLimit = d.SearchLimit
	}
	if o.Concurrency < 1 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// Engine verifies claims against a knowledge searcher with an LLM in the loop
type Engine struct {
	responder llm.Responder
	searcher  knowledge.Searcher
	opts      Options
	results   *notify.List[model.FactCheckResult]
}

func NewEngine(r llm.Responder, s knowledge.Searcher, opts Options) *Engine {
	return &Engine{
		responder: r,
		searcher:  s,
		opts:      opts.withDefaults(),
		results:   notify.NewList[model.FactCheckResult]("factcheck"),
	}
}

func (e *Engine) Options() Options {
	return e.opts
}

// OnResult registers an observer called once for every finished check
func (e *Engine) OnResult(o notify.Observer[model.FactCheckResult]) {
	e.results.Add(o)
}

// CheckClaim always returns a result. Failures in any state, panics included,
// produce an UNVERIFIABLE result carrying the error.
func (e *Engine) CheckClaim(ctx context.Context, claim model.Claim) model.FactCheckResult {
	log.Printf("factcheck: checking claim: %s", claim.Text)
	start := time.Now()

	r := &run{claim: claim, maxIterations: e.opts.MaxIterations}
	err := e.safeExecute(ctx, r)

	var result model.FactCheckResult
	if err != nil {
		log.Printf("factcheck: error checking claim: %v", err)
		result = errorResult(claim, r, err)
	} else {
		result = buildResult(claim, r)
	}

	log.Printf("factcheck: %s (%.2f) after %d iterations in %v [%s]",
		result.Verdict, result.Confidence, r.iteration, time.Since(start), traceString(r.trace))

	// an abandoned check is returned to the caller but never published
	if ctx.Err() != nil {
		log.Printf("factcheck: caller went away, not publishing result for %q", claim.Text)
		return result
	}
	e.results.Notify(context.WithoutCancel(ctx), result)
	return result
}

func (e *Engine) safeExecute(ctx context.Context, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.execute(ctx, r)
}

// CheckAll verifies claims with at most Options.Concurrency in flight and
// returns results in input order
func (e *Engine) CheckAll(ctx context.Context, claims []model.Claim) []model.FactCheckResult {
	results := make([]model.FactCheckResult, len(claims))
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, c := range claims {
		g.Go(func() error {
			results[i] = e.CheckClaim(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func buildResult(claim model.Claim, r *run) model.FactCheckResult {
	verdict, ok := model.ParseVerdict(r.verdict.Verdict)
	confidence := 0.0
	if ok && r.verdict.Confidence != nil {
		confidence = clamp01(*r.verdict.Confidence)
	}

	sources := make([]string, 0, len(r.verdict.Sources))
	for _, s := range r.verdict.Sources {
		if s != "" {
			sources = append(sources, string(s))
		}
	}

	return model.FactCheckResult{
		Claim:       claim,
		Verdict:     verdict,
		IsTrue:      verdict == model.VerdictTrue,
		Confidence:  confidence,
		Explanation: string(r.verdict.Explanation),
		Sources:     sources,
		Metadata:    metadataOf(r),
		Timestamp:   time.Now(),
	}
}

func errorResult(claim model.Claim, r *run, err error) model.FactCheckResult {
	meta := metadataOf(r)
	meta.Error = err.Error()
	return model.FactCheckResult{
		Claim:       claim,
		Verdict:     model.VerdictUnverifiable,
		Confidence:  0,
		Explanation: "Error during fact checking: " + err.Error(),
		Sources:     []string{},
		Metadata:    meta,
		Timestamp:   time.Now(),
	}
}

func metadataOf(r *run) model.ResultMetadata {
	return model.ResultMetadata{
		Queries:    r.queries,
		Evidence:   r.evidence,
		Analysis:   r.analysis,
		Iterations: r.iteration,
	}
}

func traceString(states []State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = s.String()
	}
	return strings.Join(parts, " > ")
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
