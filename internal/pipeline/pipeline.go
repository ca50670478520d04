package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/wire"
)

type Status string

const (
	Idle      Status = "idle"
	Detecting Status = "detecting"
	Verifying Status = "verifying"
)

// Detector extracts claims from a final transcript
type Detector interface {
	Detect(ctx context.Context, ev model.TranscriptEvent) []model.Claim
}

// Checker verifies claims, returning results in input order
type Checker interface {
	CheckAll(ctx context.Context, claims []model.Claim) []model.FactCheckResult
}

// Sender writes a message to the session's client
type Sender interface {
	Send(v any) error
}

// Pipeline turns a session's final transcripts into claim and verdict
// messages. It is registered as a transcript observer and runs each
// transcript on its own goroutine so the emitter never waits on the LLM.
type Pipeline interface {
	notify.Observer[model.TranscriptEvent]
	OnClaim(o notify.Observer[model.Claim])
	OnResult(o notify.Observer[model.FactCheckResult])
	Stop()
	Status() Status
	InFlight() int
}

type pipeline struct {
	sessionID string
	detector  Detector
	checker   Checker
	out       Sender
	claims    *notify.List[model.Claim]
	results   *notify.List[model.FactCheckResult]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight int
	verifies int
	stopped  bool
}

// New creates a pipeline bound to ctx, normally the session context
func New(ctx context.Context, sessionID string, d Detector, c Checker, out Sender) Pipeline {
	ctx, cancel := context.WithCancel(ctx)
	return &pipeline{
		sessionID: sessionID,
		detector:  d,
		checker:   c,
		out:       out,
		claims:    notify.NewList[model.Claim]("pipeline " + sessionID + " claims"),
		results:   notify.NewList[model.FactCheckResult]("pipeline " + sessionID + " results"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.verifies > 0:
		return Verifying
	case p.inFlight > 0:
		return Detecting
	default:
		return Idle
	}
}

func (p *pipeline) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// OnClaim registers an observer for claims as they are detected
func (p *pipeline) OnClaim(o notify.Observer[model.Claim]) {
	p.claims.Add(o)
}

// OnResult registers an observer for this session's verdicts
func (p *pipeline) OnResult(o notify.Observer[model.FactCheckResult]) {
	p.results.Add(o)
}

// Stop cancels in-flight work and waits for it to finish
func (p *pipeline) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Notify starts claim detection for a final transcript
func (p *pipeline) Notify(_ context.Context, ev model.TranscriptEvent) error {
	if !ev.IsFinal || ev.Text == "" {
		return nil
	}

	p.mu.Lock()
	if p.stopped || p.ctx.Err() != nil {
		p.mu.Unlock()
		return nil
	}
	p.inFlight++
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ev)
	return nil
}

func (p *pipeline) run(ev model.TranscriptEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Pipeline %s: panic processing transcript: %v", p.sessionID, r)
		}
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
		p.wg.Done()
	}()

	claims := p.detector.Detect(p.ctx, ev)
	if len(claims) == 0 {
		return
	}
	log.Printf("Pipeline %s: detected %d claims", p.sessionID, len(claims))

	for i := range claims {
		if claims[i].Metadata == nil {
			claims[i].Metadata = map[string]any{}
		}
		claims[i].Metadata["session_id"] = p.sessionID
		p.send(wire.NewClaimMessage(claims[i]))
		p.claims.Notify(context.WithoutCancel(p.ctx), claims[i])
	}

	p.mu.Lock()
	p.verifies++
	p.mu.Unlock()

	results := p.checker.CheckAll(p.ctx, claims)

	p.mu.Lock()
	p.verifies--
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		log.Printf("Pipeline %s: session ended, dropping %d results", p.sessionID, len(results))
		return
	}
	for _, r := range results {
		p.send(wire.NewFactCheckMessage(r))
		p.results.Notify(context.WithoutCancel(p.ctx), r)
	}
}

func (p *pipeline) send(v any) {
	if p.ctx.Err() != nil {
		return
	}
	if err := p.out.Send(v); err != nil {
		log.Printf("Pipeline %s: send error: %v", p.sessionID, err)
	}
}
