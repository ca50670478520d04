package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited spaces out calls to a Responder to at most perMinute per minute
type Limited struct {
	next    Responder
	limiter *rate.Limiter
}

func NewLimited(r Responder, perMinute int) *Limited {
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    r,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst),
	}
}

func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return l.next.Complete(ctx, prompt)
}
