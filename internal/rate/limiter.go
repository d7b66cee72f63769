// Package rate paces outbound Gmail API calls so a large inbox does not burn
// through the per-user quota in a single tick.
package rate

import (
	"context"
	"fmt"

	xrate "golang.org/x/time/rate"
)

// Limiter gates outbound API calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// TokenBucket releases rps tokens per second and holds at most burst of them.
type TokenBucket struct {
	lim *xrate.Limiter
}

// NewTokenBucket returns a limiter whose bucket starts full, so the first
// burst calls proceed immediately.
func NewTokenBucket(rps, burst int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{lim: xrate.NewLimiter(xrate.Limit(rps), burst)}
}

// Wait blocks until a token is available. It fails early when ctx is done or
// its deadline would pass before the next token.
func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.lim.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rate wait canceled: %w", ctxErr)
		}
		return fmt.Errorf("rate wait: %w", err)
	}
	return nil
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = Unlimited{}
)
