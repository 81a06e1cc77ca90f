package resilience

import "context"

// Guard combines a rate limiter and a circuit breaker for callers that
// are not structured as pipeline stages. Either part may be nil.
type Guard struct {
	lim *Limiter
	brk *Breaker
}

// NewGuard creates a Guard.
func NewGuard(lim *Limiter, brk *Breaker) *Guard {
	return &Guard{lim: lim, brk: brk}
}

// Do waits for a rate token, then runs f under the breaker.
func (g *Guard) Do(ctx context.Context, f func(context.Context) error) error {
	if g.lim != nil {
		if err := g.lim.Wait(ctx); err != nil {
			return err
		}
	}
	if g.brk != nil {
		return g.brk.Call(ctx, f)
	}
	return f(ctx)
}
