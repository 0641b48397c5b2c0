// Package throttle gates outbound requests to an external quota.
package throttle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Gate blocks until the caller may issue one request.
type Gate interface {
	Wait(ctx context.Context) error
}

// IntervalGate admits one request per interval. Burst is fixed at 1, so the
// interval is a hard lower bound between any two admissions, across every
// goroutine sharing the gate.
type IntervalGate struct {
	limiter *rate.Limiter
}

// NewIntervalGate creates a gate with the given minimum spacing. A
// non-positive interval disables throttling.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalGate{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next slot or until ctx is done.
func (g *IntervalGate) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "throttle: wait")
	}
	return nil
}

// Nop is a Gate that never blocks.
type Nop struct{}

// Wait returns ctx.Err() without blocking.
func (Nop) Wait(ctx context.Context) error {
	return ctx.Err()
}
