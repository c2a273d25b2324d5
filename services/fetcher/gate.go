package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate paces outbound requests. Implementations must be safe for concurrent use.
type Gate interface {
	Wait(ctx context.Context) error
}

// IntervalGate enforces a fixed minimum interval between requests
type IntervalGate struct {
	limiter *rate.Limiter
}

// NewIntervalGate creates a gate that lets one request through per interval.
// The initial token is drained so the very first request waits as well.
// A non-positive interval disables pacing.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	if interval <= 0 {
		return &IntervalGate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()

	return &IntervalGate{limiter: limiter}
}

// Wait blocks until the next request may be sent or ctx is done
func (g *IntervalGate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
