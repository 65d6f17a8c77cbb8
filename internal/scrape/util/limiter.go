package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out network calls made on behalf of one source. The first
// call goes through immediately; each later call waits until interval has
// passed since the previous one.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer returns a pacer with the given minimum spacing. A non-positive
// interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.lim.Wait(ctx)
}
