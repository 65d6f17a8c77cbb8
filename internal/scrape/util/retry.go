package util

import (
	"context"
	"time"
)

// Backoff configures Retry. Attempts counts the first call.
type Backoff struct {
	Attempts   int
	Interval   time.Duration
	Multiplier float64
	Max        time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Interval: 500 * time.Millisecond, Multiplier: 2, Max: 5 * time.Second}
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Interval
	for i := 1; i < attempt; i++ {
		if b.Multiplier > 1 {
			d = time.Duration(float64(d) * b.Multiplier)
		}
		if b.Max > 0 && d > b.Max {
			return b.Max
		}
	}
	return d
}

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// the attempt budget runs out. The last error is returned. Waiting between
// attempts stops early if ctx is done.
func Retry(ctx context.Context, b Backoff, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return err
			}
			return cerr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		t := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
