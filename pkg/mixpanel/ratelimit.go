package mixpanel

import (
	"context"
	"sync"
	"time"
)

const maxBackoff = 10

// rateLimiter spaces requests by baseRate. Every failed request stretches the
// interval by one more baseRate, up to maxBackoff times; successes shrink it back.
type rateLimiter struct {
	mu         sync.Mutex
	ticker     *time.Ticker
	errorCount int
	baseRate   time.Duration
}

func newRateLimiter(baseRate time.Duration) *rateLimiter {
	return &rateLimiter{
		baseRate: baseRate,
		ticker:   time.NewTicker(baseRate),
	}
}

func (rl *rateLimiter) wait(ctx context.Context) error {
	select {
	case <-rl.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *rateLimiter) close() {
	rl.ticker.Stop()
}

func (rl *rateLimiter) interval() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.errorCount > 0 {
		return rl.baseRate * time.Duration(rl.errorCount)
	}
	return rl.baseRate
}

func (rl *rateLimiter) updateRate(isError bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	update := false
	if isError {
		if rl.errorCount < maxBackoff {
			rl.errorCount++
			update = true
		}
	} else if rl.errorCount > 0 {
		rl.errorCount--
		update = true
	}

	if update {
		tickerRate := rl.baseRate
		if rl.errorCount > 0 {
			tickerRate = rl.baseRate * time.Duration(rl.errorCount)
		}
		rl.ticker.Reset(tickerRate)
	}
}
