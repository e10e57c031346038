package inference

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MinInterval serializes access to a rate-limited external capability and
// enforces a hard minimum delay between consecutive calls. Unlike a token
// bucket it never bursts: the gap between two calls is always at least the
// configured interval, and callers queue on the internal mutex.
type MinInterval struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewMinInterval creates a limiter with the given minimum spacing.
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{interval: interval}
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// then claims the slot. A canceled context releases the caller without
// claiming it.
func (m *MinInterval) Wait(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.last.IsZero() {
		remaining := m.interval - time.Since(m.last)
		if remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}

	m.last = time.Now()
	return nil
}
