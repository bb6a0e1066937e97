// Package throttle coalesces a stream of values down to a bounded send rate.
//
// A Coalescer is a bandwidth control, not a queue: while the limiter is
// closed, each new value replaces the pending one, so only the most recent
// value is ever sent. Time is passed in explicitly to keep callers testable
// and to let one event loop drive many coalescers from a single tick.
package throttle

import (
	"time"

	"golang.org/x/time/rate"
)

// Coalescer holds at most one pending value and releases it at a bounded rate.
// It is not safe for concurrent use.
type Coalescer[T any] struct {
	limiter *rate.Limiter
	pending T
	has     bool
}

// Every allows one send per interval. A non-positive interval disables throttling.
func Every[T any](interval time.Duration) *Coalescer[T] {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Coalescer[T]{limiter: rate.NewLimiter(limit, 1)}
}

// PerSecond allows n sends per second. A non-positive n disables throttling.
func PerSecond[T any](n float64) *Coalescer[T] {
	limit := rate.Inf
	if n > 0 {
		limit = rate.Limit(n)
	}
	return &Coalescer[T]{limiter: rate.NewLimiter(limit, 1)}
}

// Offer makes v the pending value and returns it if a send is allowed at now.
// When it returns false, v stays pending until Flush, Drain or a later Offer.
func (c *Coalescer[T]) Offer(now time.Time, v T) (T, bool) {
	c.pending, c.has = v, true
	return c.Flush(now)
}

// Flush returns the pending value if there is one and a send is allowed at now.
func (c *Coalescer[T]) Flush(now time.Time) (T, bool) {
	var zero T
	if !c.has || !c.limiter.AllowN(now, 1) {
		return zero, false
	}
	return c.take(), true
}

// Drain returns the pending value regardless of the limiter. Used when a
// gesture ends and the final state must be sent.
func (c *Coalescer[T]) Drain() (T, bool) {
	var zero T
	if !c.has {
		return zero, false
	}
	return c.take(), true
}

// Pending reports whether a value is waiting to be sent.
func (c *Coalescer[T]) Pending() bool {
	return c.has
}

// Reset drops the pending value.
func (c *Coalescer[T]) Reset() {
	var zero T
	c.pending, c.has = zero, false
}

func (c *Coalescer[T]) take() T {
	var zero T
	v := c.pending
	c.pending, c.has = zero, false
	return v
}
