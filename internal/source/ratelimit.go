package source

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type waiter struct {
	ctx  context.Context
	done chan error
}

// Limiter spaces requests to one external source. Each adapter owns its own
// Limiter with its own delay; limits are never shared across sources.
//
// Waiters queue up on a channel and a single drain goroutine grants them one
// at a time, so under contention the grant order is exactly the call order.
// The spacing itself comes from an x/time/rate limiter configured for one
// token per delay interval.
type Limiter struct {
	queue chan *waiter
	rl    *rate.Limiter
}

// NewLimiter creates a limiter that allows one grant per delay. A zero or
// negative delay disables spacing but keeps the FIFO ordering.
func NewLimiter(delay time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	l := &Limiter{
		queue: make(chan *waiter, 128),
		rl:    rate.NewLimiter(limit, 1),
	}
	go l.drain()
	return l
}

// Wait blocks until this caller's turn comes up and the spacing interval has
// elapsed. It only fails when ctx is cancelled; rate limiting itself has no
// error conditions.
func (l *Limiter) Wait(ctx context.Context) error {
	w := &waiter{ctx: ctx, done: make(chan error, 1)}
	select {
	case l.queue <- w:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the drain goroutine. Wait must not be called after Close.
func (l *Limiter) Close() {
	close(l.queue)
}

func (l *Limiter) drain() {
	for w := range l.queue {
		// A waiter that gave up while queued should not consume a token.
		if w.ctx.Err() != nil {
			w.done <- w.ctx.Err()
			continue
		}
		w.done <- l.rl.Wait(w.ctx)
	}
}
