// Package ratelimit implements a process-wide token bucket that guards the
// upstream attestation API and is reused for the intake API's per-client
// request throttle.
//
// It is deliberately simpler than github.com/joeycumines/go-catrate's
// multi-window sliding-log limiter: a single (capacity, refill rate) pair,
// lazily refilled with no background worker. catrate's idioms - an
// injectable timeNow for deterministic tests, and guarding a small piece of
// numeric state behind a mutex rather than reaching for heavier
// synchronization - are carried over (see catrate/limiter.go).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// for testing purposes
var timeNow = time.Now

// Bucket is a token-bucket limiter safe for concurrent use. Construct with
// NewBucket; the zero value is not usable.
type Bucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second
	tokens   float64
	last     time.Time
}

// NewBucket creates a token bucket with burst capacity and refill rate
// tokens/second. Both must be positive.
func NewBucket(capacity, rate float64) *Bucket {
	if capacity <= 0 || rate <= 0 {
		panic("ratelimit: capacity and rate must be positive")
	}
	return &Bucket{
		capacity: capacity,
		rate:     rate,
		tokens:   capacity,
		last:     timeNow(),
	}
}

// Acquire blocks until one token is available, then consumes it. It
// returns early with ctx.Err() if ctx is canceled while waiting, so the
// poller loop can honor shutdown during a long wait.
//
// Available tokens are min(capacity, current + elapsed*rate); if at least
// one is available it is consumed immediately, otherwise the caller sleeps
// for the time needed for exactly one token to become available, then
// rechecks.
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		wait, ok := b.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// TryAcquire attempts to consume a token without blocking, returning
// whether one was available. Used by callers that want to reject rather
// than wait when the bucket is empty (e.g. the intake API's per-client
// throttle).
func (b *Bucket) TryAcquire() bool {
	_, ok := b.tryAcquire()
	return ok
}

// tryAcquire attempts to consume a token without blocking. If it fails, it
// returns the duration the caller should wait before retrying.
func (b *Bucket) tryAcquire() (wait time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := timeNow()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	deficit := 1 - b.tokens
	return time.Duration(deficit / b.rate * float64(time.Second)), false
}
