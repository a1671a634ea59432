package core

// publish_limiter.go bounds how many publishes run at once across all
// sessions. Chunks within one publish are always sequential; the limiter only
// keeps many publishers from saturating the store together. When every slot
// is taken, a new publish waits up to maxWait before failing with
// ErrTooManyPublishes.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyPublishes is returned when no publish slot frees up in time.
var ErrTooManyPublishes = errors.New("too many concurrent publishes, please try again later")

// DefaultMaxConcurrentPublishes is the default number of parallel publishes.
const DefaultMaxConcurrentPublishes = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// PublishLimiter hands out a fixed number of publish slots.
type PublishLimiter struct {
	sem     *semaphore.Weighted
	max     int
	maxWait time.Duration

	mu     sync.RWMutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewPublishLimiter creates a limiter allowing maxConcurrent publishes.
func NewPublishLimiter(maxConcurrent int, maxWait time.Duration) *PublishLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentPublishes
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)

	return &PublishLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     maxConcurrent,
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire waits for a slot. It returns ErrTooManyPublishes if maxWait passes
// first, or ctx's error if ctx ends. Callers must Release a granted slot.
func (l *PublishLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyPublishes
	}
	l.track(1)
	return nil
}

// TryAcquire takes a slot without waiting.
func (l *PublishLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.track(1)
	return true
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *PublishLimiter) Release() {
	l.track(-1)
	l.sem.Release(1)
}

func (l *PublishLimiter) track(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == 0 && delta > 0 {
		l.idle = make(chan struct{})
	}
	l.active += delta
	if l.active == 0 {
		close(l.idle)
	}
}

// ActiveCount returns the number of publishes holding a slot.
func (l *PublishLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *PublishLimiter) MaxConcurrent() int {
	return l.max
}

// Available returns the number of free slots.
func (l *PublishLimiter) Available() int {
	return l.max - l.ActiveCount()
}

// WaitForDrain blocks until no publish holds a slot or ctx ends.
func (l *PublishLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.RLock()
	idle := l.idle
	l.mu.RUnlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLimiterStatus is a snapshot of limiter usage.
type PublishLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *PublishLimiter) Status() PublishLimiterStatus {
	active := l.ActiveCount()
	return PublishLimiterStatus{
		Active:        active,
		Available:     l.max - active,
		MaxConcurrent: l.max,
	}
}
