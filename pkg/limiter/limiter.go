// Package limiter bounds the number of simultaneous in-flight network
// operations across the whole process. Both the link check and the safety
// check of every bookmark acquire their own slot, so this gate, not the
// orchestrator's batch size, is the true ceiling on outbound connections.
package limiter

import (
	"context"
	"fmt"
	"sync"
)

// DefaultMaxConcurrent is the slot count used when the configured value is
// zero or negative.
const DefaultMaxConcurrent = 10

// Limiter is a counting semaphore with a FIFO wait queue. Releasing a slot
// wakes exactly the oldest waiter, preserving admission order under
// sustained load. The zero value is not usable; construct with New.
type Limiter struct {
	mu       sync.Mutex
	max      int
	inFlight int
	// waiters holds one channel per suspended caller, oldest first. A slot is
	// handed over by closing the head channel; inFlight is not decremented in
	// that case because ownership transfers directly.
	waiters []chan struct{}
}

// New creates a Limiter admitting at most maxConcurrent callers at a time.
func New(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	return &Limiter{max: maxConcurrent}
}

// Acquire blocks until a slot is free or ctx is done. On success the caller
// owns one slot and must call Release exactly once.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.inFlight < l.max {
		l.inFlight++
		l.mu.Unlock()

		return nil
	}

	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range l.waiters {
			if w == ch {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.mu.Unlock()

				return fmt.Errorf("waiting for limiter slot: %w", ctx.Err())
			}
		}
		l.mu.Unlock()
		// The slot was handed over concurrently with cancellation; give it
		// back so it is not leaked.
		l.Release()

		return fmt.Errorf("waiting for limiter slot: %w", ctx.Err())
	}
}

// Release frees the caller's slot, waking the oldest waiter if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.waiters) > 0 {
		ch := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(ch)

		return
	}

	if l.inFlight > 0 {
		l.inFlight--
	}
}

// Do runs fn while holding a slot. It is the common entry point for network
// tasks: acquire, run, release.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()

	return fn()
}

// InFlight reports the number of currently admitted callers.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inFlight
}
