// Package limiter implements AgentLimiter, a counting semaphore bounding the
// total concurrent agents in the process, with a FIFO wait queue of
// cancellable waiters.
package limiter

import (
	"context"
	"sync"
)

// Limiter is a counting semaphore of fixed capacity N. Invariant: in-flight
// slots plus free slots always equals N.
type Limiter struct {
	mu        sync.Mutex
	capacity  int
	inFlight  int
	waiters   []chan error
	resetting bool
	resetErr  error
}

// New builds a Limiter with the given capacity.
func New(capacity int) *Limiter {
	return &Limiter{capacity: capacity}
}

// TryAcquire attempts a non-blocking acquire.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resetting || l.inFlight >= l.capacity {
		return false
	}
	l.inFlight++
	return true
}

// Acquire blocks until a slot frees or ctx is cancelled, honoring FIFO order
// among waiters.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.resetting {
		err := l.resetErr
		l.mu.Unlock()
		return err
	}
	if l.inFlight < l.capacity {
		l.inFlight++
		l.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		l.cancelWaiter(ch)
		return ctx.Err()
	}
}

// cancelWaiter removes ch from the queue if it hasn't been woken yet.
func (l *Limiter) cancelWaiter(ch chan error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
	// Already popped by Release; drain the grant so the slot isn't lost.
	select {
	case err := <-ch:
		if err == nil {
			if len(l.waiters) > 0 {
				l.wakeNextLocked()
			} else {
				l.inFlight--
			}
		}
	default:
	}
}

// Release frees a slot and wakes the head of the wait queue, if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) > 0 {
		head := l.waiters[0]
		l.waiters = l.waiters[1:]
		head <- nil
		return
	}
	if l.inFlight > 0 {
		l.inFlight--
	}
}

func (l *Limiter) wakeNextLocked() {
	if len(l.waiters) == 0 {
		return
	}
	head := l.waiters[0]
	l.waiters = l.waiters[1:]
	head <- nil
}

// ClearWaiting rejects every current waiter with err and enters a resetting
// state in which further Acquire calls fail immediately with err. Call
// Reopen to leave that state.
func (l *Limiter) ClearWaiting(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetting = true
	l.resetErr = err
	for _, w := range l.waiters {
		w <- err
	}
	l.waiters = nil
}

// Reopen clears the resetting state so Acquire/TryAcquire work again.
func (l *Limiter) Reopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetting = false
	l.resetErr = nil
}

// InFlight returns the number of currently held slots.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Waiting returns the number of callers currently blocked in Acquire.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}
