package shutdown

import (
	"sync"
	"time"
)

// Latch is a single-shot completion signal. Any number of goroutines may
// call Signal; one waiter blocks on it with a deadline. A latch is never
// reused once a wait has timed out.
type Latch struct {
	mu   sync.Mutex
	done bool
	ch   chan struct{}
}

func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Signal marks the latch done and wakes the waiter. Later calls are no-ops.
func (l *Latch) Signal() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	l.done = true
	close(l.ch)
}

// Signaled reports whether Signal has been called.
func (l *Latch) Signaled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// AwaitUntil blocks until the latch is signaled or deadline passes.
// It returns false on timeout.
func (l *Latch) AwaitUntil(deadline time.Time) bool {
	delay := time.Until(deadline)
	if delay <= 0 {
		return l.Signaled()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-l.ch:
		return true
	case <-timer.C:
		return l.Signaled()
	}
}

// Await is AwaitUntil relative to now.
func (l *Latch) Await(timeout time.Duration) bool {
	return l.AwaitUntil(time.Now().Add(timeout))
}
