package software

import (
	"sync"
	"time"
)

// fence is signaled by the worker once a submission finished executing.
type fence struct {
	label string

	mu       sync.Mutex
	done     chan struct{}
	pending  bool
	signaled bool
}

func newFence(label string) *fence {
	return &fence{label: label, done: make(chan struct{})}
}

func (f *fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		return
	}
	f.signaled = true
	f.pending = false
	close(f.done)
}

func (f *fence) isSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *fence) wait(timeout time.Duration) bool {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// reset returns false when the fence is still pending on the worker.
func (f *fence) reset() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return false
	}
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	return true
}

// arm marks the fence as used by a submission. It returns false when the
// fence was not reset since its last signal.
func (f *fence) arm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending || f.signaled {
		return false
	}
	f.pending = true
	return true
}

// semaphoreDepth bounds the number of unconsumed signals of a semaphore.
const semaphoreDepth = 16

// semaphore is a counting GPU-side semaphore. Signals that are never
// waited on accumulate; the validation layer reports an overflow.
type semaphore struct {
	label string
	ch    chan struct{}
}

func newSemaphore(label string) *semaphore {
	return &semaphore{label: label, ch: make(chan struct{}, semaphoreDepth)}
}

func (s *semaphore) signal() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}
