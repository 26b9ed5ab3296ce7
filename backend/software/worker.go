package software

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framepipe"
)

var errWorkerStopped = errors.New("software: device closed")

// job is one unit of queue work: a command buffer or a presentation.
type job struct {
	label  string
	wait   []*semaphore
	signal []*semaphore
	fence  *fence
	run    func()
}

// worker executes jobs in submission order on its own goroutine.
type worker struct {
	jobs    chan job
	quit    chan struct{}
	wg      sync.WaitGroup
	latency time.Duration
	val     *validator

	lost      atomic.Bool
	executed  atomic.Uint64
	closeOnce sync.Once
}

func newWorker(latency time.Duration, val *validator) *worker {
	w := &worker{
		jobs:    make(chan job, 64),
		quit:    make(chan struct{}),
		latency: latency,
		val:     val,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		case j := <-w.jobs:
			w.execute(j)
		}
	}
}

func (w *worker) execute(j job) {
	for _, s := range j.wait {
		select {
		case <-s.ch:
		case <-w.quit:
			return
		}
	}
	// A lost device never completes work.
	if w.lost.Load() {
		return
	}
	if w.latency > 0 {
		t := time.NewTimer(w.latency)
		select {
		case <-t.C:
		case <-w.quit:
			t.Stop()
			return
		}
	}
	if j.run != nil {
		j.run()
	}
	for _, s := range j.signal {
		if !s.signal() {
			w.val.report("%s: semaphore %s signaled %d times without a wait", j.label, s.label, semaphoreDepth)
		}
	}
	if j.fence != nil {
		j.fence.signal()
	}
	w.executed.Add(1)
}

func (w *worker) enqueue(j job) error {
	if w.lost.Load() {
		return fmt.Errorf("software: %s: %w", j.label, framepipe.ErrDeviceLost)
	}
	select {
	case <-w.quit:
		return errWorkerStopped
	default:
	}
	select {
	case w.jobs <- j:
		return nil
	case <-w.quit:
		return errWorkerStopped
	}
}

// idle blocks until every job enqueued so far has executed.
func (w *worker) idle(timeout time.Duration) error {
	f := newFence("idle")
	f.arm()
	if err := w.enqueue(job{label: "idle", fence: f}); err != nil {
		return err
	}
	if !f.wait(timeout) {
		return fmt.Errorf("software: wait idle: %w", framepipe.ErrFenceTimeout)
	}
	return nil
}

func (w *worker) stop() {
	w.closeOnce.Do(func() {
		close(w.quit)
		w.wg.Wait()
	})
}
