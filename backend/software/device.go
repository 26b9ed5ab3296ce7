package software

import (
	"fmt"
	"time"

	"github.com/gogpu/framepipe"
)

// Device creates software synchronization objects and command buffers.
// All work executes on a single worker goroutine in submission order.
type Device struct {
	w   *worker
	val *validator
}

// CreateRecorder implements framepipe.Device.
func (d *Device) CreateRecorder(label string) (framepipe.Recorder, error) {
	return &Recorder{dev: d, label: label}, nil
}

// CreateFence implements framepipe.Device.
func (d *Device) CreateFence(label string) (framepipe.Fence, error) {
	return newFence(label), nil
}

// CreateSemaphore implements framepipe.Device.
func (d *Device) CreateSemaphore(label string) (framepipe.Semaphore, error) {
	return newSemaphore(label), nil
}

// CreateUniformBuffer implements framepipe.Device.
func (d *Device) CreateUniformBuffer(label string, size uint64) (framepipe.UniformBuffer, error) {
	return newUniformBuffer(label, size, d.val), nil
}

func (d *Device) fence(f framepipe.Fence) (*fence, error) {
	ff, ok := f.(*fence)
	if !ok || ff == nil {
		return nil, fmt.Errorf("software: fence is a %T", f)
	}
	return ff, nil
}

// WaitFence implements framepipe.Device.
func (d *Device) WaitFence(f framepipe.Fence, timeout time.Duration) (bool, error) {
	ff, err := d.fence(f)
	if err != nil {
		return false, err
	}
	if d.w.lost.Load() && !ff.isSignaled() {
		return false, fmt.Errorf("software: wait %s: %w", ff.label, framepipe.ErrDeviceLost)
	}
	return ff.wait(timeout), nil
}

// FenceSignaled implements framepipe.Device.
func (d *Device) FenceSignaled(f framepipe.Fence) (bool, error) {
	ff, err := d.fence(f)
	if err != nil {
		return false, err
	}
	if d.w.lost.Load() && !ff.isSignaled() {
		return false, fmt.Errorf("software: query %s: %w", ff.label, framepipe.ErrDeviceLost)
	}
	return ff.isSignaled(), nil
}

// ResetFence implements framepipe.Device.
func (d *Device) ResetFence(f framepipe.Fence) error {
	ff, err := d.fence(f)
	if err != nil {
		return err
	}
	if !ff.reset() {
		d.val.report("fence %s reset while pending", ff.label)
		return fmt.Errorf("software: reset %s: fence pending", ff.label)
	}
	return nil
}

// Destroy implements framepipe.Device. Destroying a handle the worker still
// uses is reported.
func (d *Device) Destroy(h any) {
	switch v := h.(type) {
	case *Recorder:
		if v.pending.Load() > 0 {
			d.val.report("recorder %s destroyed while in use by the GPU", v.label)
		}
	case *fence:
		v.mu.Lock()
		pending := v.pending
		v.mu.Unlock()
		if pending {
			d.val.report("fence %s destroyed while pending", v.label)
		}
	case *UniformBuffer:
		if v.inUse.Load() > 0 {
			d.val.report("uniform buffer %s destroyed while in use by the GPU", v.label)
		}
	case *semaphore:
	default:
		d.val.report("destroy of unknown handle %T", h)
	}
}

// Queue submits recorded command buffers to the worker.
type Queue struct {
	dev *Device
}

// Submit implements framepipe.Queue.
func (q *Queue) Submit(s framepipe.Submission) error {
	rec, ok := s.Recorder.(*Recorder)
	if !ok || rec == nil {
		return fmt.Errorf("software: submit: recorder is a %T", s.Recorder)
	}
	if rec.recording {
		q.dev.val.report("recorder %s submitted while recording", rec.label)
		return fmt.Errorf("software: submit %s: recording not ended", rec.label)
	}
	var f *fence
	if s.Fence != nil {
		var err error
		if f, err = q.dev.fence(s.Fence); err != nil {
			return err
		}
	}
	wait, err := semaphores(s.Wait)
	if err != nil {
		return err
	}
	signal, err := semaphores(s.Signal)
	if err != nil {
		return err
	}
	if f != nil && !f.arm() {
		q.dev.val.report("recorder %s submitted with fence %s that was not reset", rec.label, f.label)
		return fmt.Errorf("software: submit %s: fence %s not reset", rec.label, f.label)
	}

	cmds := rec.cmds
	uniforms := rec.uniforms
	rec.pending.Add(1)
	for _, u := range uniforms {
		u.inUse.Add(1)
	}
	done := func() {
		for _, u := range uniforms {
			u.inUse.Add(-1)
		}
		rec.pending.Add(-1)
	}

	err = q.dev.w.enqueue(job{
		label:  rec.label,
		wait:   wait,
		signal: signal,
		fence:  f,
		run: func() {
			x := &execState{val: q.dev.val, label: rec.label}
			for _, c := range cmds {
				c(x)
			}
			if x.colors != nil || x.depth != nil {
				x.val.report("%s: command buffer ended with render targets bound", rec.label)
			}
			done()
		},
	})
	if err != nil {
		done()
		if f != nil {
			f.mu.Lock()
			f.pending = false
			f.mu.Unlock()
		}
		return err
	}
	return nil
}

func semaphores(in []framepipe.Semaphore) ([]*semaphore, error) {
	out := make([]*semaphore, 0, len(in))
	for _, s := range in {
		ss, ok := s.(*semaphore)
		if !ok || ss == nil {
			return nil, fmt.Errorf("software: semaphore is a %T", s)
		}
		out = append(out, ss)
	}
	return out, nil
}
