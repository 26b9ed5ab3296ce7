package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
)

var errForeignHandle = errors.New("wgpu: handle not created by this device")

// maxPollInterval caps the sleep between completion polls of a fence wait.
const maxPollInterval = time.Millisecond

// fence tracks the queue submission index of the last submission that used
// it. It is signaled once the queue reports that index completed.
type fence struct {
	label  string
	target uint64
}

// semaphore orders work on the single queue. It has no HAL object.
type semaphore struct {
	label string
}

// Device adapts a HAL device to framepipe.Device.
type Device struct {
	mu    sync.Mutex
	raw   hal.Device
	queue hal.Queue
}

// Raw returns the HAL device.
func (d *Device) Raw() hal.Device { return d.raw }

// CreateRecorder implements framepipe.Device.
func (d *Device) CreateRecorder(label string) (framepipe.Recorder, error) {
	return &Recorder{dev: d, label: label}, nil
}

// CreateFence implements framepipe.Device.
func (d *Device) CreateFence(label string) (framepipe.Fence, error) {
	return &fence{label: label}, nil
}

// CreateSemaphore implements framepipe.Device.
func (d *Device) CreateSemaphore(label string) (framepipe.Semaphore, error) {
	return &semaphore{label: label}, nil
}

// CreateUniformBuffer implements framepipe.Device.
func (d *Device) CreateUniformBuffer(label string, size uint64) (framepipe.UniformBuffer, error) {
	buf, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create uniform buffer %s: %w", label, err)
	}
	return &UniformBuffer{label: label, raw: buf, queue: d.queue, shadow: make([]byte, size)}, nil
}

func asFence(f framepipe.Fence) (*fence, error) {
	ff, ok := f.(*fence)
	if !ok || ff == nil {
		return nil, fmt.Errorf("%w: fence is a %T", errForeignHandle, f)
	}
	return ff, nil
}

// WaitFence implements framepipe.Device.
func (d *Device) WaitFence(f framepipe.Fence, timeout time.Duration) (bool, error) {
	ff, err := asFence(f)
	if err != nil {
		return false, err
	}
	return d.waitSubmission(ff.target, timeout), nil
}

// waitSubmission polls the queue until submission index completed or
// timeout elapsed. Index 0 is always complete.
func (d *Device) waitSubmission(index uint64, timeout time.Duration) bool {
	if d.queue.PollCompleted() >= index {
		return true
	}
	if timeout <= 0 {
		return false
	}
	deadline := time.Now().Add(timeout)
	sleep := 10 * time.Microsecond
	for time.Now().Before(deadline) {
		time.Sleep(min(sleep, time.Until(deadline)))
		if d.queue.PollCompleted() >= index {
			return true
		}
		sleep = min(sleep*2, maxPollInterval)
	}
	return false
}

// FenceSignaled implements framepipe.Device.
func (d *Device) FenceSignaled(f framepipe.Fence) (bool, error) {
	return d.WaitFence(f, 0)
}

// ResetFence implements framepipe.Device. The next submission moves the
// target forward, so there is nothing to rearm.
func (d *Device) ResetFence(f framepipe.Fence) error {
	_, err := asFence(f)
	return err
}

// Destroy implements framepipe.Device.
func (d *Device) Destroy(h any) {
	switch v := h.(type) {
	case *Recorder:
		v.release()
	case *UniformBuffer:
		v.destroy(d.raw)
	case *fence, *semaphore:
	default:
		slogger().Warn("wgpu: destroy", "error", errForeignHandle, "handle", fmt.Sprintf("%T", h))
	}
}

// Queue adapts a HAL queue to framepipe.Queue.
type Queue struct {
	dev *Device
}

// Submit implements framepipe.Queue. Wait and signal semaphores are
// satisfied by submission order.
func (q *Queue) Submit(s framepipe.Submission) error {
	rec, ok := s.Recorder.(*Recorder)
	if !ok || rec == nil {
		return fmt.Errorf("%w: recorder is a %T", errForeignHandle, s.Recorder)
	}
	if rec.cmdBuf == nil {
		return fmt.Errorf("wgpu: submit %s: recording not ended", rec.label)
	}
	var ff *fence
	if s.Fence != nil {
		var err error
		if ff, err = asFence(s.Fence); err != nil {
			return err
		}
	}

	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	index, err := q.dev.queue.Submit([]hal.CommandBuffer{rec.cmdBuf})
	if err != nil {
		return fmt.Errorf("wgpu: submit %s: %w", rec.label, err)
	}
	if ff != nil {
		ff.target = index
	}
	return nil
}

// UniformBuffer is a GPU uniform buffer with a CPU shadow copy. Flush
// uploads the shadow with a queue write.
type UniformBuffer struct {
	label  string
	raw    hal.Buffer
	queue  hal.Queue
	shadow []byte
}

// Mapped returns the CPU shadow.
func (u *UniformBuffer) Mapped() []byte { return u.shadow }

// Flush uploads the shadow to the GPU buffer.
func (u *UniformBuffer) Flush() error {
	if err := u.queue.WriteBuffer(u.raw, 0, u.shadow); err != nil {
		return fmt.Errorf("wgpu: flush %s: %w", u.label, err)
	}
	return nil
}

// Raw returns the HAL buffer.
func (u *UniformBuffer) Raw() hal.Buffer { return u.raw }

// Size returns the buffer size in bytes.
func (u *UniformBuffer) Size() uint64 { return uint64(len(u.shadow)) }

func (u *UniformBuffer) destroy(dev hal.Device) {
	if u.raw != nil {
		dev.DestroyBuffer(u.raw)
		u.raw = nil
	}
}
