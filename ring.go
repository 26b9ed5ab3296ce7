package framepipe

import (
	"errors"
	"fmt"
	"time"
)

// Ring depth limits.
const (
	DefaultFramesInFlight = 3
	MaxFramesInFlight     = 16
)

// FrameSlot holds the per-frame resources of one ring position.
//
// Ownership alternates strictly between the CPU and the GPU: MarkSubmitted
// hands the slot to the GPU, a successful WaitUntilFree hands it back. The
// recording handle and the uniform buffer are only reachable while the slot
// is CPU-owned.
type FrameSlot struct {
	index int

	recorder       Recorder
	fence          Fence
	imageAcquired  Semaphore
	renderComplete Semaphore
	uniforms       UniformBuffer

	inFlight  bool
	used      bool
	lastFrame uint64
}

// Index returns the ring position of the slot.
func (s *FrameSlot) Index() int { return s.index }

// InFlight reports whether the slot was submitted and its fence has not been
// waited on since.
func (s *FrameSlot) InFlight() bool { return s.inFlight }

// LastFrame returns the frame index of the last submission through this
// slot, and false if the slot was never submitted.
func (s *FrameSlot) LastFrame() (uint64, bool) { return s.lastFrame, s.used }

// Fence returns the slot completion fence.
func (s *FrameSlot) Fence() Fence { return s.fence }

// ImageAcquired returns the semaphore signaled when the swapchain image for
// this slot's frame is available.
func (s *FrameSlot) ImageAcquired() Semaphore { return s.imageAcquired }

// RenderComplete returns the semaphore signaled when this slot's frame
// finished rendering.
func (s *FrameSlot) RenderComplete() Semaphore { return s.renderComplete }

// Recorder returns the slot's recording handle. It fails with
// ErrSlotInFlight while the GPU may still be executing it.
func (s *FrameSlot) Recorder() (Recorder, error) {
	if s.inFlight {
		return nil, fmt.Errorf("slot %d recorder: %w", s.index, ErrSlotInFlight)
	}
	return s.recorder, nil
}

// Uniforms returns the slot's uniform buffer. It fails with ErrSlotInFlight
// while the GPU may still be reading it.
func (s *FrameSlot) Uniforms() (UniformBuffer, error) {
	if s.inFlight {
		return nil, fmt.Errorf("slot %d uniforms: %w", s.index, ErrSlotInFlight)
	}
	return s.uniforms, nil
}

// WriteUniforms copies data to the start of the slot's mapped uniform
// buffer and flushes it.
func (s *FrameSlot) WriteUniforms(data []byte) error {
	ub, err := s.Uniforms()
	if err != nil {
		return err
	}
	dst := ub.Mapped()
	if len(data) > len(dst) {
		return fmt.Errorf("slot %d uniforms: %d bytes do not fit in %d", s.index, len(data), len(dst))
	}
	copy(dst, data)
	return ub.Flush()
}

// SlotRing is a fixed ring of N frame slots indexed by frameIndex mod N.
// All slots are created together and destroyed together.
type SlotRing struct {
	dev     Device
	slots   []*FrameSlot
	timeout time.Duration
}

// NewSlotRing creates n slots on dev, each with a uniform buffer of
// uniformSize bytes. timeout bounds every fence wait.
func NewSlotRing(dev Device, n int, uniformSize uint64, timeout time.Duration) (*SlotRing, error) {
	if n < 1 || n > MaxFramesInFlight {
		return nil, fmt.Errorf("frames in flight %d outside [1, %d]: %w", n, MaxFramesInFlight, ErrPrecondition)
	}
	r := &SlotRing{dev: dev, timeout: timeout}
	for i := 0; i < n; i++ {
		s, err := r.createSlot(i, uniformSize)
		if err != nil {
			r.Destroy()
			return nil, fmt.Errorf("create frame slot %d: %w", i, err)
		}
		r.slots = append(r.slots, s)
	}
	return r, nil
}

func (r *SlotRing) createSlot(i int, uniformSize uint64) (*FrameSlot, error) {
	s := &FrameSlot{index: i}
	var err error
	// Partially created handles are released by destroySlot.
	defer func() {
		if err != nil {
			r.destroySlot(s)
		}
	}()
	if s.recorder, err = r.dev.CreateRecorder(fmt.Sprintf("frame%d_cmd", i)); err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	if s.fence, err = r.dev.CreateFence(fmt.Sprintf("frame%d_fence", i)); err != nil {
		return nil, fmt.Errorf("fence: %w", err)
	}
	if s.imageAcquired, err = r.dev.CreateSemaphore(fmt.Sprintf("frame%d_image_acquired", i)); err != nil {
		return nil, fmt.Errorf("image-acquired semaphore: %w", err)
	}
	if s.renderComplete, err = r.dev.CreateSemaphore(fmt.Sprintf("frame%d_render_complete", i)); err != nil {
		return nil, fmt.Errorf("render-complete semaphore: %w", err)
	}
	if s.uniforms, err = r.dev.CreateUniformBuffer(fmt.Sprintf("frame%d_uniforms", i), uniformSize); err != nil {
		return nil, fmt.Errorf("uniform buffer: %w", err)
	}
	return s, nil
}

// Len returns the ring depth N.
func (r *SlotRing) Len() int { return len(r.slots) }

// Slot returns the slot at ring position i.
func (r *SlotRing) Slot(i int) *FrameSlot { return r.slots[i] }

// Acquire returns the slot for frameIndex. It never blocks.
func (r *SlotRing) Acquire(frameIndex uint64) *FrameSlot {
	return r.slots[frameIndex%uint64(len(r.slots))]
}

// WaitUntilFree blocks until the previous submission through slot has
// completed. It returns immediately for a slot that is not in flight or
// whose fence is already signaled; stalled reports whether it had to block.
//
// The fence is left signaled; ResetFence rearms it right before the next
// submission through the slot.
//
// A timeout is fatal: the returned error matches ErrFenceTimeout and
// ErrDeviceLost.
func (r *SlotRing) WaitUntilFree(slot *FrameSlot) (stalled bool, err error) {
	if !slot.inFlight {
		return false, nil
	}
	done, err := r.dev.FenceSignaled(slot.fence)
	if err != nil {
		return false, fmt.Errorf("slot %d fence status: %w: %w", slot.index, ErrDeviceLost, err)
	}
	if !done {
		stalled = true
		ok, err := r.dev.WaitFence(slot.fence, r.timeout)
		if err != nil {
			return stalled, fmt.Errorf("slot %d fence wait: %w: %w", slot.index, ErrDeviceLost, err)
		}
		if !ok {
			return stalled, fmt.Errorf("slot %d (frame %d) after %v: %w", slot.index, slot.lastFrame, r.timeout, ErrFenceTimeout)
		}
	}
	slot.inFlight = false
	return stalled, nil
}

// ResetFence rearms the fence of a CPU-owned slot for its next submission.
func (r *SlotRing) ResetFence(slot *FrameSlot) error {
	if slot.inFlight {
		return fmt.Errorf("slot %d fence reset: %w", slot.index, ErrSlotInFlight)
	}
	if err := r.dev.ResetFence(slot.fence); err != nil {
		return fmt.Errorf("slot %d fence reset: %w: %w", slot.index, ErrDeviceLost, err)
	}
	return nil
}

// MarkSubmitted hands slot to the GPU for frameIndex.
func (r *SlotRing) MarkSubmitted(slot *FrameSlot, frameIndex uint64) {
	slot.inFlight = true
	slot.used = true
	slot.lastFrame = frameIndex
}

// InFlight returns the number of slots owned by the GPU.
func (r *SlotRing) InFlight() int {
	n := 0
	for _, s := range r.slots {
		if s.inFlight {
			n++
		}
	}
	return n
}

// Drain waits for every in-flight slot. It keeps waiting on the remaining
// slots when one of them fails and returns all failures joined.
func (r *SlotRing) Drain() error {
	var errs []error
	for _, s := range r.slots {
		if _, err := r.WaitUntilFree(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Destroy releases every slot. Callers drain the ring first; destroying
// handles the GPU may still use is undefined behavior on real hardware.
func (r *SlotRing) Destroy() {
	for i := len(r.slots) - 1; i >= 0; i-- {
		r.destroySlot(r.slots[i])
	}
	r.slots = nil
}

func (r *SlotRing) destroySlot(s *FrameSlot) {
	if s.uniforms != nil {
		r.dev.Destroy(s.uniforms)
		s.uniforms = nil
	}
	if s.renderComplete != nil {
		r.dev.Destroy(s.renderComplete)
		s.renderComplete = nil
	}
	if s.imageAcquired != nil {
		r.dev.Destroy(s.imageAcquired)
		s.imageAcquired = nil
	}
	if s.fence != nil {
		r.dev.Destroy(s.fence)
		s.fence = nil
	}
	if s.recorder != nil {
		r.dev.Destroy(s.recorder)
		s.recorder = nil
	}
}
