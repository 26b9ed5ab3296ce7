package framepipe

import "time"

// Resource is a GPU texture or buffer handle whose usage state is tracked.
//
// The pipeline never owns resources: they are created and destroyed by the
// backend's resource allocator. Implementations must be comparable (pointer
// types are the norm) because resources are used as map keys.
type Resource interface {
	// Label returns a debug label.
	Label() string
}

// Backbuffer is a placeholder resource for the swapchain image acquired for
// the current frame. Passes that render to the screen list it as a color
// output; the executor substitutes the real image at record time.
var Backbuffer Resource = backbuffer{}

type backbuffer struct{}

func (backbuffer) Label() string { return "backbuffer" }

// Fence is a CPU-observable GPU completion signal.
type Fence any

// Semaphore is a GPU-side wait/signal primitive ordering queue operations.
type Semaphore any

// UniformBuffer is a CPU-writable buffer read by the GPU during a frame.
type UniformBuffer interface {
	// Mapped returns the CPU view of the buffer. It stays valid until the
	// buffer is destroyed.
	Mapped() []byte

	// Flush makes CPU writes to Mapped visible to subsequently submitted
	// GPU work.
	Flush() error
}

// Recorder is a command-recording handle (a command buffer).
type Recorder interface {
	// Reset discards previously recorded commands. Only legal once the GPU
	// finished executing them.
	Reset() error

	// Begin starts recording.
	Begin() error

	// End closes the recording so it can be submitted.
	End() error

	// Barrier records resource transitions.
	Barrier(barriers ...Barrier)

	// BindRenderTargets binds the attachments of a pass and applies their
	// load actions.
	BindRenderTargets(t RenderTargets) error

	// UnbindRenderTargets ends the current attachment binding.
	UnbindRenderTargets()

	// BindPipeline binds a backend pipeline object.
	BindPipeline(p any)

	// BindDescriptors binds a backend descriptor set.
	BindDescriptors(d any)
}

// RenderTargets is the set of attachments bound for one pass, with the
// Backbuffer placeholder already resolved.
type RenderTargets struct {
	Colors []ColorAttachment
	Depth  *DepthAttachment
}

// Submission describes one queue submission.
type Submission struct {
	Recorder Recorder

	// Wait semaphores must be signaled before the recorded work starts.
	Wait []Semaphore

	// Signal semaphores are signaled when the work completes.
	Signal []Semaphore

	// Fence is signaled when the work completes.
	Fence Fence
}

// Device creates and destroys synchronization objects and recording handles.
type Device interface {
	CreateRecorder(label string) (Recorder, error)
	CreateFence(label string) (Fence, error)
	CreateSemaphore(label string) (Semaphore, error)
	CreateUniformBuffer(label string, size uint64) (UniformBuffer, error)

	// WaitFence blocks until f is signaled or the timeout expires. It
	// returns false on timeout.
	WaitFence(f Fence, timeout time.Duration) (bool, error)

	// FenceSignaled reports whether f is signaled without blocking.
	FenceSignaled(f Fence) (bool, error)

	// ResetFence returns f to the unsignaled state before reuse.
	ResetFence(f Fence) error

	// Destroy releases a handle created by this device.
	Destroy(handle any)
}

// Queue executes recorded work.
type Queue interface {
	Submit(s Submission) error
}

// Surface is the presentation surface (swapchain).
type Surface interface {
	// AcquireNextImage requests the next presentable image. signal is
	// signaled on the GPU timeline once the image is available. Returns an
	// error wrapping ErrSurfaceLost when the surface must be rebuilt.
	AcquireNextImage(signal Semaphore) (uint32, error)

	// Image returns the resource for a swapchain image.
	Image(index uint32) Resource

	// ImageCount returns the number of swapchain images.
	ImageCount() int

	// Present queues the image for display after the wait semaphores are
	// signaled. Returns an error wrapping ErrSurfaceLost when the surface
	// must be rebuilt.
	Present(index uint32, wait []Semaphore) error
}

// Backend is the context object holding every backend collaborator the
// pipeline needs. The pipeline keeps non-owning references only.
type Backend struct {
	Device  Device
	Queue   Queue
	Surface Surface
}

func (b Backend) validate() error {
	switch {
	case b.Device == nil:
		return preconditionError("backend has no device")
	case b.Queue == nil:
		return preconditionError("backend has no queue")
	case b.Surface == nil:
		return preconditionError("backend has no surface")
	}
	return nil
}

func resourceLabel(r Resource) string {
	if r == nil {
		return "<nil>"
	}
	return r.Label()
}
