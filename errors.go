package framepipe

import "errors"

// Backend-reported conditions. Backends wrap these so the pipeline can
// classify failures with errors.Is.
var (
	// ErrSurfaceLost is returned by a Surface when the presentation surface
	// was resized or became temporarily unavailable. The caller is expected
	// to rebuild swapchain-dependent resources and call SurfaceRecreated.
	ErrSurfaceLost = errors.New("framepipe: surface lost")

	// ErrDeviceLost is returned when the GPU stopped making forward progress
	// or a backend call reported device loss. It is never recoverable.
	ErrDeviceLost = errors.New("framepipe: device lost")
)

// Pipeline errors.
var (
	// ErrFenceTimeout is returned when a fence wait exceeds its timeout.
	// It always wraps ErrDeviceLost.
	ErrFenceTimeout = fenceTimeoutError{}

	// ErrHalted is returned by Tick after the pipeline entered the halted
	// state because of a fatal error.
	ErrHalted = errors.New("framepipe: pipeline halted")

	// ErrClosed is returned by Tick and DeclareFrame after Shutdown.
	ErrClosed = errors.New("framepipe: pipeline shut down")

	// ErrPassFailed wraps an error returned by a pass draw callback.
	ErrPassFailed = errors.New("framepipe: pass draw failed")

	// ErrSlotInFlight is returned when CPU code touches a frame slot whose
	// fence has not been waited on since its last submission.
	ErrSlotInFlight = errors.New("framepipe: frame slot still owned by the GPU")
)

// Precondition violations. All of them match ErrPrecondition.
var (
	// ErrPrecondition is the class of programming errors: the call is
	// rejected and no state is modified.
	ErrPrecondition = errors.New("framepipe: precondition violated")

	// ErrNoFrameDeclared is returned by Tick when DeclareFrame was not
	// called since the previous Tick.
	ErrNoFrameDeclared = preconditionError("no frame declared before tick")

	// ErrUntrackedResource is returned when a transition is requested for a
	// resource that was never registered with the tracker.
	ErrUntrackedResource = preconditionError("resource is not tracked")

	// ErrReadBeforeWrite is returned when a pass samples a resource that is
	// still in the Undefined state at that point of the frame.
	ErrReadBeforeWrite = preconditionError("resource sampled before it was ever written")

	// ErrBindConflict is returned when a pass uses the same resource as a
	// render target and as a sampled input.
	ErrBindConflict = preconditionError("resource bound as render target and sampled in the same pass")

	// ErrEmptyFrame is returned by DeclareFrame for an empty pass list.
	ErrEmptyFrame = preconditionError("frame declares no passes")

	// ErrNoOutputs is returned for a pass that declares neither color nor
	// depth outputs.
	ErrNoOutputs = preconditionError("pass declares no outputs")

	// ErrNilResource is returned when a pass references a nil resource.
	ErrNilResource = preconditionError("nil resource")
)

type preconditionError string

func (e preconditionError) Error() string { return "framepipe: " + string(e) }

func (e preconditionError) Is(target error) bool { return target == ErrPrecondition }

type fenceTimeoutError struct{}

func (fenceTimeoutError) Error() string { return "framepipe: fence wait timed out" }

func (fenceTimeoutError) Is(target error) bool { return target == ErrDeviceLost }
