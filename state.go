package framepipe

import "fmt"

// ResourceState is the usage state a GPU resource is in from the point of
// view of the command stream being recorded.
type ResourceState uint8

const (
	// StateUndefined means the contents are not defined. Every resource
	// starts here unless registered otherwise.
	StateUndefined ResourceState = iota

	// StateRenderTarget means the resource is a color attachment.
	StateRenderTarget

	// StateDepthWrite means the resource is a writable depth/stencil attachment.
	StateDepthWrite

	// StateShaderResource means the resource is sampled by shaders.
	StateShaderResource

	// StatePresent means the resource is handed to the presentation engine.
	StatePresent

	// StateTransferSrc means the resource is the source of a copy.
	StateTransferSrc

	// StateTransferDst means the resource is the destination of a copy.
	StateTransferDst
)

// String returns the state name.
func (s ResourceState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateRenderTarget:
		return "RenderTarget"
	case StateDepthWrite:
		return "DepthWrite"
	case StateShaderResource:
		return "ShaderResource"
	case StatePresent:
		return "Present"
	case StateTransferSrc:
		return "TransferSrc"
	case StateTransferDst:
		return "TransferDst"
	default:
		return fmt.Sprintf("ResourceState(%d)", uint8(s))
	}
}

// Readable reports whether the contents of a resource in this state are
// defined, i.e. it may be transitioned to ShaderResource and sampled.
func (s ResourceState) Readable() bool {
	return s != StateUndefined
}

// Barrier is a single resource transition recorded into a command stream.
type Barrier struct {
	Resource Resource
	From     ResourceState
	To       ResourceState
}

// String returns a compact description of the barrier.
func (b Barrier) String() string {
	return fmt.Sprintf("%s: %s -> %s", resourceLabel(b.Resource), b.From, b.To)
}

// FrameOutcome is the result of a single Tick.
type FrameOutcome uint8

const (
	// Presented means the frame was submitted and handed to presentation.
	Presented FrameOutcome = iota

	// SurfaceStale means the surface must be rebuilt before the next
	// frame. The caller recreates swapchain-sized resources and ticks again.
	SurfaceStale

	// DeviceLost means the pipeline halted and will not accept more frames.
	DeviceLost

	// Rejected means the call violated a precondition. Nothing was
	// acquired, recorded or submitted.
	Rejected
)

// String returns the outcome name.
func (o FrameOutcome) String() string {
	switch o {
	case Presented:
		return "Presented"
	case SurfaceStale:
		return "SurfaceStale"
	case DeviceLost:
		return "DeviceLost"
	case Rejected:
		return "Rejected"
	default:
		return fmt.Sprintf("FrameOutcome(%d)", uint8(o))
	}
}

// State is a state of the frame pipeline state machine.
//
//	Idle -> Acquiring -> Recording -> Submitted -> Presenting -> Idle
//
// Any fatal error moves the machine to Halted, which is terminal.
type State uint8

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
	StateHalted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiring:
		return "Acquiring"
	case StateRecording:
		return "Recording"
	case StateSubmitted:
		return "Submitted"
	case StatePresenting:
		return "Presenting"
	case StateHalted:
		return "Halted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
