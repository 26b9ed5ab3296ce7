package framepipe

import (
	"fmt"
	"slices"
)

// LoadAction selects what happens to an attachment's previous contents when
// a pass binds it.
type LoadAction uint8

const (
	// LoadActionDontCare leaves the previous contents undefined.
	LoadActionDontCare LoadAction = iota

	// LoadActionLoad preserves the previous contents.
	LoadActionLoad

	// LoadActionClear clears the attachment to its clear value.
	LoadActionClear
)

// String returns the load action name.
func (a LoadAction) String() string {
	switch a {
	case LoadActionDontCare:
		return "DontCare"
	case LoadActionLoad:
		return "Load"
	case LoadActionClear:
		return "Clear"
	default:
		return fmt.Sprintf("LoadAction(%d)", uint8(a))
	}
}

// ColorAttachment is a color output of a pass.
type ColorAttachment struct {
	Resource Resource
	Load     LoadAction

	// ClearColor is the RGBA clear value used with LoadActionClear.
	ClearColor [4]float32
}

// DepthAttachment is the depth/stencil output of a pass.
type DepthAttachment struct {
	Resource     Resource
	Load         LoadAction
	ClearDepth   float32
	ClearStencil uint32
}

// FrameInfo describes the frame being recorded. It is passed to draw
// callbacks and to the uniform writer.
type FrameInfo struct {
	// Index is the monotonically increasing frame index.
	Index uint64

	// Slot is the ring slot used by this frame (Index mod N).
	Slot int

	// ImageIndex is the swapchain image acquired for this frame.
	ImageIndex uint32

	// Backbuffer is the swapchain image resource acquired for this frame.
	Backbuffer Resource

	// Uniforms is the slot's uniform buffer. It is CPU-owned for the whole
	// recording phase.
	Uniforms UniformBuffer
}

// DrawFunc records the draw calls of a pass. The render targets, pipeline
// and descriptors of the pass are already bound when it runs.
type DrawFunc func(rec Recorder, frame *FrameInfo) error

// RenderPass declares one pass of a frame. Passes are data: the executor
// runs them in the declared order and never reorders or infers
// dependencies.
type RenderPass struct {
	// Name is a debug name.
	Name string

	// Colors are the color outputs in binding order.
	Colors []ColorAttachment

	// Depth is the optional depth/stencil output.
	Depth *DepthAttachment

	// Inputs are the resources sampled by the pass.
	Inputs []Resource

	// Pipeline and Descriptors are backend objects bound before Draw.
	// Nil values are not bound.
	Pipeline    any
	Descriptors any

	// Draw records the pass draw calls. A nil Draw declares a pass that
	// only applies its load actions (a clear pass).
	Draw DrawFunc
}

// clone returns a deep copy so later caller mutations cannot affect a
// declared frame.
func (p RenderPass) clone() RenderPass {
	p.Colors = slices.Clone(p.Colors)
	p.Inputs = slices.Clone(p.Inputs)
	if p.Depth != nil {
		d := *p.Depth
		p.Depth = &d
	}
	return p
}

// outputs returns every resource written by the pass.
func (p *RenderPass) outputs() []Resource {
	out := make([]Resource, 0, len(p.Colors)+1)
	for _, c := range p.Colors {
		out = append(out, c.Resource)
	}
	if p.Depth != nil {
		out = append(out, p.Depth.Resource)
	}
	return out
}

// check validates the pass in isolation.
func (p *RenderPass) check() error {
	if len(p.Colors) == 0 && p.Depth == nil {
		return ErrNoOutputs
	}
	outs := p.outputs()
	for _, r := range outs {
		if r == nil {
			return ErrNilResource
		}
	}
	for _, in := range p.Inputs {
		if in == nil {
			return ErrNilResource
		}
		if slices.Contains(outs, in) {
			return fmt.Errorf("%s: %w", resourceLabel(in), ErrBindConflict)
		}
	}
	return nil
}

// validateFrame checks a declared pass list against a simulated copy of
// the tracker. The real tracker is not modified.
func validateFrame(passes []RenderPass, t *StateTracker) error {
	sim := t.clone()
	// Swapchain contents are undefined right after acquire.
	_ = sim.Track(Backbuffer, StateUndefined)

	for i := range passes {
		p := &passes[i]
		if err := p.check(); err != nil {
			return fmt.Errorf("pass %d (%q): %w", i, p.Name, err)
		}
		for _, in := range p.Inputs {
			s, ok := sim.StateOf(in)
			if !ok {
				return fmt.Errorf("pass %d (%q): input %s: %w", i, p.Name, resourceLabel(in), ErrUntrackedResource)
			}
			if !s.Readable() {
				return fmt.Errorf("pass %d (%q): input %s: %w", i, p.Name, resourceLabel(in), ErrReadBeforeWrite)
			}
			_, _ = sim.Require(in, StateShaderResource)
		}
		for _, c := range p.Colors {
			if _, err := sim.Require(c.Resource, StateRenderTarget); err != nil {
				return fmt.Errorf("pass %d (%q): %w", i, p.Name, err)
			}
		}
		if p.Depth != nil {
			if _, err := sim.Require(p.Depth.Resource, StateDepthWrite); err != nil {
				return fmt.Errorf("pass %d (%q): %w", i, p.Name, err)
			}
		}
	}
	return nil
}
