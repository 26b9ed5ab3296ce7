package software

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/framepipe"
)

// execState is the command processor state while the worker executes one
// command buffer.
type execState struct {
	val   *validator
	label string

	colors      []*Texture
	depth       *Texture
	pipeline    any
	descriptors any
	uniforms    *UniformBuffer
}

func (x *execState) bound(t *Texture) bool {
	if t == x.depth {
		return true
	}
	for _, c := range x.colors {
		if c == t {
			return true
		}
	}
	return false
}

type command func(x *execState)

// Recorder is a software command buffer.
type Recorder struct {
	dev   *Device
	label string

	recording bool
	bound     bool
	cmds      []command
	uniforms  []*UniformBuffer

	// pending counts submissions of this recorder not yet executed.
	pending atomic.Int32
}

// Label returns the debug label.
func (r *Recorder) Label() string { return r.label }

// Reset discards the recorded commands. Resetting a command buffer the
// worker has not executed yet is reported and rejected.
func (r *Recorder) Reset() error {
	if r.pending.Load() > 0 {
		r.dev.val.report("recorder %s reset while in use by the GPU", r.label)
		return fmt.Errorf("software: reset %s: %w", r.label, framepipe.ErrSlotInFlight)
	}
	r.cmds = nil
	r.uniforms = nil
	r.bound = false
	r.recording = false
	return nil
}

// Begin starts recording.
func (r *Recorder) Begin() error {
	if r.recording {
		return fmt.Errorf("software: begin %s: already recording", r.label)
	}
	if r.pending.Load() > 0 {
		r.dev.val.report("recorder %s begun while in use by the GPU", r.label)
		return fmt.Errorf("software: begin %s: %w", r.label, framepipe.ErrSlotInFlight)
	}
	r.cmds = nil
	r.uniforms = nil
	r.recording = true
	return nil
}

// End closes the recording.
func (r *Recorder) End() error {
	if !r.recording {
		return fmt.Errorf("software: end %s: not recording", r.label)
	}
	if r.bound {
		return fmt.Errorf("software: end %s: render targets still bound", r.label)
	}
	r.recording = false
	return nil
}

func (r *Recorder) record(name string, c command) {
	if !r.recording {
		r.dev.val.report("recorder %s: %s recorded outside Begin/End", r.label, name)
		return
	}
	r.cmds = append(r.cmds, c)
}

func (r *Recorder) texture(res framepipe.Resource) (*Texture, error) {
	t, ok := res.(*Texture)
	if !ok || t == nil {
		return nil, fmt.Errorf("software: %s is a %T, not a software texture", labelOf(res), res)
	}
	return t, nil
}

// Barrier records resource transitions.
func (r *Recorder) Barrier(barriers ...framepipe.Barrier) {
	bs := make([]framepipe.Barrier, 0, len(barriers))
	texs := make([]*Texture, 0, len(barriers))
	for _, b := range barriers {
		t, err := r.texture(b.Resource)
		if err != nil {
			r.dev.val.report("barrier %s: %v", b, err)
			continue
		}
		bs = append(bs, b)
		texs = append(texs, t)
	}
	r.record("barrier", func(x *execState) {
		for i, b := range bs {
			t := texs[i]
			if x.bound(t) {
				x.val.report("%s: barrier %s on a bound render target", x.label, b)
			}
			t.mu.Lock()
			// Transitions out of Undefined discard the contents and are
			// legal from any state.
			if b.From != framepipe.StateUndefined && t.state != b.From {
				x.val.report("%s: barrier %s but texture is %s", x.label, b, t.state)
			}
			t.state = b.To
			t.mu.Unlock()
		}
	})
}

// BindRenderTargets binds the attachments and applies their load actions.
func (r *Recorder) BindRenderTargets(rt framepipe.RenderTargets) error {
	if r.bound {
		return errors.New("software: render targets already bound")
	}
	colors := make([]*Texture, len(rt.Colors))
	loads := make([]framepipe.ColorAttachment, len(rt.Colors))
	for i, c := range rt.Colors {
		t, err := r.texture(c.Resource)
		if err != nil {
			return err
		}
		colors[i] = t
		loads[i] = c
	}
	var depth *Texture
	var depthLoad framepipe.DepthAttachment
	if rt.Depth != nil {
		t, err := r.texture(rt.Depth.Resource)
		if err != nil {
			return err
		}
		depth = t
		depthLoad = *rt.Depth
	}
	r.bound = true

	r.record("bind render targets", func(x *execState) {
		for i, t := range colors {
			t.mu.Lock()
			if t.state != framepipe.StateRenderTarget {
				x.val.report("%s: color target %s bound in state %s", x.label, t.label, t.state)
			}
			switch loads[i].Load {
			case framepipe.LoadActionClear:
				t.clearColor(loads[i].ClearColor)
			case framepipe.LoadActionDontCare:
				t.scribble()
			}
			t.mu.Unlock()
		}
		if depth != nil {
			depth.mu.Lock()
			if depth.state != framepipe.StateDepthWrite {
				x.val.report("%s: depth target %s bound in state %s", x.label, depth.label, depth.state)
			}
			switch depthLoad.Load {
			case framepipe.LoadActionClear:
				depth.clearDepth(depthLoad.ClearDepth)
			case framepipe.LoadActionDontCare:
				depth.scribble()
			}
			depth.mu.Unlock()
		}
		x.colors = colors
		x.depth = depth
	})
	return nil
}

// UnbindRenderTargets ends the current attachment binding.
func (r *Recorder) UnbindRenderTargets() {
	r.bound = false
	r.record("unbind render targets", func(x *execState) {
		x.colors = nil
		x.depth = nil
	})
}

// BindPipeline binds a pipeline object. The software backend has no
// pipeline state; the value is kept for inspection by tests.
func (r *Recorder) BindPipeline(p any) {
	r.record("bind pipeline", func(x *execState) { x.pipeline = p })
}

// BindDescriptors binds a descriptor set. A *UniformBuffer binds the
// buffer read by LightShafts.
func (r *Recorder) BindDescriptors(d any) {
	ub, _ := d.(*UniformBuffer)
	if ub != nil {
		r.uniforms = append(r.uniforms, ub)
	}
	r.record("bind descriptors", func(x *execState) {
		x.descriptors = d
		if ub != nil {
			x.uniforms = ub
		}
	})
}

func labelOf(r framepipe.Resource) string {
	if r == nil {
		return "<nil>"
	}
	return r.Label()
}
