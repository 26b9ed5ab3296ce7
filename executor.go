package framepipe

import "fmt"

// Executor records an ordered list of passes into a command stream.
//
// For every pass it transitions the inputs to ShaderResource and the
// outputs to RenderTarget or DepthWrite, binds the outputs, invokes the draw
// callback and unbinds the outputs again. Unbinding after every pass
// guarantees that a resource written by one pass is no longer attached when
// the next pass transitions it for sampling.
type Executor struct {
	tracker *StateTracker
}

// NewExecutor creates an executor that computes barriers with t.
func NewExecutor(t *StateTracker) *Executor {
	return &Executor{tracker: t}
}

// Execute records passes into rec. The Backbuffer placeholder is resolved to
// frame.Backbuffer.
//
// Execute stops at the first failing pass. Its render targets are unbound
// before returning so the command stream stays well formed. A draw callback
// error is returned wrapped in ErrPassFailed; tracker errors are returned
// as is.
func (e *Executor) Execute(passes []RenderPass, rec Recorder, frame *FrameInfo) error {
	for i := range passes {
		if err := e.executePass(i, &passes[i], rec, frame); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) executePass(i int, p *RenderPass, rec Recorder, frame *FrameInfo) error {
	resolve := func(r Resource) Resource {
		if r == Backbuffer {
			return frame.Backbuffer
		}
		return r
	}

	// Barriers already computed are recorded even when a later Require
	// fails, so the tracker never runs ahead of the command stream.
	var barriers []Barrier
	flush := func() {
		if len(barriers) > 0 {
			rec.Barrier(barriers...)
		}
	}
	for _, in := range p.Inputs {
		b, err := e.tracker.Require(resolve(in), StateShaderResource)
		if err != nil {
			flush()
			return fmt.Errorf("pass %d (%q): input: %w", i, p.Name, err)
		}
		barriers = append(barriers, b...)
	}

	targets := RenderTargets{Colors: make([]ColorAttachment, len(p.Colors))}
	for j, c := range p.Colors {
		c.Resource = resolve(c.Resource)
		b, err := e.tracker.Require(c.Resource, StateRenderTarget)
		if err != nil {
			flush()
			return fmt.Errorf("pass %d (%q): color %d: %w", i, p.Name, j, err)
		}
		barriers = append(barriers, b...)
		targets.Colors[j] = c
	}
	if p.Depth != nil {
		d := *p.Depth
		d.Resource = resolve(d.Resource)
		b, err := e.tracker.Require(d.Resource, StateDepthWrite)
		if err != nil {
			flush()
			return fmt.Errorf("pass %d (%q): depth: %w", i, p.Name, err)
		}
		barriers = append(barriers, b...)
		targets.Depth = &d
	}

	flush()
	if err := rec.BindRenderTargets(targets); err != nil {
		return fmt.Errorf("pass %d (%q): bind render targets: %w", i, p.Name, err)
	}
	defer rec.UnbindRenderTargets()

	if p.Pipeline != nil {
		rec.BindPipeline(p.Pipeline)
	}
	if p.Descriptors != nil {
		rec.BindDescriptors(p.Descriptors)
	}

	Logger().Debug("framepipe: pass",
		"frame", frame.Index,
		"pass", p.Name,
		"barriers", len(barriers),
		"colors", len(targets.Colors),
		"depth", targets.Depth != nil)

	if p.Draw == nil {
		return nil
	}
	if err := p.Draw(rec, frame); err != nil {
		return fmt.Errorf("pass %d (%q): %w: %w", i, p.Name, ErrPassFailed, err)
	}
	return nil
}
