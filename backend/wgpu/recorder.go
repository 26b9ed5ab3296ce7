package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
)

// Recorder records one command buffer through a HAL command encoder. Each
// BindRenderTargets/UnbindRenderTargets pair is one HAL render pass.
type Recorder struct {
	dev   *Device
	label string

	encoder hal.CommandEncoder
	cmdBuf  hal.CommandBuffer
	pass    hal.RenderPassEncoder
}

// Label returns the debug label.
func (r *Recorder) Label() string { return r.label }

// Encoder returns the HAL encoder while recording, for copies and compute
// work outside render passes.
func (r *Recorder) Encoder() hal.CommandEncoder { return r.encoder }

// Pass returns the HAL render pass while render targets are bound.
func (r *Recorder) Pass() hal.RenderPassEncoder { return r.pass }

// Reset frees the previous command buffer.
func (r *Recorder) Reset() error {
	r.release()
	return nil
}

func (r *Recorder) release() {
	if r.pass != nil {
		r.pass.End()
		r.pass = nil
	}
	if r.encoder != nil {
		r.encoder.DiscardEncoding()
		r.encoder = nil
	}
	if r.cmdBuf != nil {
		r.dev.raw.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
}

// Begin creates an encoder and starts recording.
func (r *Recorder) Begin() error {
	if r.encoder != nil {
		return fmt.Errorf("wgpu: begin %s: already recording", r.label)
	}
	if r.cmdBuf != nil {
		r.dev.raw.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
	encoder, err := r.dev.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: r.label,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder %s: %w", r.label, err)
	}
	if err := encoder.BeginEncoding(r.label); err != nil {
		return fmt.Errorf("wgpu: begin encoding %s: %w", r.label, err)
	}
	r.encoder = encoder
	return nil
}

// End finishes encoding.
func (r *Recorder) End() error {
	if r.encoder == nil {
		return fmt.Errorf("wgpu: end %s: not recording", r.label)
	}
	if r.pass != nil {
		return fmt.Errorf("wgpu: end %s: render targets still bound", r.label)
	}
	cmdBuf, err := r.encoder.EndEncoding()
	r.encoder = nil
	if err != nil {
		return fmt.Errorf("wgpu: end encoding %s: %w", r.label, err)
	}
	r.cmdBuf = cmdBuf
	return nil
}

// Barrier records texture usage transitions. Transitions between states
// sharing a HAL usage are skipped.
func (r *Recorder) Barrier(barriers ...framepipe.Barrier) {
	if r.encoder == nil {
		slogger().Warn("wgpu: barrier outside recording", "recorder", r.label)
		return
	}
	hb := make([]hal.TextureBarrier, 0, len(barriers))
	for _, b := range barriers {
		t, ok := b.Resource.(*Texture)
		if !ok {
			slogger().Warn("wgpu: barrier", "error", errForeignHandle, "barrier", b.String())
			continue
		}
		from, to := usageOf(b.From), usageOf(b.To)
		if from == to {
			continue
		}
		hb = append(hb, hal.TextureBarrier{
			Texture: t.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: from,
				NewUsage: to,
			},
		})
	}
	if len(hb) > 0 {
		r.encoder.TransitionTextures(hb)
	}
}

// BindRenderTargets begins a HAL render pass.
func (r *Recorder) BindRenderTargets(rt framepipe.RenderTargets) error {
	switch {
	case r.encoder == nil:
		return fmt.Errorf("wgpu: bind %s: not recording", r.label)
	case r.pass != nil:
		return errors.New("wgpu: render targets already bound")
	}
	desc := &hal.RenderPassDescriptor{Label: r.label}
	for _, c := range rt.Colors {
		t, ok := c.Resource.(*Texture)
		if !ok {
			return fmt.Errorf("%w: color target %s", errForeignHandle, c.Resource.Label())
		}
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:    t.view,
			LoadOp:  loadOp(c.Load),
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(c.ClearColor[0]),
				G: float64(c.ClearColor[1]),
				B: float64(c.ClearColor[2]),
				A: float64(c.ClearColor[3]),
			},
		})
	}
	if d := rt.Depth; d != nil {
		t, ok := d.Resource.(*Texture)
		if !ok {
			return fmt.Errorf("%w: depth target %s", errForeignHandle, d.Resource.Label())
		}
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              t.view,
			DepthLoadOp:       loadOp(d.Load),
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   d.ClearDepth,
			StencilLoadOp:     loadOp(d.Load),
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: d.ClearStencil,
		}
	}
	r.pass = r.encoder.BeginRenderPass(desc)
	return nil
}

// UnbindRenderTargets ends the HAL render pass.
func (r *Recorder) UnbindRenderTargets() {
	if r.pass != nil {
		r.pass.End()
		r.pass = nil
	}
}

// BindPipeline sets a render pipeline. p is a *Pipeline or a
// hal.RenderPipeline.
func (r *Recorder) BindPipeline(p any) {
	if r.pass == nil {
		slogger().Warn("wgpu: pipeline bound outside a render pass", "recorder", r.label)
		return
	}
	switch v := p.(type) {
	case *Pipeline:
		r.pass.SetPipeline(v.raw)
	case hal.RenderPipeline:
		r.pass.SetPipeline(v)
	default:
		slogger().Warn("wgpu: bind pipeline", "error", errForeignHandle, "pipeline", fmt.Sprintf("%T", p))
	}
}

// BindDescriptors sets bind group 0. d is a hal.BindGroup.
func (r *Recorder) BindDescriptors(d any) {
	if r.pass == nil {
		slogger().Warn("wgpu: descriptors bound outside a render pass", "recorder", r.label)
		return
	}
	bg, ok := d.(hal.BindGroup)
	if !ok {
		slogger().Warn("wgpu: bind descriptors", "error", errForeignHandle, "descriptors", fmt.Sprintf("%T", d))
		return
	}
	r.pass.SetBindGroup(0, bg, nil)
}

// Draw draws vertexCount vertices of one instance with the bound pipeline.
func (r *Recorder) Draw(vertexCount uint32) {
	if r.pass == nil {
		slogger().Warn("wgpu: draw outside a render pass", "recorder", r.label)
		return
	}
	r.pass.Draw(vertexCount, 1, 0, 0)
}
