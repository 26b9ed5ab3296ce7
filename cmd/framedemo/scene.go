package main

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/backend/software"
	"github.com/gogpu/framepipe/backend/wgpu"
	"github.com/gogpu/framepipe/uniform"
)

// raySamples is the number of raymarch steps per pixel.
const raySamples = 24

var (
	lightColor    = color.RGBA{R: 255, G: 236, B: 196, A: 255}
	occluderColor = color.RGBA{A: 255}
	background    = [4]float32{0.02, 0.02, 0.06, 1}
)

// volumeLight owns the swapchain-sized targets of the frame and declares
// its passes for the active backend.
type volumeLight struct {
	fb    backend.FrameBackend
	scene uniform.Scene

	mask  framepipe.Resource
	depth framepipe.Resource

	// cpu is shown by the overlay. It is set before each tick.
	cpu time.Duration

	glow   *wgpu.Pipeline
	groups map[int]hal.BindGroup
}

func newVolumeLight(fb backend.FrameBackend, w, h int) *volumeLight {
	return &volumeLight{
		fb: fb,
		scene: uniform.Scene{
			Camera: uniform.DefaultCamera(),
			Light:  mgl32.Vec3{0, 0.6, -1},
			Params: uniform.Light{Density: 0.9, Weight: 0.35, Decay: 0.96, Exposure: 0.5},
			Spin:   mgl32.DegToRad(1),
			Width:  w,
			Height: h,
		},
	}
}

func (v *volumeLight) uniforms(f *framepipe.FrameInfo, dst []byte) error {
	return v.scene.Block(f.Index).Encode(dst)
}

// create allocates the targets and registers them with p.
func (v *volumeLight) create(p *framepipe.Pipeline) error {
	if wb, ok := v.fb.(*wgpu.Backend); ok && v.glow == nil {
		glow, err := wb.Device().NewFullscreenPipeline("light_glow", wgpu.LightGlowShader, wgpu.SwapchainFormat)
		if err != nil {
			return err
		}
		v.glow = glow
		v.groups = make(map[int]hal.BindGroup)
	}

	var err error
	if v.mask, err = v.fb.CreateTexture(backend.TextureDesc{Label: "light_mask"}); err != nil {
		return err
	}
	if v.depth, err = v.fb.CreateTexture(backend.TextureDesc{Label: "occlusion_depth", Kind: backend.TextureDepth}); err != nil {
		return err
	}
	if err := p.Track(v.mask, framepipe.StateUndefined); err != nil {
		return err
	}
	return p.Track(v.depth, framepipe.StateUndefined)
}

// recreate replaces the targets after the surface changed size. It must run
// after SurfaceRecreated drained the in-flight frames.
func (v *volumeLight) recreate(p *framepipe.Pipeline) error {
	v.release(p)
	return v.create(p)
}

func (v *volumeLight) release(p *framepipe.Pipeline) {
	for _, r := range []framepipe.Resource{v.mask, v.depth} {
		if r == nil {
			continue
		}
		if p != nil {
			p.Untrack(r)
		}
		v.fb.DestroyTexture(r)
	}
	v.mask, v.depth = nil, nil
}

func (v *volumeLight) resize(w, h int) {
	v.scene.Width, v.scene.Height = w, h
}

// destroy releases everything. The pipeline must be shut down.
func (v *volumeLight) destroy() {
	v.release(nil)
	if v.glow != nil {
		for _, bg := range v.groups {
			v.glow.DestroyBindGroup(bg)
		}
		v.glow.Destroy()
		v.glow = nil
	}
}

func (v *volumeLight) frontBuffer() *image.RGBA {
	switch b := v.fb.(type) {
	case *software.Backend:
		return b.Swapchain().FrontBuffer()
	case *wgpu.Backend:
		return b.Swapchain().FrontBuffer()
	}
	return nil
}

func (v *volumeLight) passes() []framepipe.RenderPass {
	occlusion := framepipe.RenderPass{
		Name:   "occlusion",
		Colors: []framepipe.ColorAttachment{{Resource: v.mask, Load: framepipe.LoadActionClear}},
		Depth:  &framepipe.DepthAttachment{Resource: v.depth, Load: framepipe.LoadActionClear, ClearDepth: 1},
	}
	composite := framepipe.RenderPass{
		Name:   "composite",
		Colors: []framepipe.ColorAttachment{{Resource: framepipe.Backbuffer, Load: framepipe.LoadActionClear, ClearColor: background}},
		Inputs: []framepipe.Resource{v.mask},
	}

	if v.glow != nil {
		composite.Pipeline = v.glow
		composite.Draw = v.drawGlow
		return []framepipe.RenderPass{occlusion, composite}
	}

	occlusion.Draw = v.drawOccluders
	composite.Draw = func(rec framepipe.Recorder, f *framepipe.FrameInfo) error {
		r := rec.(*software.Recorder)
		r.BindDescriptors(f.Uniforms)
		r.LightShafts(v.mask, uniform.LightOffset, raySamples)
		return nil
	}
	overlay := framepipe.RenderPass{
		Name:   "overlay",
		Colors: []framepipe.ColorAttachment{{Resource: framepipe.Backbuffer, Load: framepipe.LoadActionLoad}},
		Draw: func(rec framepipe.Recorder, f *framepipe.FrameInfo) error {
			text := fmt.Sprintf("frame %d  cpu %.2f ms", f.Index, float64(v.cpu.Microseconds())/1000)
			rec.(*software.Recorder).DrawText(image.Pt(6, 16), text, color.White)
			return nil
		},
	}
	return []framepipe.RenderPass{occlusion, composite, overlay}
}

// drawOccluders draws the light disc behind a row of bars. The bars are
// nearer, so the depth test cuts them out of the light.
func (v *volumeLight) drawOccluders(rec framepipe.Recorder, f *framepipe.FrameInfo) error {
	r := rec.(*software.Recorder)
	w, h := v.scene.Width, v.scene.Height
	light := v.scene.Block(f.Index).Light
	if light.Exposure > 0 {
		cx, cy := int(light.Center[0]*float32(w)), int(light.Center[1]*float32(h))
		rad := h / 8
		r.FillRect(image.Rect(cx-rad, cy-rad, cx+rad, cy+rad), 0.9, lightColor)
	}
	bar := max(w/24, 2)
	for x := bar; x < w; x += 3 * bar {
		r.FillRect(image.Rect(x, h/6, x+bar, h/2), 0.5, occluderColor)
	}
	return nil
}

func (v *volumeLight) drawGlow(rec framepipe.Recorder, f *framepipe.FrameInfo) error {
	bg, ok := v.groups[f.Slot]
	if !ok {
		ub, ok := f.Uniforms.(*wgpu.UniformBuffer)
		if !ok {
			return fmt.Errorf("uniform buffer %T is not a wgpu buffer", f.Uniforms)
		}
		var err error
		if bg, err = v.glow.BindUniforms(fmt.Sprintf("frame_uniforms_%d", f.Slot), ub); err != nil {
			return err
		}
		v.groups[f.Slot] = bg
	}
	r := rec.(*wgpu.Recorder)
	r.BindDescriptors(bg)
	r.Draw(3)
	return nil
}
