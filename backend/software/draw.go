package software

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/uniform"
)

// target returns the first bound color target.
func (x *execState) target(op string) *Texture {
	if len(x.colors) == 0 {
		x.val.report("%s: %s without a bound color target", x.label, op)
		return nil
	}
	return x.colors[0]
}

// sampled checks that t may be sampled by the current command.
func (x *execState) sampled(op string, t *Texture) bool {
	if x.bound(t) {
		x.val.report("%s: %s samples %s while it is bound as a render target", x.label, op, t.label)
		return false
	}
	if st := t.State(); st != framepipe.StateShaderResource {
		x.val.report("%s: %s samples %s in state %s", x.label, op, t.label, st)
	}
	return true
}

// Clear fills the first bound color target with c.
func (r *Recorder) Clear(c [4]float32) {
	r.record("clear", func(x *execState) {
		dst := x.target("clear")
		if dst == nil {
			return
		}
		dst.mu.Lock()
		dst.clearColor(c)
		dst.mu.Unlock()
	})
}

// FillRect fills rect in the first bound color target. When a depth target
// is bound, pixels are written only where depth is less than the stored
// depth, and the depth is updated.
func (r *Recorder) FillRect(rect image.Rectangle, depth float32, c color.RGBA) {
	r.record("fill rect", func(x *execState) {
		dst := x.target("fill rect")
		if dst == nil {
			return
		}
		dst.mu.Lock()
		defer dst.mu.Unlock()
		rect := rect.Intersect(dst.img.Rect)

		var ds *Texture
		if x.depth != nil && x.depth.img.Rect.Eq(dst.img.Rect) {
			ds = x.depth
			ds.mu.Lock()
			defer ds.mu.Unlock()
		}
		w := dst.img.Rect.Dx()
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for px := rect.Min.X; px < rect.Max.X; px++ {
				if ds != nil {
					i := y*w + px
					if depth >= ds.depth[i] {
						continue
					}
					ds.depth[i] = depth
				}
				dst.img.SetRGBA(px, y, c)
			}
		}
	})
}

// Composite scales src over the first bound color target with bilinear
// filtering.
func (r *Recorder) Composite(src framepipe.Resource, op draw.Op) {
	s, err := r.texture(src)
	if err != nil {
		r.dev.val.report("composite: %v", err)
		return
	}
	r.record("composite", func(x *execState) {
		dst := x.target("composite")
		if dst == nil || !x.sampled("composite", s) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		dst.mu.Lock()
		defer dst.mu.Unlock()
		draw.BiLinear.Scale(dst.img, dst.img.Rect, s.img, s.img.Rect, op, nil)
	})
}

// LightShafts adds volumetric light scattering from the light mask src to
// the first bound color target. For every pixel it marches samples steps
// towards the light center and accumulates the decaying mask color. The
// parameters are a uniform.Light read at execution time from the uniform
// buffer bound with BindDescriptors, at byte offset.
func (r *Recorder) LightShafts(src framepipe.Resource, offset, samples int) {
	s, err := r.texture(src)
	if err != nil {
		r.dev.val.report("light shafts: %v", err)
		return
	}
	r.record("light shafts", func(x *execState) {
		dst := x.target("light shafts")
		if dst == nil || !x.sampled("light shafts", s) {
			return
		}
		if x.uniforms == nil {
			x.val.report("%s: light shafts without a bound uniform buffer", x.label)
			return
		}
		params, ok := x.uniforms.read(offset, uniform.LightSize)
		if !ok {
			x.val.report("%s: light shafts reads [%d, %d) outside uniform buffer %s", x.label, offset, offset+uniform.LightSize, x.uniforms.label)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		dst.mu.Lock()
		defer dst.mu.Unlock()
		lightShafts(dst.img, s.img, uniform.DecodeLight(params), samples)
	})
}

func lightShafts(dst, mask *image.RGBA, p uniform.Light, samples int) {
	if samples <= 0 {
		return
	}
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	mw, mh := mask.Rect.Dx(), mask.Rect.Dy()
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			u := (float32(x) + 0.5) / float32(dw)
			v := (float32(y) + 0.5) / float32(dh)
			du := (u - p.Center[0]) * p.Density / float32(samples)
			dv := (v - p.Center[1]) * p.Density / float32(samples)

			var ar, ag, ab float32
			decay := float32(1)
			for i := 0; i < samples; i++ {
				u -= du
				v -= dv
				mx := int(u * float32(mw))
				my := int(v * float32(mh))
				if mx < 0 || my < 0 || mx >= mw || my >= mh {
					break
				}
				o := mask.PixOffset(mx+mask.Rect.Min.X, my+mask.Rect.Min.Y)
				w := decay * p.Weight / 255
				ar += float32(mask.Pix[o]) * w
				ag += float32(mask.Pix[o+1]) * w
				ab += float32(mask.Pix[o+2]) * w
				decay *= p.Decay
			}
			o := dst.PixOffset(x+dst.Rect.Min.X, y+dst.Rect.Min.Y)
			dst.Pix[o] = addUnorm(dst.Pix[o], ar*p.Exposure)
			dst.Pix[o+1] = addUnorm(dst.Pix[o+1], ag*p.Exposure)
			dst.Pix[o+2] = addUnorm(dst.Pix[o+2], ab*p.Exposure)
		}
	}
}

func addUnorm(b uint8, v float32) uint8 {
	return unorm8(float32(b)/255 + v)
}

// DrawText draws s with a fixed 7x13 bitmap face at baseline origin pt in
// the first bound color target.
func (r *Recorder) DrawText(pt image.Point, s string, c color.Color) {
	r.record("draw text", func(x *execState) {
		dst := x.target("draw text")
		if dst == nil {
			return
		}
		dst.mu.Lock()
		defer dst.mu.Unlock()
		d := font.Drawer{
			Dst:  dst.img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(pt.X, pt.Y),
		}
		d.DrawString(s)
	})
}
