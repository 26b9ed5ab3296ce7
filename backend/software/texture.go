package software

import (
	"image"
	"image/color"
	"sync"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
)

// Texture is a CPU render target. Its pixels and its state are owned by the
// GPU worker once the texture is referenced by submitted work.
type Texture struct {
	label string
	kind  backend.TextureKind

	// mu guards the fields below. The worker holds it while executing a
	// command that touches the texture; readers outside the worker take it
	// to get a consistent snapshot.
	mu    sync.Mutex
	img   *image.RGBA
	depth []float32
	state framepipe.ResourceState
}

func newTexture(label string, kind backend.TextureKind, w, h int) *Texture {
	t := &Texture{label: label, kind: kind}
	if kind == backend.TextureDepth {
		t.depth = make([]float32, w*h)
		t.img = &image.RGBA{Rect: image.Rect(0, 0, w, h)}
	} else {
		t.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return t
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Bounds returns the texture rectangle.
func (t *Texture) Bounds() image.Rectangle { return t.img.Rect }

// Kind returns the attachment type.
func (t *Texture) Kind() backend.TextureKind { return t.kind }

// State returns the state the worker last transitioned the texture to.
func (t *Texture) State() framepipe.ResourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns a copy of the color contents.
func (t *Texture) Snapshot() *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := image.NewRGBA(t.img.Rect)
	copy(out.Pix, t.img.Pix)
	return out
}

// DepthAt returns the depth value at (x, y). Color textures return 0.
func (t *Texture) DepthAt(x, y int) float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.depth == nil || !image.Pt(x, y).In(t.img.Rect) {
		return 0
	}
	return t.depth[y*t.img.Rect.Dx()+x]
}

func (t *Texture) clearColor(c [4]float32) {
	px := color.RGBA{R: unorm8(c[0]), G: unorm8(c[1]), B: unorm8(c[2]), A: unorm8(c[3])}
	pix := t.img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = px.R, px.G, px.B, px.A
	}
}

func (t *Texture) clearDepth(d float32) {
	for i := range t.depth {
		t.depth[i] = d
	}
}

// scribble fills the texture with a pattern so that reading contents that
// were loaded with DontCare shows up in the output.
func (t *Texture) scribble() {
	for i := range t.img.Pix {
		t.img.Pix[i] = byte(i * 31)
	}
	for i := range t.depth {
		t.depth[i] = float32(i%7) / 7
	}
}

func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
