package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
)

// Texture is a HAL texture with its default view.
type Texture struct {
	label  string
	tex    hal.Texture
	view   hal.TextureView
	format gputypes.TextureFormat
	width  uint32
	height uint32
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.tex }

// View returns the default texture view, for bind groups of custom pipelines.
func (t *Texture) View() hal.TextureView { return t.view }

// Format returns the texture format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height uint32) { return t.width, t.height }

func createTexture(dev hal.Device, label string, w, h uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*Texture, error) {
	tex, err := dev.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              w,
			Height:             h,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", label, err)
	}
	view, err := dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		dev.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view %s: %w", label, err)
	}
	return &Texture{label: label, tex: tex, view: view, format: format, width: w, height: h}, nil
}

func (t *Texture) destroy(dev hal.Device) {
	if t.view != nil {
		dev.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		dev.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// usageOf maps a tracked state to the HAL texture usage it implies.
func usageOf(s framepipe.ResourceState) gputypes.TextureUsage {
	switch s {
	case framepipe.StateRenderTarget, framepipe.StateDepthWrite, framepipe.StatePresent:
		return gputypes.TextureUsageRenderAttachment
	case framepipe.StateShaderResource:
		return gputypes.TextureUsageTextureBinding
	case framepipe.StateTransferSrc:
		return gputypes.TextureUsageCopySrc
	case framepipe.StateTransferDst:
		return gputypes.TextureUsageCopyDst
	default:
		return 0
	}
}

func loadOp(a framepipe.LoadAction) gputypes.LoadOp {
	if a == framepipe.LoadActionLoad {
		return gputypes.LoadOpLoad
	}
	// No HAL load op leaves contents undefined.
	return gputypes.LoadOpClear
}
