package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("wgpu: compile shader: %d bytes of SPIR-V is not a word multiple", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// Pipeline is a render pipeline drawing a fullscreen triangle with one
// uniform buffer at group 0, binding 0. The shader provides vs_main and
// fs_main and generates vertices from the vertex index.
type Pipeline struct {
	dev *Device

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	raw           hal.RenderPipeline
}

// NewFullscreenPipeline compiles source and creates the pipeline for
// targets of the given format.
func (d *Device) NewFullscreenPipeline(label, source string, format gputypes.TextureFormat) (*Pipeline, error) {
	words, err := CompileWGSL(source)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{dev: d}
	if err := p.create(label, words, format); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) create(label string, spirv []uint32, format gputypes.TextureFormat) error {
	dev := p.dev.raw
	shader, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module %s: %w", label, err)
	}
	p.shader = shader

	uniformLayout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout %s: %w", label, err)
	}
	p.uniformLayout = uniformLayout

	pipeLayout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout %s: %w", label, err)
	}
	p.pipeLayout = pipeLayout

	blend := gputypes.BlendStatePremultiplied()
	raw, err := dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create render pipeline %s: %w", label, err)
	}
	p.raw = raw
	return nil
}

// Raw returns the HAL render pipeline.
func (p *Pipeline) Raw() hal.RenderPipeline { return p.raw }

// BindUniforms creates a bind group exposing u at binding 0. One bind group
// is created per frame slot, since each slot owns its uniform buffer.
func (p *Pipeline) BindUniforms(label string, u *UniformBuffer) (hal.BindGroup, error) {
	bg, err := p.dev.raw.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: u.raw.NativeHandle(),
				Offset: 0,
				Size:   u.Size(),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group %s: %w", label, err)
	}
	return bg, nil
}

// DestroyBindGroup releases a bind group created by BindUniforms.
func (p *Pipeline) DestroyBindGroup(bg hal.BindGroup) {
	if bg != nil {
		p.dev.raw.DestroyBindGroup(bg)
	}
}

// Destroy releases the pipeline objects in reverse creation order.
func (p *Pipeline) Destroy() {
	dev := p.dev.raw
	if p.raw != nil {
		dev.DestroyRenderPipeline(p.raw)
		p.raw = nil
	}
	if p.pipeLayout != nil {
		dev.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.uniformLayout != nil {
		dev.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		dev.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
