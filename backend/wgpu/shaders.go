package wgpu

import (
	_ "embed"
)

// LightGlowShader draws a radial glow around the light position read from
// the uniform block: a 4x4 projection-view matrix followed by the light
// parameters (center, density, weight, decay, exposure).
//
//go:embed shaders/light_glow.wgsl
var LightGlowShader string
