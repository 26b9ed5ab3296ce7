package wgpu

import (
	"github.com/gogpu/framepipe/backend"
)

// init registers the wgpu backend on package import. With InitDefault it
// takes priority over the software backend; machines without a Vulkan
// adapter fall back.
//
//	import _ "github.com/gogpu/framepipe/backend/wgpu"
func init() {
	backend.Register(backend.BackendWGPU, func() backend.FrameBackend {
		return New()
	})
}
