package software

import (
	"github.com/gogpu/framepipe/backend"
)

// init registers the software backend on package import.
//
// To make it available to backend.InitDefault, import this package:
//
//	import _ "github.com/gogpu/framepipe/backend/software"
func init() {
	backend.Register(backend.BackendSoftware, func() backend.FrameBackend {
		return New()
	})
}
