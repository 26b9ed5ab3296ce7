// Package backend provides a pluggable GPU backend abstraction for the
// frame pipeline.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Importing a backend package registers it:
//
//	import (
//	    _ "github.com/gogpu/framepipe/backend/software"
//	    _ "github.com/gogpu/framepipe/backend/wgpu"
//	)
//
// # Backend Selection
//
// Use InitDefault() to initialize the best available backend, or Init() to
// request a specific backend by name:
//
//	b, err := backend.InitDefault(backend.Config{Width: 1280, Height: 720})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	p, err := framepipe.New(b.Backend())
//
// # Available Backends
//
//   - wgpu: Vulkan through the gogpu/wgpu HAL (backend/wgpu)
//   - software: CPU implementation with a validation layer (backend/software)
package backend
