// Package framepipe drives per-frame GPU work through a fixed ring of
// frames in flight.
//
// # Overview
//
// framepipe sits between an application's render loop and a GPU backend. It
// owns three pieces of bookkeeping that every explicit graphics API leaves to
// the application:
//
//   - a ring of N frame slots (default 3), each with a command recorder, a
//     fence, two semaphores and a CPU-writable uniform buffer
//   - the usage state of every GPU resource, so barriers can be computed
//   - the ordered execution of render passes with unbind, barrier and rebind
//     between a pass that writes a resource and a pass that samples it
//
// # Quick Start
//
//	b, err := backend.InitDefault(backend.Config{Width: 1280, Height: 720})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	p, err := framepipe.New(b.Backend())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown()
//
//	p.Track(mask, framepipe.StateUndefined)
//	for running {
//	    p.DeclareFrame(
//	        framepipe.RenderPass{Name: "mask", Colors: []framepipe.ColorAttachment{{Resource: mask, Load: framepipe.LoadActionClear}}, Draw: drawMask},
//	        framepipe.RenderPass{Name: "composite", Colors: []framepipe.ColorAttachment{{Resource: framepipe.Backbuffer}}, Inputs: []framepipe.Resource{mask}, Draw: composite},
//	    )
//	    switch outcome, err := p.Tick(); outcome {
//	    case framepipe.SurfaceStale:
//	        // rebuild swapchain-sized resources, then
//	        p.SurfaceRecreated()
//	    case framepipe.DeviceLost:
//	        log.Fatal(err)
//	    }
//	}
//
// # Frame Lifecycle
//
//	Idle -> Acquiring -> Recording -> Submitted -> Presenting -> Idle
//
// Tick acquires a swapchain image, waits until the slot for the frame index
// is no longer used by the GPU, writes the uniforms, records the declared
// passes, transitions the image to Present, submits and presents. A fence
// timeout, a failed submission or any backend error reporting device loss
// moves the pipeline to the terminal Halted state.
//
// # Backends
//
// The pipeline only sees the Device, Queue and Surface interfaces. The
// backend package provides a registry; backend/wgpu implements them over the
// gogpu/wgpu HAL and backend/software over the CPU with a validation layer.
package framepipe
