// Package software implements the frame pipeline backend on the CPU.
//
// Submitted command buffers are executed in submission order by a single
// worker goroutine that plays the role of the GPU queue. Fences and
// semaphores are real synchronization objects between the caller and the
// worker, so a pipeline driving this backend overlaps CPU recording with
// "GPU" execution exactly like it would on hardware.
//
// Every executed command is checked by a validation layer:
//
//   - a barrier's source state must match the texture's actual state
//   - a bound color target must be in RenderTarget, a bound depth target in
//     DepthWrite
//   - a sampled texture must be in ShaderResource and not bound as a target
//   - a uniform buffer must not be flushed while a pending submission reads it
//
// Violations are logged and collected; see Backend.ValidationErrors.
//
// Draw callbacks reach the software commands by asserting the recorder:
//
//	func draw(rec framepipe.Recorder, f *framepipe.FrameInfo) error {
//	    r := rec.(*software.Recorder)
//	    r.FillRect(image.Rect(10, 10, 50, 50), 0.5, color.RGBA{A: 255})
//	    return nil
//	}
package software
