// Package wgpu implements the frame pipeline backend on top of the
// gogpu/wgpu hardware abstraction layer.
//
// The backend either opens its own Vulkan device or shares the device of a
// host application through a gpucontext.DeviceProvider that also exposes
// HAL types:
//
//	b := wgpu.New(wgpu.WithDeviceProvider(app))
//	if err := b.Init(backend.Config{Width: 1280, Height: 720}); err != nil {
//	    return err
//	}
//	p, err := framepipe.New(b.Backend())
//
// # Synchronization
//
// A fence records the queue submission index of the slot's last submission.
// Waiting for a slot polls the queue until that index completed. Resetting
// a fence is a no-op.
//
// All work goes to a single queue, which executes submissions in order.
// Semaphores are therefore ordering tokens: the acquire semaphore of a frame
// is satisfied by queue order and the render-complete semaphore by the
// presentation submission following the frame's submission.
//
// # Presentation
//
// The swapchain is offscreen. Presenting copies the image into a staging
// buffer and reads it back into a front buffer, which makes the backend
// usable for headless rendering and tests. Hosts with a window surface
// render their own swapchain image as framepipe.Backbuffer via a custom
// framepipe.Surface.
//
// # Resource states
//
// Tracked states map to HAL texture usages:
//
//	Undefined       no usage (contents discarded)
//	RenderTarget    RenderAttachment
//	DepthWrite      RenderAttachment
//	ShaderResource  TextureBinding
//	Present         RenderAttachment
//	TransferSrc     CopySrc
//	TransferDst     CopyDst
//
// Barriers between states with the same usage record nothing.
package wgpu
