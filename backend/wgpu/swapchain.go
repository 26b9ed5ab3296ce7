package wgpu

import (
	"fmt"
	"image"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
)

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

// SwapchainFormat is the format of offscreen swapchain images.
const SwapchainFormat = gputypes.TextureFormatRGBA8Unorm

// Swapchain is an offscreen presentation surface. Present reads the image
// back into a front buffer.
type Swapchain struct {
	dev   *Device
	label string

	mu        sync.Mutex
	images    []*Texture
	next      uint32
	stale     bool
	front     *image.RGBA
	presented uint64

	staging hal.Buffer
}

func newSwapchain(dev *Device, label string, w, h uint32, n int) (*Swapchain, error) {
	s := &Swapchain{dev: dev, label: label}
	if err := s.build(w, h, n); err != nil {
		return nil, err
	}
	return s, nil
}

func alignedPitch(w uint32) uint32 {
	return (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// build creates the images and the staging buffer. Callers hold mu or own s.
func (s *Swapchain) build(w, h uint32, n int) error {
	dev := s.dev.raw
	images := make([]*Texture, 0, n)
	for i := 0; i < n; i++ {
		t, err := createTexture(dev, fmt.Sprintf("%s_swapchain%d", s.label, i), w, h, SwapchainFormat,
			gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc|gputypes.TextureUsageTextureBinding)
		if err != nil {
			for _, img := range images {
				img.destroy(dev)
			}
			return err
		}
		images = append(images, t)
	}
	staging, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: s.label + "_present_staging",
		Size:  uint64(alignedPitch(w)) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		for _, img := range images {
			img.destroy(dev)
		}
		return fmt.Errorf("wgpu: create present staging buffer: %w", err)
	}
	s.images = images
	s.staging = staging
	s.next = 0
	return nil
}

func (s *Swapchain) release() {
	dev := s.dev.raw
	for _, img := range s.images {
		img.destroy(dev)
	}
	s.images = nil
	if s.staging != nil {
		dev.DestroyBuffer(s.staging)
		s.staging = nil
	}
}

func (s *Swapchain) destroy() {
	s.release()
}

// AcquireNextImage implements framepipe.Surface.
func (s *Swapchain) AcquireNextImage(framepipe.Semaphore) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		s.stale = false
		return 0, fmt.Errorf("wgpu: acquire: %w", framepipe.ErrSurfaceLost)
	}
	if len(s.images) == 0 {
		return 0, fmt.Errorf("wgpu: acquire: swapchain has no images: %w", framepipe.ErrSurfaceLost)
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, nil
}

// Image implements framepipe.Surface.
func (s *Swapchain) Image(i uint32) framepipe.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(i) >= len(s.images) {
		return nil
	}
	return s.images[i]
}

// ImageCount implements framepipe.Surface.
func (s *Swapchain) ImageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// Present implements framepipe.Surface. The copy is submitted after the
// frame's work on the same queue, which satisfies the wait semaphores.
func (s *Swapchain) Present(i uint32, _ []framepipe.Semaphore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		s.stale = false
		return fmt.Errorf("wgpu: present: %w", framepipe.ErrSurfaceLost)
	}
	if int(i) >= len(s.images) {
		return fmt.Errorf("wgpu: present: image %d out of range", i)
	}
	img := s.images[i]
	pixels, err := s.readback(img)
	if err != nil {
		return fmt.Errorf("wgpu: present %s: %w", img.label, err)
	}

	w, h := int(img.width), int(img.height)
	front := image.NewRGBA(image.Rect(0, 0, w, h))
	pitch := int(alignedPitch(img.width))
	for y := 0; y < h; y++ {
		copy(front.Pix[y*front.Stride:y*front.Stride+w*4], pixels[y*pitch:y*pitch+w*4])
	}
	s.front = front
	s.presented++
	return nil
}

// readback copies img to the staging buffer and waits for the copy.
func (s *Swapchain) readback(img *Texture) ([]byte, error) {
	dev := s.dev.raw
	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: s.label + "_present",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(s.label + "_present"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	// Images are presented in RenderAttachment usage; the copy needs CopySrc.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(img.tex, s.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedPitch(img.width), RowsPerImage: img.height},
		TextureBase:  hal.ImageCopyTexture{Texture: img.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: img.width, Height: img.height, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	s.dev.mu.Lock()
	index, err := s.dev.queue.Submit([]hal.CommandBuffer{cmdBuf})
	s.dev.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if !s.dev.waitSubmission(index, framepipe.DefaultFenceTimeout) {
		return nil, framepipe.ErrFenceTimeout
	}

	size := uint64(alignedPitch(img.width)) * uint64(img.height)
	m, err := dev.MapBuffer(s.staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	pixels := make([]byte, size)
	copy(pixels, unsafe.Slice((*byte)(m.Ptr), size))
	if err := dev.UnmapBuffer(s.staging); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return pixels, nil
}

func (s *Swapchain) invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *Swapchain) resize(w, h uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.images)
	s.release()
	if err := s.build(w, h, n); err != nil {
		return err
	}
	s.stale = true
	return nil
}

// FrontBuffer returns the last presented image, or nil.
func (s *Swapchain) FrontBuffer() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front
}

// Presented returns the number of presented images.
func (s *Swapchain) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}
