package wgpu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
)

func slogger() *slog.Logger { return framepipe.Logger() }

// DepthFormat is the format of depth textures created by the backend.
const DepthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Backend is the HAL implementation of backend.FrameBackend.
//
// Backend is safe for concurrent use from multiple goroutines.
type Backend struct {
	mu sync.Mutex

	provider gpucontext.DeviceProvider
	device   hal.Device
	queue    hal.Queue
	own      *standalone

	cfg       backend.Config
	dev       *Device
	fqueue    *Queue
	swapchain *Swapchain
	textures  map[*Texture]struct{}

	initialized bool
}

// Option configures a wgpu Backend.
type Option func(*Backend)

// WithDeviceProvider shares the device of a host application. The provider
// must also expose HalDevice() and HalQueue().
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(b *Backend) { b.provider = p }
}

// WithHAL uses an already opened HAL device and queue. The backend does not
// destroy them.
func WithHAL(device hal.Device, queue hal.Queue) Option {
	return func(b *Backend) {
		b.device = device
		b.queue = queue
	}
}

// New creates a wgpu backend. Without options Init opens a standalone
// Vulkan device.
func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendWGPU }

// Init resolves the device and creates the swapchain.
func (b *Backend) Init(cfg backend.Config) error {
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	device, queue, source := b.device, b.queue, "hal"
	switch {
	case device != nil && queue != nil:
	case b.provider != nil:
		if device, queue, err = halDevice(b.provider); err != nil {
			return err
		}
		source = "provider"
	default:
		own, err := openVulkan()
		if err != nil {
			return err
		}
		b.own = own
		device, queue, source = own.device, own.queue, own.adapter
	}

	b.cfg = cfg
	b.dev = &Device{raw: device, queue: queue}
	b.fqueue = &Queue{dev: b.dev}
	sc, err := newSwapchain(b.dev, cfg.Label, uint32(cfg.Width), uint32(cfg.Height), cfg.ImageCount)
	if err != nil {
		b.releaseDevice()
		return err
	}
	b.swapchain = sc
	b.textures = make(map[*Texture]struct{})
	b.initialized = true

	slogger().Info("wgpu: backend initialized",
		"device", source,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"images", cfg.ImageCount)
	return nil
}

func (b *Backend) releaseDevice() {
	if b.own != nil {
		b.own.destroy()
		b.own = nil
	}
	b.dev = nil
	b.fqueue = nil
}

// Close destroys the textures, the swapchain and a standalone device. The
// pipeline must be shut down first.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	for t := range b.textures {
		t.destroy(b.dev.raw)
	}
	b.textures = nil
	b.swapchain.destroy()
	b.swapchain = nil
	b.releaseDevice()
	b.initialized = false
}

// Backend returns the device, queue and swapchain. It returns the zero
// value before Init.
func (b *Backend) Backend() framepipe.Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return framepipe.Backend{}
	}
	return framepipe.Backend{Device: b.dev, Queue: b.fqueue, Surface: b.swapchain}
}

// Device returns the frame pipeline device, or nil before Init.
func (b *Backend) Device() *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev
}

// Swapchain returns the offscreen swapchain, or nil before Init.
func (b *Backend) Swapchain() *Swapchain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapchain
}

// CreateTexture allocates a sampleable render target. Color textures use
// the swapchain format.
func (b *Backend) CreateTexture(desc backend.TextureDesc) (framepipe.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, backend.ErrNotInitialized
	}
	w, h := desc.Width, desc.Height
	if w == 0 && h == 0 {
		w, h = b.cfg.Width, b.cfg.Height
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", backend.ErrInvalidConfig, desc.Label, w, h)
	}
	format, usage := SwapchainFormat, gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc
	if desc.Kind == backend.TextureDepth {
		format, usage = DepthFormat, gputypes.TextureUsageRenderAttachment
	}
	t, err := createTexture(b.dev.raw, desc.Label, uint32(w), uint32(h), format, usage)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}
	b.textures[t] = struct{}{}
	return t, nil
}

// DestroyTexture releases a texture created by CreateTexture.
func (b *Backend) DestroyTexture(r framepipe.Resource) {
	t, ok := r.(*Texture)
	if !ok {
		slogger().Warn("wgpu: destroy texture", "error", backend.ErrForeignResource)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.textures[t]; !ok {
		slogger().Warn("wgpu: destroy texture", "error", backend.ErrForeignResource, "texture", t.label)
		return
	}
	delete(b.textures, t)
	t.destroy(b.dev.raw)
}

// Resize rebuilds the swapchain images. The next acquire reports
// framepipe.ErrSurfaceLost. The pipeline must not have frames in flight
// that use the old images.
func (b *Backend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	cfg := b.cfg
	cfg.Width, cfg.Height = width, height
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}
	if err := b.swapchain.resize(uint32(width), uint32(height)); err != nil {
		return err
	}
	b.cfg = cfg
	return nil
}

// Invalidate marks the swapchain out of date without resizing.
func (b *Backend) Invalidate() {
	if sc := b.Swapchain(); sc != nil {
		sc.invalidate()
	}
}
