package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
)

// Backend is the CPU implementation of backend.FrameBackend.
//
// Backend is safe for concurrent use from multiple goroutines.
type Backend struct {
	mu      sync.Mutex
	latency time.Duration

	cfg       backend.Config
	val       *validator
	dev       *Device
	queue     *Queue
	swapchain *Swapchain

	initialized bool
}

// Option configures a software Backend.
type Option func(*Backend)

// WithLatency delays the execution of every queue job by d. It makes the
// worker slower than the recording side so that the pipeline has to wait on
// frame fences.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.latency = d
		}
	}
}

// New creates a software backend. The backend must be initialized with
// Init before use.
func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendSoftware }

// Init starts the worker and creates the swapchain.
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
	b.cfg = cfg
	b.val = &validator{}
	b.dev = &Device{w: newWorker(b.latency, b.val), val: b.val}
	b.queue = &Queue{dev: b.dev}
	b.swapchain = newSwapchain(b.dev, cfg.Label, cfg.Width, cfg.Height, cfg.ImageCount)
	b.initialized = true

	slogger().Info("software: backend initialized",
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"images", cfg.ImageCount,
		"latency", b.latency)
	return nil
}

// Close stops the worker. Work that has not executed yet is discarded.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	b.dev.w.stop()
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
	return framepipe.Backend{Device: b.dev, Queue: b.queue, Surface: b.swapchain}
}

// Swapchain returns the presentation surface, or nil before Init.
func (b *Backend) Swapchain() *Swapchain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapchain
}

// CreateTexture allocates a CPU render target in the Undefined state.
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
	return newTexture(desc.Label, desc.Kind, w, h), nil
}

// DestroyTexture releases a texture. Software textures are garbage
// collected; only foreign resources are reported.
func (b *Backend) DestroyTexture(r framepipe.Resource) {
	if _, ok := r.(*Texture); !ok {
		slogger().Warn("software: destroy texture", "error", backend.ErrForeignResource, "resource", labelOf(r))
	}
}

// Resize waits for the worker to go idle and rebuilds the swapchain. The
// next acquire or present reports framepipe.ErrSurfaceLost.
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
	if err := b.dev.w.idle(framepipe.DefaultFenceTimeout); err != nil {
		return err
	}
	b.cfg = cfg
	b.swapchain.resize(cfg.Label, width, height)
	slogger().Debug("software: swapchain resized", "width", width, "height", height)
	return nil
}

// Invalidate marks the swapchain out of date without resizing, as a
// compositor does when the window is moved to another output.
func (b *Backend) Invalidate() {
	if sc := b.Swapchain(); sc != nil {
		sc.invalidate()
	}
}

// LoseDevice simulates a device loss. Pending work never completes and
// every later submission or fence query fails with framepipe.ErrDeviceLost.
func (b *Backend) LoseDevice() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev != nil {
		b.dev.w.lost.Store(true)
		slogger().Warn("software: device lost")
	}
}

// WaitIdle blocks until every submitted job has executed.
func (b *Backend) WaitIdle() error {
	b.mu.Lock()
	dev := b.dev
	b.mu.Unlock()
	if dev == nil {
		return backend.ErrNotInitialized
	}
	return dev.w.idle(framepipe.DefaultFenceTimeout)
}

// Executed returns the number of queue jobs the worker has finished.
func (b *Backend) Executed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev == nil {
		return 0
	}
	return b.dev.w.executed.Load()
}

// ValidationErrors returns the misuse reports collected so far.
func (b *Backend) ValidationErrors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.val == nil {
		return nil
	}
	return b.val.errors()
}

// ClearValidationErrors discards collected reports.
func (b *Backend) ClearValidationErrors() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.val != nil {
		b.val.clear()
	}
}
