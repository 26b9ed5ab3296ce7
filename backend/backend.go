package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/framepipe"
)

// Backend names.
const (
	BackendWGPU     = "wgpu"
	BackendSoftware = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrInvalidConfig is returned by Init for unusable dimensions or image counts.
	ErrInvalidConfig = errors.New("backend: invalid config")

	// ErrForeignResource is returned when a resource created by another
	// backend is passed in.
	ErrForeignResource = errors.New("backend: resource not created by this backend")
)

// Config describes the presentation surface a backend creates on Init.
type Config struct {
	// Width and Height are the swapchain dimensions in pixels.
	Width, Height int

	// ImageCount is the number of swapchain images. Zero selects 3.
	ImageCount int

	// Label prefixes debug labels of backend objects.
	Label string
}

// DefaultImageCount is the swapchain length used when Config.ImageCount is zero.
const DefaultImageCount = 3

// Normalize fills defaults and validates c.
func (c Config) Normalize() (Config, error) {
	if c.ImageCount == 0 {
		c.ImageCount = DefaultImageCount
	}
	if c.Label == "" {
		c.Label = "framepipe"
	}
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return c, fmt.Errorf("%w: surface %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.ImageCount < 1 || c.ImageCount > 8:
		return c, fmt.Errorf("%w: %d swapchain images", ErrInvalidConfig, c.ImageCount)
	}
	return c, nil
}

// TextureKind selects the attachment type of a texture.
type TextureKind uint8

const (
	// TextureColor is a sampleable color render target.
	TextureColor TextureKind = iota

	// TextureDepth is a depth/stencil attachment.
	TextureDepth
)

// TextureDesc describes a render target created by a backend.
type TextureDesc struct {
	Label string

	// Width and Height default to the surface size when zero.
	Width, Height int

	Kind TextureKind
}

// FrameBackend is a GPU implementation the frame pipeline can drive.
//
// Backends must be registered via Register() and are selected via Get(),
// Default() or InitDefault().
type FrameBackend interface {
	// Name returns the backend identifier (e.g., "software", "wgpu").
	Name() string

	// Init creates the device, the queue and the surface.
	Init(cfg Config) error

	// Close releases all backend resources. The pipeline using the backend
	// must be shut down first.
	Close()

	// Backend returns the collaborators consumed by framepipe.New.
	Backend() framepipe.Backend

	// CreateTexture allocates a render target.
	CreateTexture(desc TextureDesc) (framepipe.Resource, error)

	// DestroyTexture releases a texture created by CreateTexture.
	DestroyTexture(r framepipe.Resource)

	// Resize rebuilds the swapchain with new dimensions. The next acquire
	// or present reports framepipe.ErrSurfaceLost.
	Resize(width, height int) error
}
