package software

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
)

// Swapchain is an in-memory presentation surface. Presenting an image copies
// it to the front buffer.
type Swapchain struct {
	dev *Device

	mu        sync.Mutex
	images    []*Texture
	next      uint32
	stale     bool
	front     *image.RGBA
	presented uint64
}

func newSwapchain(dev *Device, label string, w, h, n int) *Swapchain {
	s := &Swapchain{dev: dev}
	s.rebuild(label, w, h, n)
	return s
}

func (s *Swapchain) rebuild(label string, w, h, n int) {
	s.images = make([]*Texture, n)
	for i := range s.images {
		s.images[i] = newTexture(fmt.Sprintf("%s_swapchain%d", label, i), backend.TextureColor, w, h)
	}
	s.next = 0
}

// AcquireNextImage implements framepipe.Surface.
func (s *Swapchain) AcquireNextImage(signal framepipe.Semaphore) (uint32, error) {
	sem, err := semaphores([]framepipe.Semaphore{signal})
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if s.stale {
		s.stale = false
		s.mu.Unlock()
		return 0, fmt.Errorf("software: acquire: %w", framepipe.ErrSurfaceLost)
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.mu.Unlock()

	if err := s.dev.w.enqueue(job{label: "acquire", signal: sem}); err != nil {
		return 0, err
	}
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

// Present implements framepipe.Surface. On a stale surface the wait
// semaphores are still consumed and the image is dropped.
func (s *Swapchain) Present(i uint32, wait []framepipe.Semaphore) error {
	sems, err := semaphores(wait)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.stale {
		s.stale = false
		s.mu.Unlock()
		if err := s.dev.w.enqueue(job{label: "present (dropped)", wait: sems}); err != nil {
			return err
		}
		return fmt.Errorf("software: present: %w", framepipe.ErrSurfaceLost)
	}
	if int(i) >= len(s.images) {
		s.mu.Unlock()
		return fmt.Errorf("software: present: image %d out of range", i)
	}
	img := s.images[i]
	s.mu.Unlock()

	return s.dev.w.enqueue(job{
		label: "present",
		wait:  sems,
		run: func() {
			if st := img.State(); st != framepipe.StatePresent {
				s.dev.val.report("present: %s in state %s", img.label, st)
			}
			snap := img.Snapshot()
			s.mu.Lock()
			s.front = snap
			s.presented++
			s.mu.Unlock()
		},
	})
}

// invalidate marks the surface out of date. The next acquire or present
// fails once with framepipe.ErrSurfaceLost.
func (s *Swapchain) invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *Swapchain) resize(label string, w, h int) {
	s.mu.Lock()
	s.rebuild(label, w, h, len(s.images))
	s.stale = true
	s.mu.Unlock()
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
