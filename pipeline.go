package framepipe

import (
	"errors"
	"fmt"
	"sync"

	units "github.com/docker/go-units"
	"github.com/loov/hrtime"
)

// Pipeline drives frames through the ring of frame slots:
//
//	acquire image -> wait slot fence -> update uniforms -> execute passes
//	-> submit -> present -> advance frame index
//
// A Pipeline owns its slot ring and its state tracker. The backend objects
// are borrowed and must outlive the pipeline.
//
// Pipeline methods are meant to be called from a single goroutine. They are
// guarded by a mutex so that misuse from several goroutines cannot corrupt
// the state machine.
type Pipeline struct {
	mu sync.Mutex

	backend Backend
	opts    options

	ring    *SlotRing
	tracker *StateTracker
	exec    *Executor

	// images are the swapchain images currently registered with the tracker.
	images []Resource

	state      State
	frameIndex uint64
	declared   []RenderPass
	closed     bool
	haltErr    error

	stats statsRecorder
}

// New creates a pipeline over b. It allocates every frame slot up front and
// registers the swapchain images in the Undefined state.
func New(b Backend, opts ...Option) (*Pipeline, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ring, err := NewSlotRing(b.Device, o.framesInFlight, o.uniformSize, o.fenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("framepipe: %w", err)
	}

	p := &Pipeline{
		backend: b,
		opts:    o,
		ring:    ring,
		tracker: NewStateTracker(),
	}
	p.exec = NewExecutor(p.tracker)
	p.trackImages()

	Logger().Info("framepipe: ring allocated",
		"label", o.label,
		"frames_in_flight", ring.Len(),
		"uniforms", units.BytesSize(float64(uint64(ring.Len())*o.uniformSize)),
		"swapchain_images", len(p.images),
		"fence_timeout", o.fenceTimeout)
	return p, nil
}

func (p *Pipeline) trackImages() {
	n := p.backend.Surface.ImageCount()
	p.images = p.images[:0]
	for i := 0; i < n; i++ {
		img := p.backend.Surface.Image(uint32(i))
		if img == nil {
			continue
		}
		_ = p.tracker.Track(img, StateUndefined)
		p.images = append(p.images, img)
	}
}

// Track registers a resource created by the caller in its current state.
func (p *Pipeline) Track(r Resource, s ResourceState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Track(r, s)
}

// Untrack forgets a resource. A frame declared before Untrack that still
// uses the resource fails at record time.
func (p *Pipeline) Untrack(r Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.Untrack(r)
}

// StateOf returns the tracked state of r as of the last recorded frame.
func (p *Pipeline) StateOf(r Resource) (ResourceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.StateOf(r)
}

// State returns the current state machine state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// FrameIndex returns the index of the next frame to be recorded.
func (p *Pipeline) FrameIndex() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameIndex
}

// FramesInFlight returns the ring depth N.
func (p *Pipeline) FramesInFlight() int {
	return p.opts.framesInFlight
}

// Stats returns a snapshot of the frame statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.s
}

// DeclareFrame declares the passes of the next frame. The passes are copied,
// later changes to the slices they reference have no effect.
//
// The declaration is validated against a simulation of the tracked states.
// A pass referencing an untracked resource, sampling a resource it also
// writes, declaring no outputs or sampling a resource whose contents are
// still undefined at that point of the frame is rejected with an error
// matching ErrPrecondition. A rejected declaration leaves the pipeline
// untouched.
func (p *Pipeline) DeclareFrame(passes ...RenderPass) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return ErrClosed
	case p.state == StateHalted:
		return ErrHalted
	case len(passes) == 0:
		return ErrEmptyFrame
	}

	declared := make([]RenderPass, len(passes))
	for i := range passes {
		declared[i] = passes[i].clone()
	}
	if err := validateFrame(declared, p.tracker); err != nil {
		return err
	}
	p.declared = declared
	return nil
}

// Tick runs one frame of the declared passes. Every tick consumes the
// declaration; DeclareFrame must be called again before the next tick.
//
// Outcomes:
//   - Presented: the frame was submitted and presented. The error is non-nil
//     when a draw callback failed; it matches ErrPassFailed and the passes
//     after the failing one were skipped.
//   - SurfaceStale: the surface was lost during acquire or present. The error
//     is nil. Rebuild swapchain-sized resources, call SurfaceRecreated and
//     tick again.
//   - DeviceLost: a fatal error occurred and the pipeline halted.
//   - Rejected: a precondition was violated and nothing was recorded.
func (p *Pipeline) Tick() (FrameOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return Rejected, ErrClosed
	case p.state == StateHalted:
		return DeviceLost, fmt.Errorf("%w: %w", ErrHalted, p.haltErr)
	case p.declared == nil:
		p.stats.s.Rejected++
		return Rejected, ErrNoFrameDeclared
	}
	passes := p.declared
	p.declared = nil

	start := hrtime.Now()
	slot := p.ring.Acquire(p.frameIndex)

	p.transition(StateAcquiring)
	imageIndex, err := p.backend.Surface.AcquireNextImage(slot.ImageAcquired())
	if err != nil {
		if errors.Is(err, ErrSurfaceLost) {
			return p.stale("acquire", err)
		}
		return p.halt(fmt.Errorf("acquire image for frame %d: %w", p.frameIndex, err))
	}
	image := p.backend.Surface.Image(imageIndex)
	if image == nil {
		return p.halt(fmt.Errorf("acquire image for frame %d: surface returned no image %d: %w", p.frameIndex, imageIndex, ErrDeviceLost))
	}
	if !p.tracker.Tracked(image) {
		// Swapchain images are registered by the pipeline itself.
		_ = p.tracker.Track(image, StateUndefined)
		p.images = append(p.images, image)
	}

	waitStart := hrtime.Now()
	stalled, err := p.ring.WaitUntilFree(slot)
	p.stats.waited(hrtime.Now()-waitStart, stalled)
	if err != nil {
		return p.halt(fmt.Errorf("frame %d: %w", p.frameIndex, err))
	}
	if stalled {
		Logger().Debug("framepipe: fence stall", "frame", p.frameIndex, "slot", slot.Index())
	}

	p.transition(StateRecording)
	rec, err := slot.Recorder()
	if err != nil {
		return p.halt(err)
	}
	ub, err := slot.Uniforms()
	if err != nil {
		return p.halt(err)
	}
	frame := &FrameInfo{
		Index:      p.frameIndex,
		Slot:       slot.Index(),
		ImageIndex: imageIndex,
		Backbuffer: image,
		Uniforms:   ub,
	}

	if err := rec.Reset(); err != nil {
		return p.halt(fmt.Errorf("frame %d: reset recorder: %w", p.frameIndex, err))
	}
	if err := rec.Begin(); err != nil {
		return p.halt(fmt.Errorf("frame %d: begin recording: %w", p.frameIndex, err))
	}

	var passErr error
	if w := p.opts.uniformWriter; w != nil {
		if err := w(frame, ub.Mapped()); err != nil {
			passErr = fmt.Errorf("frame %d: uniform writer: %w: %w", p.frameIndex, ErrPassFailed, err)
		} else if err := ub.Flush(); err != nil {
			return p.halt(fmt.Errorf("frame %d: flush uniforms: %w", p.frameIndex, err))
		}
	}
	if passErr == nil {
		if err := p.exec.Execute(passes, rec, frame); err != nil {
			if !errors.Is(err, ErrPassFailed) && !errors.Is(err, ErrPrecondition) {
				return p.halt(fmt.Errorf("frame %d: %w", p.frameIndex, err))
			}
			passErr = fmt.Errorf("frame %d: %w", p.frameIndex, err)
		}
	}
	if passErr != nil {
		p.stats.s.PassFailures++
		Logger().Warn("framepipe: frame recorded partially", "frame", p.frameIndex, "err", passErr)
	}

	present, err := p.tracker.Require(image, StatePresent)
	if err != nil {
		return p.halt(fmt.Errorf("frame %d: %w", p.frameIndex, err))
	}
	if len(present) > 0 {
		rec.Barrier(present...)
	}
	if err := rec.End(); err != nil {
		return p.halt(fmt.Errorf("frame %d: end recording: %w", p.frameIndex, err))
	}

	if err := p.ring.ResetFence(slot); err != nil {
		return p.halt(fmt.Errorf("frame %d: %w", p.frameIndex, err))
	}
	err = p.backend.Queue.Submit(Submission{
		Recorder: rec,
		Wait:     []Semaphore{slot.ImageAcquired()},
		Signal:   []Semaphore{slot.RenderComplete()},
		Fence:    slot.Fence(),
	})
	if err != nil {
		return p.halt(fmt.Errorf("frame %d: submit: %w", p.frameIndex, err))
	}
	p.ring.MarkSubmitted(slot, p.frameIndex)
	p.stats.submitted(hrtime.Now() - start)
	p.transition(StateSubmitted)

	p.transition(StatePresenting)
	err = p.backend.Surface.Present(imageIndex, []Semaphore{slot.RenderComplete()})
	// The frame was submitted: the index advances whatever presentation does.
	p.frameIndex++
	if err != nil {
		if errors.Is(err, ErrSurfaceLost) {
			outcome, _ := p.stale("present", err)
			return outcome, passErr
		}
		return p.halt(fmt.Errorf("present frame %d: %w", p.frameIndex-1, err))
	}
	p.stats.s.Presented++
	p.transition(StateIdle)
	return Presented, passErr
}

// SurfaceRecreated re-registers the swapchain images after the surface was
// rebuilt. It waits for every in-flight frame first so that no image of the
// old swapchain is still in use.
func (p *Pipeline) SurfaceRecreated() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return ErrClosed
	case p.state == StateHalted:
		return ErrHalted
	}
	if err := p.ring.Drain(); err != nil {
		_, err = p.halt(fmt.Errorf("surface recreated: %w", err))
		return err
	}
	for _, img := range p.images {
		p.tracker.Untrack(img)
	}
	p.trackImages()
	Logger().Info("framepipe: surface recreated", "label", p.opts.label, "swapchain_images", len(p.images))
	return nil
}

// Shutdown waits for every in-flight frame and releases all frame slots.
// It is safe to call more than once; later calls return nil.
//
// The slots are released even when draining fails; the drain error is
// returned.
func (p *Pipeline) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.declared = nil

	err := p.ring.Drain()
	p.ring.Destroy()
	for _, img := range p.images {
		p.tracker.Untrack(img)
	}
	p.images = nil

	if err != nil {
		Logger().Error("framepipe: shutdown drain failed", "label", p.opts.label, "err", err)
		return fmt.Errorf("framepipe: shutdown: %w", err)
	}
	Logger().Info("framepipe: shutdown", "label", p.opts.label, "frames", p.stats.s.Frames)
	return nil
}

func (p *Pipeline) transition(to State) {
	from := p.state
	p.state = to
	if from != to && p.opts.observer != nil {
		p.opts.observer(from, to)
	}
}

func (p *Pipeline) stale(stage string, err error) (FrameOutcome, error) {
	p.stats.s.SurfaceStale++
	p.transition(StateIdle)
	Logger().Warn("framepipe: surface stale", "stage", stage, "frame", p.frameIndex, "err", err)
	return SurfaceStale, nil
}

func (p *Pipeline) halt(err error) (FrameOutcome, error) {
	p.haltErr = err
	p.transition(StateHalted)
	Logger().Error("framepipe: halted", "label", p.opts.label, "err", err)
	return DeviceLost, err
}
