package framepipe

import (
	"errors"
	"fmt"
	"time"
)

// fakeResource is a test texture.
type fakeResource struct{ name string }

func (r *fakeResource) Label() string { return r.name }

func newRes(name string) *fakeResource { return &fakeResource{name: name} }

type fakeFence struct {
	label    string
	signaled bool
	pending  bool
}

type fakeSemaphore struct{ label string }

type fakeUniform struct {
	data    []byte
	flushes int
}

func (u *fakeUniform) Mapped() []byte { return u.data }
func (u *fakeUniform) Flush() error   { u.flushes++; return nil }

// fakeDevice is an in-memory device. Submitted work completes immediately
// unless deferComplete is set, in which case it completes when its fence is
// waited on.
type fakeDevice struct {
	deferComplete bool
	hang          bool
	waitErr       error
	failCreate    string

	// gpuStates mirrors the resource states implied by recorded barriers.
	gpuStates  map[Resource]ResourceState
	violations []string

	recorders  []*fakeRecorder
	fences     []*fakeFence
	semaphores []*fakeSemaphore
	uniforms   []*fakeUniform

	signalQueries []*fakeFence
	waits         []*fakeFence
	resets        int
	destroyed     []any

	// events is the ordered device-wide call log.
	events []string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{gpuStates: make(map[Resource]ResourceState)}
}

func (d *fakeDevice) logf(format string, args ...any) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) CreateRecorder(label string) (Recorder, error) {
	if d.failCreate == "recorder" {
		return nil, errors.New("out of memory")
	}
	r := &fakeRecorder{dev: d, label: label}
	d.recorders = append(d.recorders, r)
	return r, nil
}

func (d *fakeDevice) CreateFence(label string) (Fence, error) {
	if d.failCreate == "fence" {
		return nil, errors.New("out of memory")
	}
	f := &fakeFence{label: label}
	d.fences = append(d.fences, f)
	return f, nil
}

func (d *fakeDevice) CreateSemaphore(label string) (Semaphore, error) {
	if d.failCreate == "semaphore" {
		return nil, errors.New("out of memory")
	}
	s := &fakeSemaphore{label: label}
	d.semaphores = append(d.semaphores, s)
	return s, nil
}

func (d *fakeDevice) CreateUniformBuffer(label string, size uint64) (UniformBuffer, error) {
	if d.failCreate == "uniform" {
		return nil, errors.New("out of memory")
	}
	u := &fakeUniform{data: make([]byte, size)}
	d.uniforms = append(d.uniforms, u)
	return u, nil
}

func (d *fakeDevice) WaitFence(f Fence, _ time.Duration) (bool, error) {
	ff := f.(*fakeFence)
	d.waits = append(d.waits, ff)
	d.logf("wait %s", ff.label)
	if d.waitErr != nil {
		return false, d.waitErr
	}
	if d.hang {
		return false, nil
	}
	if ff.pending {
		ff.pending = false
		ff.signaled = true
	}
	return ff.signaled, nil
}

func (d *fakeDevice) FenceSignaled(f Fence) (bool, error) {
	ff := f.(*fakeFence)
	d.signalQueries = append(d.signalQueries, ff)
	return ff.signaled, nil
}

func (d *fakeDevice) ResetFence(f Fence) error {
	f.(*fakeFence).signaled = false
	d.resets++
	return nil
}

func (d *fakeDevice) Destroy(h any) {
	d.destroyed = append(d.destroyed, h)
	d.logf("destroy %T", h)
}

// completeAll signals every pending fence.
func (d *fakeDevice) completeAll() {
	for _, f := range d.fences {
		if f.pending {
			f.pending = false
			f.signaled = true
		}
	}
}

type fakeQueue struct {
	dev       *fakeDevice
	submitErr error
	submits   []Submission
}

func (q *fakeQueue) Submit(s Submission) error {
	if q.submitErr != nil {
		return q.submitErr
	}
	rec := s.Recorder.(*fakeRecorder)
	if rec.recording {
		return errors.New("submitting a recorder that was not ended")
	}
	f := s.Fence.(*fakeFence)
	if f.signaled || f.pending {
		return errors.New("submitting with a fence that was not reset")
	}
	q.submits = append(q.submits, s)
	q.dev.logf("submit %s", f.label)
	if q.dev.deferComplete {
		f.pending = true
	} else {
		f.signaled = true
	}
	return nil
}

type fakeSurface struct {
	dev     *fakeDevice
	images  []*fakeResource
	next    uint32
	acquire func() error
	present func() error

	acquired  []uint32
	presented []uint32
}

func newFakeSurface(dev *fakeDevice, n int) *fakeSurface {
	s := &fakeSurface{dev: dev}
	for i := 0; i < n; i++ {
		s.images = append(s.images, newRes(fmt.Sprintf("swapchain%d", i)))
	}
	return s
}

func (s *fakeSurface) AcquireNextImage(Semaphore) (uint32, error) {
	if s.acquire != nil {
		if err := s.acquire(); err != nil {
			return 0, err
		}
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.acquired = append(s.acquired, idx)
	s.dev.logf("acquire %d", idx)
	return idx, nil
}

func (s *fakeSurface) Image(i uint32) Resource {
	if int(i) >= len(s.images) {
		return nil
	}
	return s.images[i]
}

func (s *fakeSurface) ImageCount() int { return len(s.images) }

func (s *fakeSurface) Present(i uint32, _ []Semaphore) error {
	if s.present != nil {
		if err := s.present(); err != nil {
			return err
		}
	}
	s.presented = append(s.presented, i)
	s.dev.logf("present %d", i)
	return nil
}

// fakeRecorder logs every recorded command in ops and checks barrier
// sources against the device-wide GPU state.
type fakeRecorder struct {
	dev       *fakeDevice
	label     string
	recording bool
	bound     []Resource
	ops       []string
	resets    int
}

func (r *fakeRecorder) Reset() error {
	r.resets++
	r.ops = nil
	return nil
}

func (r *fakeRecorder) Begin() error {
	if r.recording {
		return errors.New("begin while recording")
	}
	r.recording = true
	return nil
}

func (r *fakeRecorder) End() error {
	if len(r.bound) > 0 {
		return errors.New("end with bound render targets")
	}
	r.recording = false
	return nil
}

func (r *fakeRecorder) Barrier(bs ...Barrier) {
	for _, b := range bs {
		if cur := r.dev.gpuStates[b.Resource]; cur != b.From {
			r.dev.violations = append(r.dev.violations, fmt.Sprintf("barrier %s: resource is %s", b, cur))
		}
		for _, bound := range r.bound {
			if bound == b.Resource {
				r.dev.violations = append(r.dev.violations, fmt.Sprintf("barrier %s while bound", b))
			}
		}
		r.dev.gpuStates[b.Resource] = b.To
		r.ops = append(r.ops, "barrier "+b.String())
	}
}

func (r *fakeRecorder) BindRenderTargets(t RenderTargets) error {
	if len(r.bound) > 0 {
		return errors.New("bind over bound render targets")
	}
	var names []string
	for _, c := range t.Colors {
		r.bound = append(r.bound, c.Resource)
		names = append(names, c.Resource.Label())
	}
	if t.Depth != nil {
		r.bound = append(r.bound, t.Depth.Resource)
		names = append(names, t.Depth.Resource.Label())
	}
	r.ops = append(r.ops, fmt.Sprintf("bind %v", names))
	return nil
}

func (r *fakeRecorder) UnbindRenderTargets() {
	r.bound = nil
	r.ops = append(r.ops, "unbind")
}

func (r *fakeRecorder) BindPipeline(p any)    { r.ops = append(r.ops, fmt.Sprintf("pipeline %v", p)) }
func (r *fakeRecorder) BindDescriptors(d any) { r.ops = append(r.ops, fmt.Sprintf("descriptors %v", d)) }

func (r *fakeRecorder) note(op string) { r.ops = append(r.ops, op) }

// newFakeBackend returns a backend with a swapchain of n images.
func newFakeBackend(n int) (Backend, *fakeDevice, *fakeQueue, *fakeSurface) {
	dev := newFakeDevice()
	q := &fakeQueue{dev: dev}
	s := newFakeSurface(dev, n)
	return Backend{Device: dev, Queue: q, Surface: s}, dev, q, s
}

// drawNote returns a draw callback that logs name into the recorder.
func drawNote(name string) DrawFunc {
	return func(rec Recorder, _ *FrameInfo) error {
		rec.(*fakeRecorder).note("draw " + name)
		return nil
	}
}
