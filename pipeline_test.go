package framepipe

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// volumeLightFrame declares the three passes of the volume light demo: an
// occlusion mask prepass, the raymarch composite into the backbuffer and a
// text overlay.
func volumeLightFrame(mask, depth Resource, slots *[]int) []RenderPass {
	return []RenderPass{
		{
			Name:   "occlusion",
			Colors: []ColorAttachment{{Resource: mask, Load: LoadActionClear, ClearColor: [4]float32{1, 1, 0, 0}}},
			Depth:  &DepthAttachment{Resource: depth, Load: LoadActionClear, ClearDepth: 1},
			Draw: func(rec Recorder, f *FrameInfo) error {
				if slots != nil {
					*slots = append(*slots, f.Slot)
				}
				rec.(*fakeRecorder).note("draw occlusion")
				return nil
			},
		},
		{
			Name:   "composite",
			Colors: []ColorAttachment{{Resource: Backbuffer, Load: LoadActionClear}},
			Inputs: []Resource{mask},
			Draw:   drawNote("composite"),
		},
		{
			Name:   "overlay",
			Colors: []ColorAttachment{{Resource: Backbuffer, Load: LoadActionLoad}},
			Draw:   drawNote("overlay"),
		},
	}
}

func newTestPipeline(t *testing.T, images int, opts ...Option) (*Pipeline, *fakeDevice, *fakeQueue, *fakeSurface) {
	t.Helper()
	b, dev, q, s := newFakeBackend(images)
	p, err := New(b, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, dev, q, s
}

func TestPipeline_EndToEnd(t *testing.T) {
	const n = 3
	p, dev, q, s := newTestPipeline(t, 2, WithFramesInFlight(n))
	dev.deferComplete = true
	mask, depth := newRes("mask"), newRes("depth")
	_ = p.Track(mask, StateUndefined)
	_ = p.Track(depth, StateUndefined)

	var slots []int
	for k := 0; k < 2*n; k++ {
		queriesBefore := len(dev.signalQueries)
		if err := p.DeclareFrame(volumeLightFrame(mask, depth, &slots)...); err != nil {
			t.Fatalf("frame %d: DeclareFrame: %v", k, err)
		}
		outcome, err := p.Tick()
		if outcome != Presented || err != nil {
			t.Fatalf("frame %d: Tick() = %v, %v, want Presented, nil", k, outcome, err)
		}

		queried := len(dev.signalQueries) - queriesBefore
		switch {
		case k < n && queried != 0:
			t.Errorf("frame %d queried %d fences before the ring wrapped", k, queried)
		case k >= n && queried != 1:
			t.Errorf("frame %d queried %d fences, want 1", k, queried)
		case k >= n && dev.signalQueries[len(dev.signalQueries)-1] != dev.fences[k%n]:
			t.Errorf("frame %d queried the fence of another slot", k)
		}
		if got := len(s.presented); got != k+1 {
			t.Errorf("frame %d: %d presents, want %d", k, got, k+1)
		}
	}

	if !reflect.DeepEqual(s.presented, s.acquired) {
		t.Errorf("presented %v, want acquisition order %v", s.presented, s.acquired)
	}
	if want := []int{0, 1, 2, 0, 1, 2}; !reflect.DeepEqual(slots, want) {
		t.Errorf("slots = %v, want %v", slots, want)
	}
	if p.FrameIndex() != 2*n {
		t.Errorf("FrameIndex() = %d, want %d", p.FrameIndex(), 2*n)
	}
	if len(q.submits) != 2*n {
		t.Errorf("%d submissions, want %d", len(q.submits), 2*n)
	}
	if len(dev.violations) > 0 {
		t.Errorf("barrier violations: %v", dev.violations)
	}
	st := p.Stats()
	if st.Frames != 2*n || st.Presented != 2*n || st.Stalls != n {
		t.Errorf("Stats() = %+v, want %d frames, %d presented, %d stalls", st, 2*n, 2*n, n)
	}
}

func TestPipeline_ClearOnlyFrames(t *testing.T) {
	const n = 3
	p, dev, q, s := newTestPipeline(t, n, WithFramesInFlight(n))
	dev.deferComplete = true
	clearOnly := RenderPass{
		Name:   "clear",
		Colors: []ColorAttachment{{Resource: Backbuffer, Load: LoadActionClear, ClearColor: [4]float32{0, 0, 0, 1}}},
	}

	for k := 0; k < 2*n; k++ {
		waitsBefore := len(dev.waits)
		if err := p.DeclareFrame(clearOnly); err != nil {
			t.Fatalf("frame %d: DeclareFrame: %v", k, err)
		}
		if outcome, err := p.Tick(); outcome != Presented || err != nil {
			t.Fatalf("frame %d: Tick() = %v, %v, want Presented, nil", k, outcome, err)
		}
		waited := dev.waits[waitsBefore:]
		switch {
		case k < n && len(waited) != 0:
			t.Errorf("frame %d waited on %d fences before the ring wrapped", k, len(waited))
		case k >= n && (len(waited) != 1 || waited[0] != dev.fences[k%n]):
			t.Errorf("frame %d waited on %v, want the fence of slot %d", k, waited, k%n)
		}
	}

	slots := make(map[*fakeFence]int)
	for i, sub := range q.submits[:n] {
		slots[sub.Fence.(*fakeFence)] = i
	}
	if len(slots) != n {
		t.Errorf("first %d frames used %d distinct slots, want %d", n, len(slots), n)
	}
	for k, sub := range q.submits {
		if sub.Fence != dev.fences[k%n] {
			t.Errorf("frame %d submitted with the fence of another slot", k)
		}
	}

	if !reflect.DeepEqual(s.presented, s.acquired) {
		t.Errorf("presented %v, want acquisition order %v", s.presented, s.acquired)
	}
	for k := 1; k < n; k++ {
		if s.presented[k] <= s.presented[k-1] {
			t.Errorf("present %d of image %d after image %d", k, s.presented[k], s.presented[k-1])
		}
	}
	if len(dev.violations) > 0 {
		t.Errorf("barrier violations: %v", dev.violations)
	}
}

func TestPipeline_SubmissionSynchronization(t *testing.T) {
	p, _, q, s := newTestPipeline(t, 3)
	mask, depth := newRes("mask"), newRes("depth")
	_ = p.Track(mask, StateUndefined)
	_ = p.Track(depth, StateUndefined)

	_ = p.DeclareFrame(volumeLightFrame(mask, depth, nil)...)
	if outcome, err := p.Tick(); outcome != Presented {
		t.Fatalf("Tick() = %v, %v", outcome, err)
	}
	sub := q.submits[0]
	slot := p.ring.Slot(0)
	if len(sub.Wait) != 1 || sub.Wait[0] != slot.ImageAcquired() {
		t.Errorf("submission waits on %v, want the image-acquired semaphore", sub.Wait)
	}
	if len(sub.Signal) != 1 || sub.Signal[0] != slot.RenderComplete() {
		t.Errorf("submission signals %v, want the render-complete semaphore", sub.Signal)
	}
	if sub.Fence != slot.Fence() {
		t.Error("submission does not signal the slot fence")
	}

	rec := sub.Recorder.(*fakeRecorder)
	last := rec.ops[len(rec.ops)-1]
	if last != "barrier swapchain0: RenderTarget -> Present" {
		t.Errorf("last recorded op = %q, want the present barrier", last)
	}
	if st, _ := p.StateOf(s.images[0]); st != StatePresent {
		t.Errorf("backbuffer state = %v after the frame, want Present", st)
	}
	if st, _ := p.StateOf(mask); st != StateShaderResource {
		t.Errorf("mask state = %v after the frame, want ShaderResource", st)
	}
}

func TestPipeline_BarriersNotRepeated(t *testing.T) {
	p, _, q, _ := newTestPipeline(t, 1, WithFramesInFlight(1))
	mask, depth := newRes("mask"), newRes("depth")
	_ = p.Track(mask, StateUndefined)
	_ = p.Track(depth, StateUndefined)

	passes := []RenderPass{
		{Name: "a", Colors: []ColorAttachment{{Resource: mask}}, Depth: &DepthAttachment{Resource: depth}},
		{Name: "b", Colors: []ColorAttachment{{Resource: mask}}, Depth: &DepthAttachment{Resource: depth}},
		{Name: "c", Colors: []ColorAttachment{{Resource: Backbuffer}}, Inputs: []Resource{mask}},
	}
	_ = p.DeclareFrame(passes...)
	if _, err := p.Tick(); err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, op := range q.submits[0].Recorder.(*fakeRecorder).ops {
		if strings.HasPrefix(op, "barrier mask") {
			n++
		}
	}
	// Undefined -> RenderTarget, RenderTarget -> ShaderResource
	if n != 2 {
		t.Errorf("%d mask barriers, want 2", n)
	}
}

func TestPipeline_TickWithoutDeclaration(t *testing.T) {
	p, _, q, s := newTestPipeline(t, 2)
	outcome, err := p.Tick()
	if outcome != Rejected || !errors.Is(err, ErrNoFrameDeclared) {
		t.Errorf("Tick() = %v, %v, want Rejected, ErrNoFrameDeclared", outcome, err)
	}
	if len(s.acquired) != 0 || len(q.submits) != 0 {
		t.Error("rejected tick acquired or submitted")
	}

	mask := newRes("mask")
	_ = p.Track(mask, StateUndefined)
	_ = p.DeclareFrame(RenderPass{Name: "only", Colors: []ColorAttachment{{Resource: Backbuffer}}})
	if outcome, _ := p.Tick(); outcome != Presented {
		t.Fatalf("Tick() = %v, want Presented", outcome)
	}
	// The declaration is consumed by the tick.
	if outcome, err := p.Tick(); outcome != Rejected || !errors.Is(err, ErrNoFrameDeclared) {
		t.Errorf("second Tick() = %v, %v, want Rejected", outcome, err)
	}
	if p.Stats().Rejected != 2 {
		t.Errorf("Stats().Rejected = %d, want 2", p.Stats().Rejected)
	}
}

func TestPipeline_DeclareFrameRejects(t *testing.T) {
	written := newRes("written")
	sampled := newRes("sampled")
	fresh := newRes("fresh")
	stranger := newRes("stranger")

	tests := []struct {
		name   string
		passes []RenderPass
		want   error
	}{
		{"empty frame", nil, ErrEmptyFrame},
		{"no outputs", []RenderPass{{Name: "p", Inputs: []Resource{sampled}}}, ErrNoOutputs},
		{"nil output", []RenderPass{{Name: "p", Colors: []ColorAttachment{{}}}}, ErrNilResource},
		{"nil input", []RenderPass{{Name: "p", Colors: []ColorAttachment{{Resource: written}}, Inputs: []Resource{nil}}}, ErrNilResource},
		{"sampled and written", []RenderPass{{Name: "p", Colors: []ColorAttachment{{Resource: written}}, Inputs: []Resource{written}}}, ErrBindConflict},
		{"untracked output", []RenderPass{{Name: "p", Colors: []ColorAttachment{{Resource: stranger}}}}, ErrUntrackedResource},
		{"untracked input", []RenderPass{{Name: "p", Colors: []ColorAttachment{{Resource: written}}, Inputs: []Resource{stranger}}}, ErrUntrackedResource},
		{"read before write", []RenderPass{{Name: "p", Colors: []ColorAttachment{{Resource: written}}, Inputs: []Resource{fresh}}}, ErrReadBeforeWrite},
		{"backbuffer read before write", []RenderPass{{Name: "p", Colors: []ColorAttachment{{Resource: written}}, Inputs: []Resource{Backbuffer}}}, ErrReadBeforeWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _, _ := newTestPipeline(t, 2)
			_ = p.Track(written, StateUndefined)
			_ = p.Track(sampled, StateShaderResource)
			_ = p.Track(fresh, StateUndefined)

			err := p.DeclareFrame(tt.passes...)
			if !errors.Is(err, tt.want) {
				t.Errorf("DeclareFrame() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrPrecondition) {
				t.Errorf("DeclareFrame() error = %v, want it to match ErrPrecondition", err)
			}
			if s, _ := p.StateOf(written); s != StateUndefined {
				t.Errorf("rejected declaration changed state of written to %v", s)
			}
			if outcome, _ := p.Tick(); outcome != Rejected {
				t.Errorf("Tick() after rejected declaration = %v, want Rejected", outcome)
			}
		})
	}
}

func TestPipeline_DeclareFrameAccepts(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, 2)
	fresh, lut := newRes("fresh"), newRes("lut")
	_ = p.Track(fresh, StateUndefined)
	// Loaded textures are registered as shader resources.
	_ = p.Track(lut, StateShaderResource)

	err := p.DeclareFrame(
		RenderPass{Name: "write", Colors: []ColorAttachment{{Resource: fresh}}, Inputs: []Resource{lut}},
		RenderPass{Name: "read", Colors: []ColorAttachment{{Resource: Backbuffer}}, Inputs: []Resource{fresh, lut}},
	)
	if err != nil {
		t.Errorf("DeclareFrame() = %v, want nil", err)
	}
}

func TestPipeline_DeclarationIsCopied(t *testing.T) {
	p, _, q, _ := newTestPipeline(t, 1)
	a, b := newRes("a"), newRes("b")
	_ = p.Track(a, StateUndefined)
	_ = p.Track(b, StateUndefined)

	colors := []ColorAttachment{{Resource: a}}
	_ = p.DeclareFrame(RenderPass{Name: "p", Colors: colors})
	colors[0].Resource = b

	if _, err := p.Tick(); err != nil {
		t.Fatal(err)
	}
	ops := q.submits[0].Recorder.(*fakeRecorder).ops
	if ops[1] != "bind [a]" {
		t.Errorf("ops = %q, want the declared target a bound", ops)
	}
}

func TestPipeline_UniformWriter(t *testing.T) {
	var frames []uint64
	w := func(f *FrameInfo, dst []byte) error {
		frames = append(frames, f.Index)
		dst[0] = byte(f.Index + 10)
		return nil
	}
	p, dev, _, _ := newTestPipeline(t, 2, WithUniformWriter(w), WithUniformSize(64))
	for k := 0; k < 4; k++ {
		_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
		if _, err := p.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if want := []uint64{0, 1, 2, 3}; !reflect.DeepEqual(frames, want) {
		t.Errorf("writer frames = %v, want %v", frames, want)
	}
	// Frame 3 reused slot 0.
	if got := dev.uniforms[0].data[0]; got != 13 {
		t.Errorf("slot 0 uniform = %d, want 13", got)
	}
	if got := dev.uniforms[1].flushes; got != 1 {
		t.Errorf("slot 1 flushed %d times, want 1", got)
	}
	if len(dev.uniforms[0].data) != 64 {
		t.Errorf("uniform size = %d, want 64", len(dev.uniforms[0].data))
	}
}

func TestPipeline_CallbackErrorsStillPresent(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		opts []Option
		draw DrawFunc
	}{
		{"draw error", nil, func(Recorder, *FrameInfo) error { return boom }},
		{"uniform writer error", []Option{WithUniformWriter(func(*FrameInfo, []byte) error { return boom })}, drawNote("p")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, dev, _, s := newTestPipeline(t, 2, tt.opts...)
			_ = p.DeclareFrame(
				RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}, Draw: tt.draw},
				RenderPass{Name: "q", Colors: []ColorAttachment{{Resource: Backbuffer}}, Draw: drawNote("q")},
			)
			outcome, err := p.Tick()
			if outcome != Presented {
				t.Errorf("Tick() outcome = %v, want Presented", outcome)
			}
			if !errors.Is(err, ErrPassFailed) || !errors.Is(err, boom) {
				t.Errorf("Tick() error = %v, want ErrPassFailed wrapping boom", err)
			}
			if len(s.presented) != 1 {
				t.Errorf("%d presents, want 1", len(s.presented))
			}
			for _, op := range dev.recorders[0].ops {
				if op == "draw q" {
					t.Error("pass after the failure was recorded")
				}
			}
			if p.State() != StateIdle {
				t.Errorf("State() = %v, want Idle", p.State())
			}
			if p.Stats().PassFailures != 1 {
				t.Errorf("Stats().PassFailures = %d, want 1", p.Stats().PassFailures)
			}
		})
	}
}

func TestPipeline_StateObserver(t *testing.T) {
	var got []string
	obs := func(from, to State) { got = append(got, from.String()+">"+to.String()) }
	p, _, _, _ := newTestPipeline(t, 2, WithStateObserver(obs))
	_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
	if _, err := p.Tick(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Idle>Acquiring",
		"Acquiring>Recording",
		"Recording>Submitted",
		"Submitted>Presenting",
		"Presenting>Idle",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestPipeline_SurfaceStaleOnAcquire(t *testing.T) {
	p, _, q, s := newTestPipeline(t, 2)
	lost := true
	s.acquire = func() error {
		if lost {
			lost = false
			return ErrSurfaceLost
		}
		return nil
	}

	_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
	outcome, err := p.Tick()
	if outcome != SurfaceStale || err != nil {
		t.Fatalf("Tick() = %v, %v, want SurfaceStale, nil", outcome, err)
	}
	if p.FrameIndex() != 0 {
		t.Errorf("FrameIndex() = %d after stale acquire, want 0", p.FrameIndex())
	}
	if len(q.submits) != 0 {
		t.Error("stale acquire submitted work")
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %v, want Idle", p.State())
	}

	if err := p.SurfaceRecreated(); err != nil {
		t.Fatalf("SurfaceRecreated: %v", err)
	}
	_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
	if outcome, err := p.Tick(); outcome != Presented || err != nil {
		t.Errorf("Tick() after recovery = %v, %v, want Presented", outcome, err)
	}
}

func TestPipeline_SurfaceStaleOnPresent(t *testing.T) {
	p, _, q, s := newTestPipeline(t, 2)
	s.present = func() error { return ErrSurfaceLost }

	_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
	outcome, err := p.Tick()
	if outcome != SurfaceStale || err != nil {
		t.Fatalf("Tick() = %v, %v, want SurfaceStale, nil", outcome, err)
	}
	// The frame was submitted, so the index advanced and the slot is in flight.
	if p.FrameIndex() != 1 {
		t.Errorf("FrameIndex() = %d, want 1", p.FrameIndex())
	}
	if len(q.submits) != 1 || !p.ring.Slot(0).InFlight() {
		t.Error("frame was not submitted before presentation failed")
	}
	if p.Stats().SurfaceStale != 1 {
		t.Errorf("Stats().SurfaceStale = %d, want 1", p.Stats().SurfaceStale)
	}
}

func TestPipeline_FatalErrorsHalt(t *testing.T) {
	tests := []struct {
		name  string
		setup func(dev *fakeDevice, q *fakeQueue, s *fakeSurface)
		warm  int
		want  error
	}{
		{
			name:  "fence timeout",
			setup: func(dev *fakeDevice, _ *fakeQueue, _ *fakeSurface) { dev.deferComplete = true; dev.hang = true },
			warm:  2,
			want:  ErrFenceTimeout,
		},
		{
			name:  "submit failure",
			setup: func(_ *fakeDevice, q *fakeQueue, _ *fakeSurface) { q.submitErr = ErrDeviceLost },
			want:  ErrDeviceLost,
		},
		{
			name: "acquire failure",
			setup: func(_ *fakeDevice, _ *fakeQueue, s *fakeSurface) {
				s.acquire = func() error { return ErrDeviceLost }
			},
			want: ErrDeviceLost,
		},
		{
			name: "present failure",
			setup: func(_ *fakeDevice, _ *fakeQueue, s *fakeSurface) {
				s.present = func() error { return ErrDeviceLost }
			},
			want: ErrDeviceLost,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, dev, q, s := newTestPipeline(t, 2, WithFramesInFlight(2), WithFenceTimeout(time.Millisecond))
			tt.setup(dev, q, s)
			declare := func() error {
				return p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
			}
			for k := 0; k < tt.warm; k++ {
				_ = declare()
				if outcome, err := p.Tick(); outcome != Presented {
					t.Fatalf("warm-up frame %d: %v, %v", k, outcome, err)
				}
			}

			_ = declare()
			outcome, err := p.Tick()
			if outcome != DeviceLost || !errors.Is(err, tt.want) {
				t.Fatalf("Tick() = %v, %v, want DeviceLost, %v", outcome, err, tt.want)
			}
			if p.State() != StateHalted {
				t.Errorf("State() = %v, want Halted", p.State())
			}
			if err := declare(); !errors.Is(err, ErrHalted) {
				t.Errorf("DeclareFrame() after halt = %v, want ErrHalted", err)
			}
			if outcome, err := p.Tick(); outcome != DeviceLost || !errors.Is(err, ErrHalted) {
				t.Errorf("Tick() after halt = %v, %v, want DeviceLost, ErrHalted", outcome, err)
			}
		})
	}
}

func TestPipeline_ShutdownDrains(t *testing.T) {
	const n = 3
	p, dev, _, _ := newTestPipeline(t, 2, WithFramesInFlight(n))
	dev.deferComplete = true
	for k := 0; k < n; k++ {
		_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
		if _, err := p.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	dev.events = nil

	if err := p.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	waits, firstDestroy := 0, -1
	for i, ev := range dev.events {
		switch {
		case strings.HasPrefix(ev, "wait"):
			waits++
			if firstDestroy >= 0 {
				t.Errorf("event %d: fence wait after a handle was destroyed", i)
			}
		case strings.HasPrefix(ev, "destroy") && firstDestroy < 0:
			firstDestroy = i
		}
	}
	if waits != n {
		t.Errorf("Shutdown waited %d fences, want %d", waits, n)
	}
	if len(dev.fences) != n {
		t.Fatalf("%d fences created, want %d", len(dev.fences), n)
	}
	for i, f := range dev.fences {
		if !f.signaled || f.pending {
			t.Errorf("fence %d after Shutdown: signaled %v, pending %v, want signaled", i, f.signaled, f.pending)
		}
	}
	if dev.resets != n {
		t.Errorf("%d fence resets for %d submissions, want one per submission", dev.resets, n)
	}
	if want := 5 * n; len(dev.destroyed) != want {
		t.Errorf("Shutdown destroyed %d handles, want %d", len(dev.destroyed), want)
	}

	if err := p.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v, want nil", err)
	}
	if outcome, err := p.Tick(); outcome != Rejected || !errors.Is(err, ErrClosed) {
		t.Errorf("Tick() after Shutdown = %v, %v, want Rejected, ErrClosed", outcome, err)
	}
	if err := p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}}); !errors.Is(err, ErrClosed) {
		t.Errorf("DeclareFrame() after Shutdown = %v, want ErrClosed", err)
	}
}

func TestPipeline_SurfaceRecreated(t *testing.T) {
	p, dev, _, s := newTestPipeline(t, 2)
	dev.deferComplete = true
	_ = p.DeclareFrame(RenderPass{Name: "p", Colors: []ColorAttachment{{Resource: Backbuffer}}})
	if _, err := p.Tick(); err != nil {
		t.Fatal(err)
	}
	old := s.images
	s.images = []*fakeResource{newRes("resized0"), newRes("resized1"), newRes("resized2")}
	s.next = 0

	if err := p.SurfaceRecreated(); err != nil {
		t.Fatalf("SurfaceRecreated: %v", err)
	}
	if p.ring.InFlight() != 0 {
		t.Error("SurfaceRecreated did not drain the ring")
	}
	for _, img := range old {
		if _, ok := p.StateOf(img); ok {
			t.Errorf("old image %s still tracked", img.name)
		}
	}
	for _, img := range s.images {
		if st, ok := p.StateOf(img); !ok || st != StateUndefined {
			t.Errorf("new image %s = %v, %v, want Undefined, tracked", img.name, st, ok)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	b, _, _, _ := newFakeBackend(2)

	tests := []struct {
		name string
		b    Backend
		opts []Option
	}{
		{"no device", Backend{Queue: b.Queue, Surface: b.Surface}, nil},
		{"no queue", Backend{Device: b.Device, Surface: b.Surface}, nil},
		{"no surface", Backend{Device: b.Device, Queue: b.Queue}, nil},
		{"ring too deep", b, []Option{WithFramesInFlight(MaxFramesInFlight + 1)}},
		{"empty ring", b, []Option{WithFramesInFlight(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.b, tt.opts...); !errors.Is(err, ErrPrecondition) {
				t.Errorf("New() error = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := defaultOptions()
	if o.framesInFlight != 3 {
		t.Errorf("framesInFlight = %d, want 3", o.framesInFlight)
	}
	if o.fenceTimeout != 5*time.Second {
		t.Errorf("fenceTimeout = %v, want 5s", o.fenceTimeout)
	}
	if o.uniformSize != DefaultUniformSize {
		t.Errorf("uniformSize = %d, want %d", o.uniformSize, DefaultUniformSize)
	}

	WithFenceTimeout(0)(&o)
	WithLabel("")(&o)
	if o.fenceTimeout != DefaultFenceTimeout || o.label != "framepipe" {
		t.Errorf("zero values overrode defaults: %+v", o)
	}
}
