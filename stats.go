package framepipe

import "time"

// Stats summarizes the frames driven by a Pipeline.
type Stats struct {
	// Frames is the number of frames submitted to the queue.
	Frames uint64

	// Presented is the number of frames handed to presentation.
	Presented uint64

	// SurfaceStale is the number of ticks that ended with a stale surface.
	SurfaceStale uint64

	// Rejected is the number of ticks rejected for a precondition violation.
	Rejected uint64

	// PassFailures is the number of frames in which a draw callback failed.
	PassFailures uint64

	// Stalls is the number of times the CPU blocked on a slot fence.
	Stalls uint64

	// LastCPUTime is the CPU time spent in the last submitted frame, from
	// image acquisition to submission.
	LastCPUTime time.Duration

	// AvgCPUTime is the mean of LastCPUTime over all submitted frames.
	AvgCPUTime time.Duration

	// LastWaitTime is the time spent waiting for the last slot fence.
	LastWaitTime time.Duration

	// TotalWaitTime is the accumulated fence wait time.
	TotalWaitTime time.Duration
}

type statsRecorder struct {
	s        Stats
	totalCPU time.Duration
}

func (r *statsRecorder) waited(d time.Duration, stalled bool) {
	r.s.LastWaitTime = d
	r.s.TotalWaitTime += d
	if stalled {
		r.s.Stalls++
	}
}

func (r *statsRecorder) submitted(cpu time.Duration) {
	r.s.Frames++
	r.s.LastCPUTime = cpu
	r.totalCPU += cpu
	r.s.AvgCPUTime = r.totalCPU / time.Duration(r.s.Frames)
}
