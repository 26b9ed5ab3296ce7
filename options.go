package framepipe

import "time"

// Option configures a Pipeline during creation.
//
// Example:
//
//	p, err := framepipe.New(b,
//	    framepipe.WithFramesInFlight(2),
//	    framepipe.WithUniformWriter(writeCamera),
//	)
type Option func(*options)

// UniformWriter fills the mapped uniform buffer of the frame's slot before
// any pass is recorded. dst is only valid for the duration of the call.
type UniformWriter func(frame *FrameInfo, dst []byte) error

// StateObserver is notified of every state machine transition.
type StateObserver func(from, to State)

// DefaultFenceTimeout bounds a single fence wait. A wait that exceeds it is
// treated as device loss.
const DefaultFenceTimeout = 5 * time.Second

// DefaultUniformSize is the size of each slot's uniform buffer in bytes.
const DefaultUniformSize = 256

// options holds optional configuration for Pipeline creation.
type options struct {
	framesInFlight int
	fenceTimeout   time.Duration
	uniformSize    uint64
	uniformWriter  UniformWriter
	observer       StateObserver
	label          string
}

// defaultOptions returns the default pipeline options.
func defaultOptions() options {
	return options{
		framesInFlight: DefaultFramesInFlight,
		fenceTimeout:   DefaultFenceTimeout,
		uniformSize:    DefaultUniformSize,
		label:          "framepipe",
	}
}

// WithFramesInFlight sets the ring depth N, the number of frames the CPU may
// record ahead of the GPU. Valid values are 1 through MaxFramesInFlight.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = n
	}
}

// WithFenceTimeout sets the maximum duration of a single fence wait.
// Non-positive values keep the default.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithUniformSize sets the size in bytes of each slot's uniform buffer.
func WithUniformSize(size uint64) Option {
	return func(o *options) {
		o.uniformSize = size
	}
}

// WithUniformWriter installs the per-frame uniform update. It runs once per
// frame after the slot's fence was waited on.
func WithUniformWriter(w UniformWriter) Option {
	return func(o *options) {
		o.uniformWriter = w
	}
}

// WithStateObserver installs a callback invoked on every state transition.
// It runs on the goroutine calling Tick and must not call back into the
// pipeline.
func WithStateObserver(fn StateObserver) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithLabel sets the label used in log records.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}
