package software

import (
	"sync"
	"sync/atomic"
)

// UniformBuffer is a host-visible buffer. Writes to Mapped become visible to
// the worker on Flush, which models a non-coherent memory mapping.
type UniformBuffer struct {
	label  string
	val    *validator
	mapped []byte

	mu      sync.Mutex
	visible []byte

	// inUse counts submissions referencing the buffer that have not
	// executed yet.
	inUse atomic.Int32
}

func newUniformBuffer(label string, size uint64, val *validator) *UniformBuffer {
	return &UniformBuffer{
		label:   label,
		val:     val,
		mapped:  make([]byte, size),
		visible: make([]byte, size),
	}
}

// Label returns the debug label.
func (u *UniformBuffer) Label() string { return u.label }

// Mapped returns the CPU view of the buffer.
func (u *UniformBuffer) Mapped() []byte { return u.mapped }

// Flush publishes the CPU view to the GPU. Flushing a buffer that pending
// work still reads is a write-after-read hazard and is reported.
func (u *UniformBuffer) Flush() error {
	if u.inUse.Load() > 0 {
		u.val.report("uniform buffer %s flushed while in use by the GPU", u.label)
	}
	u.mu.Lock()
	copy(u.visible, u.mapped)
	u.mu.Unlock()
	return nil
}

// read returns a copy of n bytes at off as seen by the GPU.
func (u *UniformBuffer) read(off, n int) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if off < 0 || n < 0 || off+n > len(u.visible) {
		return nil, false
	}
	return append([]byte(nil), u.visible[off:off+n]...), true
}
