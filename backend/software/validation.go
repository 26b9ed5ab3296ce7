package software

import (
	"fmt"
	"slices"
	"sync"
)

// validator collects API misuse detected while executing commands.
type validator struct {
	mu   sync.Mutex
	errs []string
}

func (v *validator) report(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	v.mu.Lock()
	v.errs = append(v.errs, msg)
	v.mu.Unlock()
	slogger().Warn("software: validation error", "error", msg)
}

func (v *validator) errors() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.errs)
}

func (v *validator) clear() {
	v.mu.Lock()
	v.errs = nil
	v.mu.Unlock()
}
