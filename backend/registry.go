package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/framepipe"
)

// BackendFactory creates a new backend instance.
type BackendFactory func() FrameBackend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	// wgpu > software (software is the fallback that always works).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in priority order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return orderedNames()
}

// orderedNames returns priority backends first, then the rest sorted by
// name. Callers hold registryMu.
func orderedNames() []string {
	names := make([]string, 0, len(backends))
	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			names = append(names, name)
		}
	}
	var rest []string
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) FrameBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend based on priority.
// Priority order: wgpu > software
// Returns nil if no backends are registered.
func Default() FrameBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range orderedNames() {
		if b := backends[name](); b != nil {
			return b
		}
	}
	return nil
}

// MustDefault returns the default backend or panics.
func MustDefault() FrameBackend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}

// InitDefault initializes the best backend that accepts cfg. Backends whose
// Init fails are skipped in priority order, so a machine without a GPU
// ends up on the software backend.
func InitDefault(cfg Config) (FrameBackend, error) {
	registryMu.RLock()
	names := orderedNames()
	factories := make([]BackendFactory, len(names))
	for i, name := range names {
		factories[i] = backends[name]
	}
	registryMu.RUnlock()

	var lastErr error
	for i, factory := range factories {
		b := factory()
		if b == nil {
			continue
		}
		if err := b.Init(cfg); err != nil {
			framepipe.Logger().Warn("backend: init failed, trying next", "backend", names[i], "error", err)
			lastErr = err
			continue
		}
		framepipe.Logger().Info("backend: selected", "backend", b.Name())
		return b, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, lastErr)
	}
	return nil, ErrBackendNotAvailable
}

// Init initializes the named backend.
func Init(name string, cfg Config) (FrameBackend, error) {
	b := Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	if err := b.Init(cfg); err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return b, nil
}
