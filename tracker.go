package framepipe

import "fmt"

// StateTracker records the current usage state of every tracked resource
// and computes the barrier needed to move a resource to a required state.
//
// Unregistered resources are rejected with ErrUntrackedResource; they are
// never registered implicitly.
//
// StateTracker is not safe for concurrent use. It is only mutated by the
// goroutine driving the pipeline.
type StateTracker struct {
	states map[Resource]ResourceState
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[Resource]ResourceState)}
}

// Track registers r in the given state. Registering an already tracked
// resource overwrites its state.
func (t *StateTracker) Track(r Resource, s ResourceState) error {
	if r == nil {
		return ErrNilResource
	}
	t.states[r] = s
	return nil
}

// Untrack forgets r. Untracking an unknown resource is a no-op.
func (t *StateTracker) Untrack(r Resource) {
	delete(t.states, r)
}

// StateOf returns the recorded state of r and whether r is tracked.
func (t *StateTracker) StateOf(r Resource) (ResourceState, bool) {
	s, ok := t.states[r]
	return s, ok
}

// Tracked reports whether r is registered.
func (t *StateTracker) Tracked(r Resource) bool {
	_, ok := t.states[r]
	return ok
}

// Len returns the number of tracked resources.
func (t *StateTracker) Len() int {
	return len(t.states)
}

// Require moves r to target. It returns no barrier when r is already in
// target, otherwise exactly one barrier from the recorded state, and
// records target as the new state.
func (t *StateTracker) Require(r Resource, target ResourceState) ([]Barrier, error) {
	cur, ok := t.states[r]
	if !ok {
		return nil, fmt.Errorf("require %s for %s: %w", target, resourceLabel(r), ErrUntrackedResource)
	}
	if cur == target {
		return nil, nil
	}
	t.states[r] = target
	return []Barrier{{Resource: r, From: cur, To: target}}, nil
}

// Snapshot returns a copy of the tracked states.
func (t *StateTracker) Snapshot() map[Resource]ResourceState {
	out := make(map[Resource]ResourceState, len(t.states))
	for r, s := range t.states {
		out[r] = s
	}
	return out
}

// clone returns an independent tracker with the same states. Used to
// simulate a frame without touching the real state.
func (t *StateTracker) clone() *StateTracker {
	return &StateTracker{states: t.Snapshot()}
}
