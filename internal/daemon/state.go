// oreon/sentinel · watchthelight <wtl>

package daemon

import (
	"sync"
)

// State is the daemon's coarse protection state shown in the tray.
type State int

const (
	StateProtected State = iota
	StateAlert
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateProtected:
		return "protected"
	case StateAlert:
		return "alert"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// StateTracker holds the current state and notifies observers on
// transitions. Callbacks run on the mutating goroutine.
type StateTracker struct {
	mu        sync.Mutex
	state     State
	observers []func(old, new State)
}

// NewStateTracker starts in StateProtected.
func NewStateTracker() *StateTracker {
	return &StateTracker{state: StateProtected}
}

// State returns the current state.
func (t *StateTracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions to s, notifying observers when it changes.
func (t *StateTracker) SetState(s State) {
	t.mu.Lock()
	old := t.state
	if old == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	observers := t.observers
	t.mu.Unlock()

	for _, fn := range observers {
		fn(old, s)
	}
}

// OnStateChange registers an observer for transitions.
func (t *StateTracker) OnStateChange(fn func(old, new State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}
