package status

import "sync"

// StateHolder stores the current workflow state in a thread-safe way.
// the orchestrator feeds it from its transition listener; the dashboard reads it.
type StateHolder struct {
	mu       sync.RWMutex
	state    State
	onChange func(old, cur State)
}

// OnChange registers a callback that fires when the state changes.
// only one callback is supported; subsequent calls replace the previous one.
func (h *StateHolder) OnChange(fn func(old, cur State)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Set updates the current state and fires the OnChange callback if the state changed.
func (h *StateHolder) Set(s State) {
	h.mu.Lock()
	old := h.state
	h.state = s
	cb := h.onChange
	h.mu.Unlock()

	if old != s && cb != nil {
		cb(old, s)
	}
}

// Get returns the current state, StateIdle if never set.
func (h *StateHolder) Get() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state == "" {
		return StateIdle
	}
	return h.state
}
