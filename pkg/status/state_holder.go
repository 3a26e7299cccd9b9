package status

import "sync"

// StateHolder stores the current run state in a thread-safe way and keeps the trail
// of states visited since the last Reset.
type StateHolder struct {
	mu       sync.RWMutex
	state    State
	trail    []State
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
	if old != s {
		h.trail = append(h.trail, s)
	}
	cb := h.onChange
	h.mu.Unlock()

	if old != s && cb != nil {
		cb(old, s)
	}
}

// Get returns the current state.
func (h *StateHolder) Get() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Trail returns a copy of the visited states.
func (h *StateHolder) Trail() []State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := make([]State, len(h.trail))
	copy(res, h.trail)
	return res
}

// Reset clears the state and trail without firing OnChange.
func (h *StateHolder) Reset() {
	h.mu.Lock()
	h.state = ""
	h.trail = nil
	h.mu.Unlock()
}
