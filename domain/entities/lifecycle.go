package entities

// State is the lifecycle state of a loaded plugin instance.
//
// Transitions only move forward, one step at a time:
// Loading → Active → Uninstalling → Unloaded. A failed install moves
// Loading → Uninstalling → Unloaded.
type State int32

const (
	StateLoading State = iota
	StateActive
	StateUninstalling
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateUninstalling:
		return "uninstalling"
	case StateUnloaded:
		return "unloaded"
	default:
		return "invalid"
	}
}

// AcceptsRegistrations reports whether callbacks may be registered in this state.
func (s State) AcceptsRegistrations() bool {
	return s == StateLoading || s == StateActive
}

// Next returns the state that follows s, and false for the terminal state.
func (s State) Next() (State, bool) {
	switch s {
	case StateLoading:
		return StateActive, true
	case StateActive:
		return StateUninstalling, true
	case StateUninstalling:
		return StateUnloaded, true
	default:
		return s, false
	}
}
