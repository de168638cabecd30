package session

// State is the lifecycle state of a Loop.
type State int

const (
	StateUnbound State = iota
	StateListening
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "Unbound"
	case StateListening:
		return "Listening"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
