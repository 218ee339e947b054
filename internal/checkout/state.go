package checkout

import "fmt"

type State int

const (
	StateValidating State = iota
	StatePricing
	StatePersisting
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StatePricing:
		return "pricing"
	case StatePersisting:
		return "persisting"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

var transitions = map[State][]State{
	StateValidating: {StatePricing, StateAborted},
	StatePricing:    {StatePersisting, StateAborted},
	StatePersisting: {StateCommitted, StateAborted},
}

// CanTransition reports whether a checkout may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
