package task

// State is the lifecycle position of an operation. States only move forward:
// pending, then executing, then finished or cancelled. A pending operation
// may also move straight to cancelled.
type State int

// Possible operation states
const (
	StatePending State = iota
	StateExecuting
	StateFinished
	StateCancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can happen from s.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateCancelled
}
