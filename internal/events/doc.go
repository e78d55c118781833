// Package events carries operation state transitions from the scheduler to
// whoever wants to observe them.
//
// The scheduler emits a TransitionEvent every time an operation moves between
// states. Observers register an EventHandler on an emitter and never need a
// reference to the operation itself.
package events
