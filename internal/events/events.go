package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransitionEvent records one state change of an operation.
type TransitionEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// OperationID identifies the operation that changed state
	OperationID uuid.UUID `json:"operation_id"`

	// Name is the operation's descriptive name
	Name string `json:"name"`

	// From and To are the state names before and after the change
	From string `json:"from"`
	To   string `json:"to"`

	// At is the time the change was applied
	At time.Time `json:"at"`
}

// NewTransitionEvent creates an event for a change from one state to another.
func NewTransitionEvent(operationID uuid.UUID, name, from, to string) *TransitionEvent {
	return &TransitionEvent{
		ID:          uuid.New(),
		OperationID: operationID,
		Name:        name,
		From:        from,
		To:          to,
		At:          time.Now(),
	}
}

// String implements fmt.Stringer.
func (e *TransitionEvent) String() string {
	return fmt.Sprintf("%s[%s]: %s -> %s", e.Name, e.OperationID, e.From, e.To)
}

// EventHandler defines an interface for components that observe transitions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TransitionEvent) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *TransitionEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TransitionEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TransitionEvent) error
}
