package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type subscription struct {
	id      uint64
	handler EventHandler
	filter  func(*TransitionEvent) bool
}

// InMemoryEventEmitter fans transition events out to subscribers in the
// order they subscribed. Handlers run on the emitting goroutine.
type InMemoryEventEmitter struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter without subscribers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "transition_emitter"),
	}
}

// RegisterHandler subscribes handler to every event. The returned function
// removes the subscription.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) (unsubscribe func()) {
	return e.subscribe(handler, nil)
}

// RegisterOperationHandler subscribes handler to the events of a single
// operation.
func (e *InMemoryEventEmitter) RegisterOperationHandler(operationID uuid.UUID, handler EventHandler) (unsubscribe func()) {
	return e.subscribe(handler, func(event *TransitionEvent) bool {
		return event.OperationID == operationID
	})
}

func (e *InMemoryEventEmitter) subscribe(handler EventHandler, filter func(*TransitionEvent) bool) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, handler: handler, filter: filter})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.unsubscribe(id) })
	}
}

func (e *InMemoryEventEmitter) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subs {
		if sub.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}

// HandlerCount returns the number of live subscriptions.
func (e *InMemoryEventEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// EmitEvent delivers event to every matching subscriber, even when some of
// them fail. The failures are joined into the returned error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TransitionEvent) error {
	e.mu.RLock()
	subs := append([]subscription(nil), e.subs...)
	e.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("transition handler failed",
				"error", err,
				"operation_id", event.OperationID,
				"operation", event.Name,
				"to", event.To)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
