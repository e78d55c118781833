package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler implements EventHandler and keeps every event it sees.
type recordingHandler struct {
	mu     sync.Mutex
	events []*TransitionEvent
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *TransitionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestNewTransitionEvent(t *testing.T) {
	t.Parallel()

	opID := uuid.New()
	event := NewTransitionEvent(opID, "business details", "pending", "executing")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, opID, event.OperationID)
	assert.Equal(t, "pending", event.From)
	assert.Equal(t, "executing", event.To)
	assert.False(t, event.At.IsZero())
	assert.Contains(t, event.String(), "pending -> executing")
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	event := NewTransitionEvent(uuid.New(), "reviews", "executing", "finished")

	t.Run("emit event with no handlers", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &recordingHandler{}
		handler2 := &recordingHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, []*TransitionEvent{event}, handler1.events)
		assert.Equal(t, []*TransitionEvent{event}, handler2.events)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		errFirst := errors.New("first handler error")
		errSecond := errors.New("second handler error")
		failing := &recordingHandler{err: errFirst}
		succeeding := &recordingHandler{}
		alsoFailing := &recordingHandler{err: errSecond}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(succeeding)
		emitter.RegisterHandler(alsoFailing)

		err := emitter.EmitEvent(context.Background(), event)
		require.Error(t, err)
		assert.ErrorIs(t, err, errFirst)
		assert.ErrorIs(t, err, errSecond)
		assert.Equal(t, 1, failing.count())
		assert.Equal(t, 1, succeeding.count())
		assert.Equal(t, 1, alsoFailing.count())
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		kept := &recordingHandler{}
		removed := &recordingHandler{}
		emitter.RegisterHandler(kept)
		unsubscribe := emitter.RegisterHandler(removed)
		assert.Equal(t, 2, emitter.HandlerCount())

		unsubscribe()
		unsubscribe()
		assert.Equal(t, 1, emitter.HandlerCount())

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, 1, kept.count())
		assert.Zero(t, removed.count())
	})

	t.Run("operation handler only sees its operation", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		scoped := &recordingHandler{}
		emitter.RegisterOperationHandler(event.OperationID, scoped)

		other := NewTransitionEvent(uuid.New(), "details", "pending", "executing")
		require.NoError(t, emitter.EmitEvent(context.Background(), other))
		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, []*TransitionEvent{event}, scoped.events)
	})

	t.Run("handler func adapter", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(nil)
		var got *TransitionEvent
		emitter.RegisterHandler(HandlerFunc(func(_ context.Context, e *TransitionEvent) error {
			got = e
			return nil
		}))

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Same(t, event, got)
	})
}
