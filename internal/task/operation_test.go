package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func noop() Work {
	return BlockingWork(func(context.Context, *Operation) error { return nil })
}

func TestState(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "executing", StateExecuting.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", State(42).String())

	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateExecuting.IsTerminal())
	assert.True(t, StateFinished.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
}

func TestNewOperation(t *testing.T) {
	t.Parallel()

	op := NewOperation("lookup", noop())

	assert.NotEqual(t, uuid.Nil, op.ID())
	assert.Equal(t, "lookup", op.Name())
	assert.Equal(t, StatePending, op.State())
	assert.False(t, op.IsCancelled())
	assert.NoError(t, op.Err())
	assert.Empty(t, op.Dependencies())
	assert.Contains(t, op.String(), "lookup[")
}

func TestOperation_AddDependency(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil and self", func(t *testing.T) {
		t.Parallel()

		op := NewOperation("a", noop())
		assert.ErrorIs(t, op.AddDependency(nil), ErrNilOperation)
		assert.ErrorIs(t, op.AddDependency(op), ErrSelfDependency)
	})

	t.Run("rejects cycles", func(t *testing.T) {
		t.Parallel()

		a := NewOperation("a", noop())
		b := NewOperation("b", noop())
		c := NewOperation("c", noop())
		require.NoError(t, b.AddDependency(a))
		require.NoError(t, c.AddDependency(b))

		assert.ErrorIs(t, a.AddDependency(c), ErrDependencyCycle)
		assert.ErrorIs(t, a.AddDependency(b), ErrDependencyCycle)
		assert.Empty(t, a.Dependencies())
	})

	t.Run("ignores duplicates", func(t *testing.T) {
		t.Parallel()

		a := NewOperation("a", noop())
		b := NewOperation("b", noop())
		require.NoError(t, b.AddDependency(a))
		require.NoError(t, b.AddDependency(a))
		assert.Equal(t, []*Operation{a}, b.Dependencies())
	})

	t.Run("rejects edits after enqueue", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(DefaultQueueConfig(), setupTestLogger())
		t.Cleanup(q.Stop)

		a := NewOperation("a", noop())
		b := NewOperation("b", noop())
		require.NoError(t, q.Add(b))
		assert.ErrorIs(t, b.AddDependency(a), ErrOperationEnqueued)
	})
}

func TestOperation_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("pending becomes cancelled at once", func(t *testing.T) {
		t.Parallel()

		op := NewOperation("a", noop())
		op.Cancel()

		assert.Equal(t, StateCancelled, op.State())
		assert.True(t, op.IsCancelled())
		select {
		case <-op.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		t.Parallel()

		op := NewOperation("a", noop())
		op.Cancel()
		op.Cancel()
		assert.Equal(t, StateCancelled, op.State())
	})

	t.Run("terminal state is final", func(t *testing.T) {
		t.Parallel()

		op := NewOperation("a", noop())
		require.True(t, op.start())
		op.complete(nil)
		require.Equal(t, StateFinished, op.State())

		op.Cancel()
		op.complete(assert.AnError)
		assert.Equal(t, StateFinished, op.State())
		assert.NoError(t, op.Err())
		assert.False(t, op.start())
	})
}

func TestOperation_Wait(t *testing.T) {
	t.Parallel()

	op := NewOperation("a", noop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, op.Wait(ctx), context.DeadlineExceeded)

	op.Cancel()
	assert.NoError(t, op.Wait(context.Background()))
}
