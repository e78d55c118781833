package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Errors returned when building an operation graph
var (
	ErrDependencyCycle   = errors.New("dependency would create a cycle")
	ErrSelfDependency    = errors.New("operation cannot depend on itself")
	ErrNilOperation      = errors.New("operation is nil")
	ErrOperationEnqueued = errors.New("operation is already enqueued")
)

// Work is the body of an operation. It may return before the work is done,
// but it must call done exactly once when it is. Later calls are ignored.
// Bodies that want to honour cancellation check op.IsCancelled; the
// scheduler never interrupts a running body.
type Work func(ctx context.Context, op *Operation, done func(error))

// BlockingWork adapts a synchronous function to Work.
func BlockingWork(fn func(ctx context.Context, op *Operation) error) Work {
	return func(ctx context.Context, op *Operation, done func(error)) {
		done(fn(ctx, op))
	}
}

// scheduler is implemented by the queue an operation is added to.
type scheduler interface {
	transitioned(op *Operation, from, to State)
	terminated(op *Operation)
}

// Operation is a unit of asynchronous work with a monotonic lifecycle.
type Operation struct {
	id   uuid.UUID
	name string
	work Work

	mu              sync.Mutex
	state           State
	cancelRequested bool
	err             error
	deps            []*Operation
	completion      func(*Operation)
	sched           scheduler

	done       chan struct{}
	cancelled  chan struct{}
	cancelOnce sync.Once
}

// NewOperation creates a pending operation that runs work once it is
// enqueued and its dependencies are terminal.
func NewOperation(name string, work Work) *Operation {
	return &Operation{
		id:        uuid.New(),
		name:      name,
		work:      work,
		state:     StatePending,
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// ID returns the operation's unique identifier
func (o *Operation) ID() uuid.UUID {
	return o.id
}

// Name returns the descriptive name given at construction.
func (o *Operation) Name() string {
	return o.name
}

// State returns the current state.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsCancelled reports whether cancellation was requested, whether or not the
// operation has reached the cancelled state yet.
func (o *Operation) IsCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelRequested || o.state == StateCancelled
}

// Err returns the error the body reported, if any.
func (o *Operation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Done returns a channel that is closed once the operation is terminal.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation is terminal or ctx is done.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCompletion sets the continuation to run once the operation is terminal.
// It runs exactly once, on the dispatcher of the queue the operation was
// added to. Setting it after the operation was enqueued has no effect.
func (o *Operation) SetCompletion(fn func(*Operation)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sched != nil {
		return
	}
	o.completion = fn
}

// AddDependency makes o wait for dep to become terminal before it starts.
// Dependencies must be declared before o is enqueued.
func (o *Operation) AddDependency(dep *Operation) error {
	if dep == nil {
		return ErrNilOperation
	}
	if dep == o {
		return ErrSelfDependency
	}
	if dep.dependsOn(o) {
		return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, o.name, dep.name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sched != nil {
		return ErrOperationEnqueued
	}
	for _, existing := range o.deps {
		if existing == dep {
			return nil
		}
	}
	o.deps = append(o.deps, dep)

	return nil
}

// Dependencies returns the operations o waits for.
func (o *Operation) Dependencies() []*Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Operation(nil), o.deps...)
}

// dependsOn reports whether target is reachable from o through dependency
// edges.
func (o *Operation) dependsOn(target *Operation) bool {
	seen := map[*Operation]bool{}
	stack := []*Operation{o}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == target {
			return true
		}
		if seen[current] {
			continue
		}
		seen[current] = true
		stack = append(stack, current.Dependencies()...)
	}
	return false
}

// Cancel requests cancellation. A pending operation becomes cancelled at once
// and its body never runs. An executing operation keeps running; it becomes
// cancelled instead of finished when its body completes. Cancelling a
// terminal operation does nothing.
func (o *Operation) Cancel() {
	o.mu.Lock()
	from := o.state
	terminal := false
	switch from {
	case StatePending:
		o.state = StateCancelled
		o.cancelRequested = true
		terminal = true
	case StateExecuting:
		o.cancelRequested = true
	}
	sched := o.sched
	o.mu.Unlock()

	o.cancelOnce.Do(func() { close(o.cancelled) })

	if terminal {
		o.terminate(sched, from, StateCancelled)
	}
}

// attach binds o to a queue. It returns false if o already belongs to one.
func (o *Operation) attach(s scheduler) (attached bool, terminal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sched != nil {
		return false, false
	}
	o.sched = s
	return true, o.state.IsTerminal()
}

// detach undoes attach when the queue rejects a batch.
func (o *Operation) detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sched = nil
}

// start moves o from pending to executing. It returns false if o left the
// pending state some other way.
func (o *Operation) start() bool {
	o.mu.Lock()
	if o.state != StatePending {
		o.mu.Unlock()
		return false
	}
	o.state = StateExecuting
	sched := o.sched
	o.mu.Unlock()

	if sched != nil {
		sched.transitioned(o, StatePending, StateExecuting)
	}
	return true
}

// complete records the body's result and moves o to its terminal state.
func (o *Operation) complete(err error) {
	o.mu.Lock()
	if o.state != StateExecuting {
		o.mu.Unlock()
		return
	}
	to := StateFinished
	if o.cancelRequested {
		to = StateCancelled
	}
	o.state = to
	o.err = err
	sched := o.sched
	o.mu.Unlock()

	o.terminate(sched, StateExecuting, to)
}

func (o *Operation) terminate(sched scheduler, from, to State) {
	if sched != nil {
		sched.transitioned(o, from, to)
	}
	close(o.done)
	if sched != nil {
		sched.terminated(o)
	}
}

// takeCompletion returns the continuation and clears it so it cannot run twice.
func (o *Operation) takeCompletion() func(*Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn := o.completion
	o.completion = nil
	return fn
}

// String implements fmt.Stringer.
func (o *Operation) String() string {
	return fmt.Sprintf("%s[%s]", o.name, o.id)
}
