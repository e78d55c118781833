package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/restaurant-reviews/internal/events"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed     = errors.New("operation queue is closed")
	ErrQueueFull       = errors.New("operation queue is full")
	ErrAlreadyEnqueued = errors.New("operation was already added to a queue")
)

// QueueConfig holds configuration options for the queue
type QueueConfig struct {
	// WorkerCount bounds how many operations execute at the same time.
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize bounds how many operations may be in flight (added but not
	// yet terminal). If zero or negative, defaults to 100
	QueueSize int
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithDispatcher sets the delivery context for completion continuations.
// The default is GoDispatcher.
func WithDispatcher(d Dispatcher) QueueOption {
	return func(q *Queue) {
		q.dispatcher = d
	}
}

// WithEventEmitter publishes every state transition to emitter.
func WithEventEmitter(emitter events.EventEmitter) QueueOption {
	return func(q *Queue) {
		q.emitter = emitter
	}
}

// WithErrorHandler sets a function called for every operation whose body
// reported an error. If unset, errors are only logged.
func WithErrorHandler(handler func(op *Operation, err error)) QueueOption {
	return func(q *Queue) {
		q.errorHandler = handler
	}
}

// Queue runs operations on a bounded pool of workers once their dependencies
// are terminal.
type Queue struct {
	ready        chan *Operation
	workerCount  int
	queueSize    int
	dispatcher   Dispatcher
	emitter      events.EventEmitter
	errorHandler func(op *Operation, err error)
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// workers tracks worker goroutines; waiters tracks dependency waiters
	workers sync.WaitGroup
	waiters sync.WaitGroup

	mu      sync.Mutex
	active  map[*Operation]struct{}
	idle    chan struct{}
	started bool
	closed  bool
}

// NewQueue creates a queue. Call Start before operations can execute.
func NewQueue(config QueueConfig, logger *slog.Logger, opts ...QueueOption) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		ready:       make(chan *Operation, queueSize),
		workerCount: workerCount,
		queueSize:   queueSize,
		dispatcher:  GoDispatcher{},
		logger:      logger.With("component", "operation_queue"),
		ctx:         ctx,
		cancel:      cancel,
		active:      make(map[*Operation]struct{}),
		idle:        idle,
	}
	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Start launches the worker goroutines. Calling it again has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	q.logger.Info("starting operation queue", "worker_count", q.workerCount, "queue_size", q.queueSize)

	for i := 0; i < q.workerCount; i++ {
		q.workers.Add(1)
		go q.worker(i)
	}
}

// Add enqueues ops. Either all of them are accepted or none is.
func (q *Queue) Add(ops ...*Operation) error {
	for i, op := range ops {
		if op == nil {
			return ErrNilOperation
		}
		for _, other := range ops[:i] {
			if other == op {
				return fmt.Errorf("%w: %s", ErrAlreadyEnqueued, op)
			}
		}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if len(q.active)+len(ops) > q.queueSize {
		q.mu.Unlock()
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, q.queueSize)
	}

	var accepted []*Operation
	var alreadyTerminal []*Operation
	for _, op := range ops {
		attached, terminal := op.attach(q)
		if !attached {
			for _, a := range accepted {
				a.detach()
				delete(q.active, a)
			}
			q.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAlreadyEnqueued, op)
		}
		accepted = append(accepted, op)
		if len(q.active) == 0 {
			q.idle = make(chan struct{})
		}
		q.active[op] = struct{}{}
		if terminal {
			alreadyTerminal = append(alreadyTerminal, op)
		}
	}
	q.mu.Unlock()

	for _, op := range accepted {
		q.logger.Debug("operation enqueued",
			"operation_id", op.ID(),
			"operation", op.Name(),
			"dependency_count", len(op.Dependencies()))
	}

	for _, op := range alreadyTerminal {
		q.terminated(op)
	}
	for _, op := range accepted {
		if op.State() == StatePending {
			q.waiters.Add(1)
			go q.awaitDependencies(op)
		}
	}

	return nil
}

// awaitDependencies blocks until every dependency of op is terminal and then
// hands op to the workers.
func (q *Queue) awaitDependencies(op *Operation) {
	defer q.waiters.Done()

	for _, dep := range op.Dependencies() {
		select {
		case <-dep.Done():
		case <-op.cancelled:
			return
		case <-q.ctx.Done():
			op.Cancel()
			return
		}
	}

	select {
	case q.ready <- op:
	case <-op.cancelled:
	case <-q.ctx.Done():
		op.Cancel()
	}
}

// worker processes operations from the ready channel
func (q *Queue) worker(id int) {
	defer q.workers.Done()

	q.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("stopping worker", "worker_id", id)
			return
		case op := <-q.ready:
			q.execute(op, id)
		}
	}
}

// execute runs op's body and holds the worker until op is terminal.
func (q *Queue) execute(op *Operation, workerID int) {
	if !op.start() {
		return
	}

	logger := q.logger.With(
		"operation_id", op.ID(),
		"operation", op.Name(),
		"worker_id", workerID,
	)
	logger.Debug("executing operation")

	var once sync.Once
	done := func(err error) {
		once.Do(func() { op.complete(err) })
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("operation panicked", "panic", r)
				done(fmt.Errorf("operation panicked: %v", r))
			}
		}()
		if op.work == nil {
			done(nil)
			return
		}
		op.work(q.ctx, op, done)
	}()

	select {
	case <-op.Done():
	case <-q.ctx.Done():
	}
}

// transitioned implements scheduler.
func (q *Queue) transitioned(op *Operation, from, to State) {
	q.logger.Debug("operation transitioned",
		"operation_id", op.ID(),
		"operation", op.Name(),
		"from", from.String(),
		"to", to.String())

	if q.emitter == nil {
		return
	}
	event := events.NewTransitionEvent(op.ID(), op.Name(), from.String(), to.String())
	if err := q.emitter.EmitEvent(context.Background(), event); err != nil {
		q.logger.Warn("failed to emit transition event",
			"operation_id", op.ID(),
			"error", err)
	}
}

// terminated implements scheduler. It delivers op's continuation on the
// dispatcher and releases its queue slot afterwards.
func (q *Queue) terminated(op *Operation) {
	if err := op.Err(); err != nil {
		q.logger.Error("operation failed",
			"operation_id", op.ID(),
			"operation", op.Name(),
			"error", err)
		if q.errorHandler != nil {
			q.errorHandler(op, err)
		}
	}

	completion := op.takeCompletion()
	q.dispatcher.Dispatch(func() {
		defer q.release(op)
		if completion != nil {
			completion(op)
		}
	})
}

func (q *Queue) release(op *Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.active[op]; !ok {
		return
	}
	delete(q.active, op)
	if len(q.active) == 0 {
		close(q.idle)
	}
}

// Len returns the number of operations added but not yet released.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Operations returns the operations added but not yet released.
func (q *Queue) Operations() []*Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := make([]*Operation, 0, len(q.active))
	for op := range q.active {
		ops = append(ops, op)
	}
	return ops
}

// CancelAll cancels every operation in the queue.
func (q *Queue) CancelAll() {
	for _, op := range q.Operations() {
		op.Cancel()
	}
}

// WaitUntilAllOperationsAreFinished blocks until every added operation is
// terminal and its continuation has run, or until ctx is done.
func (q *Queue) WaitUntilAllOperationsAreFinished(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.active) == 0 {
			q.mu.Unlock()
			return nil
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop refuses new operations, cancels those that have not started and
// waits for the workers to exit. Bodies that are already running are not
// interrupted, but the context passed to them is cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.workers.Wait()
	q.waiters.Wait()

	for {
		select {
		case op := <-q.ready:
			op.Cancel()
		default:
			q.logger.Info("operation queue stopped")
			return
		}
	}
}
