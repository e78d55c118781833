package task

import "sync"

// Dispatcher runs completion continuations on a delivery context chosen by
// the caller, such as the goroutine that owns the user interface.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// InlineDispatcher runs every continuation on the goroutine that finished
// the operation.
type InlineDispatcher struct{}

// Dispatch implements Dispatcher.
func (InlineDispatcher) Dispatch(fn func()) {
	fn()
}

// GoDispatcher runs every continuation on a fresh goroutine.
type GoDispatcher struct{}

// Dispatch implements Dispatcher.
func (GoDispatcher) Dispatch(fn func()) {
	go fn()
}

// SerialDispatcher runs continuations one at a time, in submission order, on
// a single goroutine that it owns.
type SerialDispatcher struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

// NewSerialDispatcher creates a SerialDispatcher and starts its goroutine.
func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

// Dispatch queues fn. It never blocks before Close. Continuations
// dispatched after Close run on the calling goroutine, so a queue that
// outlives its dispatcher still delivers every completion.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		fn()
		return
	}
	d.pending = append(d.pending, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close runs what is already queued and then stops the goroutine.
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.stopped
}

func (d *SerialDispatcher) loop() {
	defer close(d.stopped)

	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.pending) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}
				break
			}
			fn := d.pending[0]
			d.pending[0] = nil
			d.pending = d.pending[1:]
			d.mu.Unlock()

			fn()
		}
	}
}
