// Package eventloop runs every overlay mutation on a single goroutine.
// Other goroutines hand work to it with Post or Do.
package eventloop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Poster is the part of Loop that producers depend on.
type Poster interface {
	Post(fn func()) bool
}

// Loop is an unbounded FIFO of closures drained by Run.
type Loop struct {
	logger logging.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	closed  bool
}

// New returns a loop that is not yet running.
func New(logger logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loop{
		logger:  logger.Named("eventloop"),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn and returns immediately.  It reports false once the loop
// has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return errors.New(errors.ErrCodeServiceUnavailable, "event loop stopped")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "event loop call abandoned")
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return errors.New(errors.ErrCodeServiceUnavailable, "event loop stopped")
		}
	}
}

// Run drains the queue until ctx is cancelled.  Work queued when ctx ends is
// dropped.  Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.stopped)
	}()

	l.logger.Debug("event loop started")
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			l.run(fn)
		}
		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped")
			return nil
		case <-l.wake:
		}
	}
}

// Stopped is closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panicked",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}
