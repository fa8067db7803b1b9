// Package dispatch provides the delivery thread where observers are called.
//
// Functions posted to a [Loop] run one at a time, in post order, on the single
// goroutine that executes [Loop.Run].
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
)

// Poster knows how to post functions to the delivery thread.
type Poster interface {
	Post(fn func()) error
}

// LoopConfig is the configuration for the delivery loop.
type LoopConfig struct {
	Logger log.Logger
}

func (c *LoopConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "dispatch.Loop"})
	return nil
}

// Loop is a serial, unbounded FIFO executor.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wakeup  chan struct{}
	stopped bool
	logger  log.Logger
}

// NewLoop creates a new delivery loop. It doesn't execute anything until Run is called.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Loop{
		wakeup: make(chan struct{}, 1),
		logger: cfg.Logger,
	}, nil
}

// Post enqueues fn to be executed on the delivery thread. It never blocks.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return fmt.Errorf("delivery loop: %w", model.ErrStopped)
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}

	return nil
}

// Sync blocks until every function posted before the call has been executed.
func (l *Loop) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := l.Post(func() { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the posted functions until the context is done. Once it returns
// the loop is stopped and the pending functions are discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debugf("Delivery loop started")
	defer l.stop()

	for {
		if ctx.Err() != nil {
			l.logger.Debugf("Delivery loop stopped")
			return nil
		}

		fn, ok := l.next()
		if ok {
			l.execute(fn)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debugf("Delivery loop stopped")
			return nil
		case <-l.wakeup:
		}
	}
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

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("delivered function panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) > 0 {
		l.logger.Warningf("Discarding %d pending deliveries", len(l.queue))
	}
	l.stopped = true
	l.queue = nil
}
