// Package completion implements the single slot broadcast of task run
// terminal values.
package completion

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
)

// Handler receives completion events on the delivery thread.
type Handler func(ev model.CompletionEvent) error

// ChannelConfig is the configuration for the completion channel.
type ChannelConfig struct {
	// Poster is the delivery thread where handlers are called.
	Poster dispatch.Poster
	// DisableReplay disables sending the latest event to new subscribers.
	DisableReplay bool
	Logger        log.Logger
}

func (c *ChannelConfig) defaults() error {
	if c.Poster == nil {
		return fmt.Errorf("poster is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "completion.Channel"})
	return nil
}

type observer struct {
	id      uint64
	handler Handler
	lastSeq uint64
	removed bool
}

// Channel holds the latest published completion event and notifies the observers.
type Channel struct {
	poster dispatch.Poster
	replay bool
	logger log.Logger

	mu     sync.Mutex
	seq    uint64
	latest *model.CompletionEvent
	nextID uint64
	subs   map[uint64]*observer
}

// NewChannel creates a new completion channel.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Channel{
		poster: cfg.Poster,
		replay: !cfg.DisableReplay,
		logger: cfg.Logger,
		subs:   map[uint64]*observer{},
	}, nil
}

// Publish overwrites the latest event and notifies the current observers on the
// delivery thread. It returns the event with its sequence number set.
func (c *Channel) Publish(ev model.CompletionEvent) model.CompletionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	ev.Seq = c.seq
	latest := ev
	c.latest = &latest

	observers := make([]*observer, 0, len(c.subs))
	for _, o := range c.subs {
		observers = append(observers, o)
	}

	// Posting while locked keeps the delivery order equal to the sequence order.
	err := c.poster.Post(func() {
		for _, o := range observers {
			c.deliver(o, ev)
		}
	})
	if err != nil {
		c.logger.Warningf("could not post completion event %d: %s", ev.Seq, err)
	}

	c.logger.Debugf("Published completion event %d for task %s (%s)", ev.Seq, ev.TaskID, ev.Status)

	return ev
}

// Subscribe registers an observer. If replay is enabled and there is a latest
// event, it will be the first event delivered to the observer.
func (c *Channel) Subscribe(h Handler) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	o := &observer{id: c.nextID, handler: h}
	c.subs[o.id] = o

	if c.replay && c.latest != nil {
		ev := *c.latest
		if err := c.poster.Post(func() { c.deliver(o, ev) }); err != nil {
			c.logger.Warningf("could not replay completion event %d: %s", ev.Seq, err)
		}
	}

	return o.id
}

// Unsubscribe removes an observer.
func (c *Channel) Unsubscribe(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.subs[id]
	if !ok {
		return false
	}
	o.removed = true
	delete(c.subs, id)

	return true
}

// Latest returns the most recently published event.
func (c *Channel) Latest() (model.CompletionEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil {
		return model.CompletionEvent{}, false
	}
	return *c.latest, true
}

func (c *Channel) deliver(o *observer, ev model.CompletionEvent) {
	c.mu.Lock()
	if o.removed || ev.Seq <= o.lastSeq {
		c.mu.Unlock()
		return
	}
	o.lastSeq = ev.Seq
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("completion observer %d panicked: %v\n%s", o.id, r, debug.Stack())
		}
	}()

	if err := o.handler(ev); err != nil {
		c.logger.Warningf("completion observer %d failed: %s", o.id, err)
	}
}
