package progress

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
)

// Handler receives progress updates on the delivery thread.
type Handler func(u model.ProgressUpdate) error

// ReporterConfig is the configuration for the progress reporter.
type ReporterConfig struct {
	// Poster is the delivery thread where handlers are called.
	Poster dispatch.Poster
	Logger log.Logger
}

func (c *ReporterConfig) defaults() error {
	if c.Poster == nil {
		return fmt.Errorf("poster is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "progress.Reporter"})
	return nil
}

// slot is an update waiting on the delivery thread.
type slot struct {
	update    model.ProgressUpdate
	delivered bool
}

type subscriber struct {
	id      uint64
	handler Handler
	// open is the last posted slot that newer updates of the same run can
	// still replace.
	open    *slot
	removed bool
}

// Reporter fans out progress updates to subscribers without blocking the emitter.
//
// Updates of a run are coalesced per subscriber: if a subscriber is slower than
// the emitter only the most recent update of the run is delivered. Updates of
// different runs are never merged, and a run is closed with Seal so anything
// posted after it is delivered after the updates of that run.
type Reporter struct {
	poster dispatch.Poster
	logger log.Logger

	mu        sync.Mutex
	nextID    uint64
	subs      map[uint64]*subscriber
	coalesced uint64
}

// NewReporter creates a new progress reporter.
func NewReporter(cfg ReporterConfig) (*Reporter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Reporter{
		poster: cfg.Poster,
		logger: cfg.Logger,
		subs:   map[uint64]*subscriber{},
	}, nil
}

// Subscribe registers a handler and returns its subscription id.
func (r *Reporter) Subscribe(h Handler) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.subs[r.nextID] = &subscriber{id: r.nextID, handler: h}

	return r.nextID
}

// Unsubscribe removes a subscription, pending updates for it are discarded.
func (r *Reporter) Unsubscribe(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[id]
	if !ok {
		return false
	}
	s.removed = true
	s.open = nil
	delete(r.subs, id)

	return true
}

// Emit sends the update to all the subscribers. It never blocks on handlers.
func (r *Reporter) Emit(u model.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.open != nil && !s.open.delivered && s.open.update.TaskID == u.TaskID {
			s.open.update = u
			r.coalesced++
			continue
		}

		sub, sl := s, &slot{update: u}
		if err := r.poster.Post(func() { r.deliver(sub, sl) }); err != nil {
			s.open = nil
			r.logger.Warningf("could not post progress update: %s", err)
			continue
		}
		s.open = sl
	}
}

// Seal ends the coalescing of the updates already posted, the next emitted
// update always gets its own delivery.
func (r *Reporter) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		s.open = nil
	}
}

// Coalesced returns the number of updates that were replaced by a newer one before delivery.
func (r *Reporter) Coalesced() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coalesced
}

func (r *Reporter) deliver(s *subscriber, sl *slot) {
	r.mu.Lock()
	sl.delivered = true
	u := sl.update
	if s.open == sl {
		s.open = nil
	}
	removed := s.removed
	r.mu.Unlock()

	if removed {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("progress handler %d panicked: %v\n%s", s.id, rec, debug.Stack())
		}
	}()

	if err := s.handler(u); err != nil {
		r.logger.Warningf("progress handler %d failed: %s", s.id, err)
	}
}
