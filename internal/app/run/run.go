package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/tasknotify/internal/completion"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/runner"
	"github.com/slok/tasknotify/internal/storage"
	"github.com/slok/tasknotify/internal/worker"
)

// TaskRunner is the task runner used by the service.
type TaskRunner interface {
	Start(ctx context.Context, req model.TaskRequest) error
	StartTask(ctx context.Context, req model.TaskRequest, task worker.Task) error
	Cancel() error
	LatestCompletion() (model.CompletionEvent, bool)
	SubscribeCompletion(h completion.Handler) runner.Subscription
	Unsubscribe(s runner.Subscription) error
}

var _ TaskRunner = &runner.Runner{}

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Runner TaskRunner
	// Repository stores the completions, optional.
	Repository storage.HistoryRepository
	// CancelTimeout is how long a cancelled run is waited for its completion.
	CancelTimeout time.Duration
	IDGen         func() string
	TimeNow       func() time.Time
	Logger        log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}

	if c.CancelTimeout == 0 {
		c.CancelTimeout = 10 * time.Second
	}

	if c.IDGen == nil {
		c.IDGen = func() string { return ulid.Make().String() }
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})

	return nil
}

// Service runs tasks one after the other on the runner, waiting for the
// completion of each one before starting the next.
type Service struct {
	runner        TaskRunner
	repo          storage.HistoryRepository
	cancelTimeout time.Duration
	idGen         func() string
	timeNow       func() time.Time
	logger        log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner:        cfg.Runner,
		repo:          cfg.Repository,
		cancelTimeout: cfg.CancelTimeout,
		idGen:         cfg.IDGen,
		timeNow:       cfg.TimeNow,
		logger:        cfg.Logger,
	}, nil
}

// Item is a single task of the run.
type Item struct {
	Request model.TaskRequest
	// Task is the unit of work, if missing the runner default task is used.
	Task worker.Task
}

// Request represents the run request parameters.
type Request struct {
	Items []Item
	// StopOnFailure stops at the first item that doesn't succeed.
	StopOnFailure bool
}

func (r Request) validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one item is required: %w", model.ErrNotValid)
	}

	for i, it := range r.Items {
		if err := it.Request.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}

	return nil
}

// Run runs the items in order and returns the completion of each executed item.
// If the context ends, the active task is cancelled and its cancelled completion
// is returned along with the context error.
func (s *Service) Run(ctx context.Context, req Request) ([]model.CompletionEvent, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	w := newWaiter()
	sub := s.runner.SubscribeCompletion(w.handle)
	defer func() {
		if err := s.runner.Unsubscribe(sub); err != nil {
			s.logger.Warningf("could not unsubscribe from completions: %s", err)
		}
	}()

	events := make([]model.CompletionEvent, 0, len(req.Items))
	for _, it := range req.Items {
		ev, err := s.runItem(ctx, w, it)
		if err != nil && !errors.Is(err, ctx.Err()) {
			return events, err
		}

		// Even cancelled runs have a completion.
		if ev != nil {
			events = append(events, *ev)
			if recErr := s.record(ctx, *ev); recErr != nil {
				return events, recErr
			}
		}

		if err != nil {
			return events, err
		}

		if req.StopOnFailure && !ev.Succeeded() {
			s.logger.Warningf("Stopping run, task %s %s", ev.TaskID, ev.Status)
			break
		}
	}

	return events, nil
}

func (s *Service) runItem(ctx context.Context, w *waiter, it Item) (*model.CompletionEvent, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var afterSeq uint64
	if latest, ok := s.runner.LatestCompletion(); ok {
		afterSeq = latest.Seq
	}
	done := w.expect(it.Request.ID, afterSeq)

	if err := s.start(ctx, it); err != nil {
		w.forget(it.Request.ID)
		return nil, fmt.Errorf("could not start task %s: %w", it.Request.ID, err)
	}
	s.logger.Debugf("Waiting for task %s completion", it.Request.ID)

	select {
	case ev := <-done:
		return &ev, nil
	case <-ctx.Done():
	}

	if err := s.runner.Cancel(); err != nil && !errors.Is(err, model.ErrNotRunning) {
		s.logger.Warningf("could not cancel task %s: %s", it.Request.ID, err)
	}

	// Cancellation is cooperative, the task may take a while to stop.
	select {
	case ev := <-done:
		return &ev, ctx.Err()
	case <-time.After(s.cancelTimeout):
		w.forget(it.Request.ID)
		s.logger.Errorf("task %s completion not received after cancellation", it.Request.ID)
		return nil, ctx.Err()
	}
}

func (s *Service) start(ctx context.Context, it Item) error {
	if it.Task == nil {
		return s.runner.Start(ctx, it.Request)
	}
	return s.runner.StartTask(ctx, it.Request, it.Task)
}

func (s *Service) record(ctx context.Context, ev model.CompletionEvent) error {
	if s.repo == nil {
		return nil
	}

	rec := model.CompletionRecord{
		ID:         s.idGen(),
		Event:      ev,
		RecordedAt: s.timeNow().UTC(),
	}

	// The history must be kept even if the run has been cancelled.
	if err := s.repo.SaveCompletion(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("could not record completion of task %s: %w", ev.TaskID, err)
	}

	return nil
}

// waiter routes completion events from the delivery thread to the waiting item.
type waiter struct {
	mu      sync.Mutex
	pending map[string]expectation
}

type expectation struct {
	afterSeq uint64
	ch       chan model.CompletionEvent
}

func newWaiter() *waiter {
	return &waiter{pending: map[string]expectation{}}
}

func (w *waiter) expect(taskID string, afterSeq uint64) <-chan model.CompletionEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan model.CompletionEvent, 1)
	w.pending[taskID] = expectation{afterSeq: afterSeq, ch: ch}
	return ch
}

func (w *waiter) forget(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, taskID)
}

func (w *waiter) handle(ev model.CompletionEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.pending[ev.TaskID]
	if !ok || ev.Seq <= e.afterSeq {
		return nil
	}
	delete(w.pending, ev.TaskID)
	e.ch <- ev

	return nil
}
