package lib

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/tasknotify/internal/app/history"
	"github.com/slok/tasknotify/internal/app/run"
	"github.com/slok/tasknotify/internal/conventions"
	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/runner"
	"github.com/slok/tasknotify/internal/storage"
	"github.com/slok/tasknotify/internal/storage/memory"
	"github.com/slok/tasknotify/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} stores the history in
// ~/.tasknotify/history.db.
type Config struct {
	// DBPath is the SQLite completion history database path.
	// Default: ~/.tasknotify/history.db.
	DBPath string

	// InMemoryHistory keeps the history in memory instead of SQLite, it's
	// lost when the client is closed.
	InMemoryHistory bool

	// DisableCompletionReplay disables sending the latest completion to the
	// new completion observers.
	DisableCompletionReplay bool

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" {
		c.DBPath = conventions.HistoryDBPath(homedir.HomeDir())
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Subscription identifies an observer registered with [Client.OnProgress] or
// [Client.OnCompletion].
type Subscription struct {
	s runner.Subscription
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	runner  *runner.Runner
	runSvc  *run.Service
	histSvc *history.Service
	logger  log.Logger

	mu         sync.Mutex
	closed     bool
	runsCtx    context.Context
	runsCancel context.CancelFunc
	runs       sync.WaitGroup

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeFn   func() error
}

// New creates a new SDK client and starts its worker and delivery threads.
//
// The caller must call [Client.Close] when done:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var repo storage.HistoryRepository
	closeFn := func() error { return nil }
	if cfg.InMemoryHistory {
		r, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = r
	} else {
		r, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = r
		closeFn = r.Close
	}

	loop, err := dispatch.NewLoop(dispatch.LoopConfig{Logger: cfg.Logger})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create delivery loop: %w", err)
	}

	r, err := runner.NewRunner(runner.RunnerConfig{
		Poster:                  loop,
		DisableCompletionReplay: cfg.DisableCompletionReplay,
		Logger:                  cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	runSvc, err := run.NewService(run.ServiceConfig{
		Runner:     r,
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create run service: %w", err)
	}

	histSvc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create history service: %w", err)
	}

	// The threads live until Close, not bound to the creation context.
	threadsCtx, cancel := context.WithCancel(context.Background())
	runsCtx, runsCancel := context.WithCancel(context.Background())
	c := &Client{
		runner:     r,
		runSvc:     runSvc,
		histSvc:    histSvc,
		logger:     cfg.Logger,
		runsCtx:    runsCtx,
		runsCancel: runsCancel,
		cancel:     cancel,
		closeFn:    closeFn,
	}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		_ = loop.Run(threadsCtx)
	}()
	go func() {
		defer c.wg.Done()
		if err := r.Run(threadsCtx); err != nil {
			c.logger.Errorf("worker thread failed: %s", err)
		}
	}()

	return c, nil
}

// Close cancels the active run, stops the threads and releases the history
// storage. Pending deliveries are discarded.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		// In-flight runs need the threads to receive their cancelled completion.
		c.runsCancel()
		c.runs.Wait()

		c.cancel()
		c.wg.Wait()
		err = c.closeFn()
	})

	return err
}

// Start starts a run of task with the id. It doesn't wait for the run to
// finish, use [Client.OnCompletion] to know when it does. The completion is
// not recorded in the history.
//
// It fails with [ErrAlreadyRunning] if a task is already running, requests are
// never queued.
func (c *Client) Start(ctx context.Context, id string, task Task) error {
	if task == nil {
		return fmt.Errorf("task is required: %w", ErrNotValid)
	}

	err := c.runner.StartTask(ctx, model.TaskRequest{ID: id}, toInternalTask(task))
	return mapError(err)
}

// Cancel requests the cancellation of the active run.
func (c *Client) Cancel() error {
	return mapError(c.runner.Cancel())
}

// State returns the state of the worker thread.
func (c *Client) State() RunnerState {
	return RunnerState(c.runner.State())
}

// ActiveTask returns the ID of the active run if any.
func (c *Client) ActiveTask() (string, bool) {
	return c.runner.ActiveTask()
}

// LatestCompletion returns the most recent completion if any.
func (c *Client) LatestCompletion() (CompletionEvent, bool) {
	ev, ok := c.runner.LatestCompletion()
	if !ok {
		return CompletionEvent{}, false
	}
	return fromInternalCompletionEvent(ev), true
}

// OnProgress registers an observer of the progress of every run. Consecutive
// updates can be coalesced when the observer is slower than the task.
func (c *Client) OnProgress(fn func(ProgressUpdate)) Subscription {
	s := c.runner.SubscribeProgress(func(u model.ProgressUpdate) error {
		fn(fromInternalProgressUpdate(u))
		return nil
	})
	return Subscription{s: s}
}

// OnCompletion registers an observer of the completion of every run. Unless
// replay is disabled, the observer first receives the latest completion.
func (c *Client) OnCompletion(fn func(CompletionEvent)) Subscription {
	s := c.runner.SubscribeCompletion(func(ev model.CompletionEvent) error {
		fn(fromInternalCompletionEvent(ev))
		return nil
	})
	return Subscription{s: s}
}

// Unsubscribe removes an observer, it fails with [ErrNotFound] when unknown.
func (c *Client) Unsubscribe(s Subscription) error {
	return mapError(c.runner.Unsubscribe(s.s))
}

// Run runs the items one after the other, waiting for the completion of each
// one, and records the completions in the history.
//
// When ctx ends the active run is cancelled, its cancelled completion is
// returned with the context error.
func (c *Client) Run(ctx context.Context, items []RunItem, opts *RunOpts) ([]CompletionEvent, error) {
	if opts == nil {
		opts = &RunOpts{}
	}

	req := run.Request{StopOnFailure: opts.StopOnFailure}
	for _, it := range items {
		if it.Task == nil {
			return nil, fmt.Errorf("task %q is required: %w", it.ID, ErrNotValid)
		}
		req.Items = append(req.Items, run.Item{
			Request: model.TaskRequest{ID: it.ID},
			Task:    toInternalTask(it.Task),
		})
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("client closed: %w", ErrStopped)
	}
	c.runs.Add(1)
	c.mu.Unlock()
	defer c.runs.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.runsCtx, cancel)
	defer stop()

	events, err := c.runSvc.Run(ctx, req)
	return fromInternalCompletionEvents(events), mapError(err)
}

// History lists the recorded completions, most recent first.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]CompletionRecord, error) {
	if opts == nil {
		opts = &HistoryOpts{}
	}

	records, err := c.histSvc.Run(ctx, history.Request{
		TaskID: opts.TaskID,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalCompletionRecords(records), nil
}
