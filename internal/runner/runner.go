// Package runner implements the task runner that owns the worker thread.
//
// The runner executes at most one task at a time on the goroutine running
// [Runner.Run]. Progress and completion are delivered to observers on the
// delivery thread, never on the worker thread. For a run, all the progress
// updates are delivered before its completion event.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slok/tasknotify/internal/completion"
	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/notify"
	"github.com/slok/tasknotify/internal/progress"
	"github.com/slok/tasknotify/internal/tracing"
	"github.com/slok/tasknotify/internal/worker"
)

// ProgressMessageFunc returns the visible message for a progress report.
type ProgressMessageFunc func(taskID string, remaining int) string

// RunnerConfig is the configuration for the task runner.
type RunnerConfig struct {
	// Poster is the delivery thread.
	Poster dispatch.Poster
	// Task is the unit of work used by Start, optional.
	Task worker.Task
	// Notifier is the visibility surface notified on every transition.
	Notifier notify.Sink
	// ProgressMessage formats the progress notifications.
	ProgressMessage ProgressMessageFunc
	// DisableCompletionReplay disables sending the latest completion to new subscribers.
	DisableCompletionReplay bool
	// Tracer traces every run, by default the global tracer provider is used.
	Tracer  trace.Tracer
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Poster == nil {
		return fmt.Errorf("poster is required")
	}

	if c.Notifier == nil {
		c.Notifier = notify.Noop
	}

	if c.ProgressMessage == nil {
		c.ProgressMessage = func(_ string, remaining int) string {
			return fmt.Sprintf("%d steps remaining", remaining)
		}
	}

	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracing.InstrumentationName)
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Runner"})

	return nil
}

type job struct {
	req             model.TaskRequest
	task            worker.Task
	ctx             context.Context
	cancel          context.CancelFunc
	cancelRequested bool
	startedAt       time.Time
}

// Runner runs tasks on a single worker thread.
type Runner struct {
	defaultTask worker.Task
	notifier    notify.Sink
	progressMsg ProgressMessageFunc
	tracer      trace.Tracer
	now         func() time.Time
	logger      log.Logger

	progress   *progress.Reporter
	completion *completion.Channel
	jobs       chan *job

	mu      sync.Mutex
	state   model.RunnerState
	active  *job
	serving bool
	stopped bool
}

// NewRunner creates a new task runner. Tasks are not executed until Run is called.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reporter, err := progress.NewReporter(progress.ReporterConfig{
		Poster: cfg.Poster,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create progress reporter: %w", err)
	}

	channel, err := completion.NewChannel(completion.ChannelConfig{
		Poster:        cfg.Poster,
		DisableReplay: cfg.DisableCompletionReplay,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create completion channel: %w", err)
	}

	return &Runner{
		defaultTask: cfg.Task,
		notifier:    cfg.Notifier,
		progressMsg: cfg.ProgressMessage,
		tracer:      cfg.Tracer,
		now:         cfg.TimeNow,
		logger:      cfg.Logger,
		progress:    reporter,
		completion:  channel,
		jobs:        make(chan *job, 1),
		state:       model.RunnerStateIdle,
	}, nil
}

// Start starts a run of the default task.
func (r *Runner) Start(ctx context.Context, req model.TaskRequest) error {
	if r.defaultTask == nil {
		return fmt.Errorf("runner has no default task: %w", model.ErrNotValid)
	}
	return r.StartTask(ctx, req, r.defaultTask)
}

// StartTask starts a run of task. It fails with model.ErrAlreadyRunning if the
// runner is not idle, requests are never queued.
func (r *Runner) StartTask(ctx context.Context, req model.TaskRequest, task worker.Task) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return fmt.Errorf("runner: %w", model.ErrStopped)
	}

	if r.state != model.RunnerStateIdle {
		return fmt.Errorf("could not start task %s, task %s is %s: %w", req.ID, r.active.req.ID, r.state, model.ErrAlreadyRunning)
	}

	// The job keeps the request context values (used by the logger) but not its cancellation.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{
		req:    req,
		task:   task,
		ctx:    jobCtx,
		cancel: cancel,
	}

	select {
	case r.jobs <- j:
	default:
		cancel()
		return fmt.Errorf("worker thread is busy: %w", model.ErrAlreadyRunning)
	}

	r.state = model.RunnerStateStarting
	r.active = j
	r.logger.Debugf("Task %s dispatched", req.ID)

	return nil
}

// Cancel requests the cooperative cancellation of the active run.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case model.RunnerStateIdle, model.RunnerStateFinishing:
		return fmt.Errorf("could not cancel: %w", model.ErrNotRunning)
	case model.RunnerStateCancelling:
		return nil
	}

	r.state = model.RunnerStateCancelling
	r.active.cancelRequested = true
	r.active.cancel()
	r.logger.Infof("Cancellation requested for task %s", r.active.req.ID)

	return nil
}

// State returns the current runner state.
func (r *Runner) State() model.RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ActiveTask returns the ID of the active run if any.
func (r *Runner) ActiveTask() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return "", false
	}
	return r.active.req.ID, true
}

// LatestCompletion returns the most recently published completion event.
func (r *Runner) LatestCompletion() (model.CompletionEvent, bool) {
	return r.completion.Latest()
}

// Run is the worker thread, it executes the dispatched tasks one by one until
// the context is done. The active task is cancelled when the context ends.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.serving || r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("runner can only run once")
	}
	r.serving = true
	r.mu.Unlock()

	r.logger.Debugf("Worker thread started")

	stopWatch := context.AfterFunc(ctx, r.stop)
	defer stopWatch()

	for {
		if ctx.Err() != nil {
			r.stop()
			r.drain()
			r.logger.Debugf("Worker thread stopped")
			return nil
		}

		select {
		case <-ctx.Done():
		case j := <-r.jobs:
			r.execute(j)
		}
	}
}

func (r *Runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	if r.active != nil && !r.active.cancelRequested {
		r.active.cancelRequested = true
		r.active.cancel()
	}
}

// drain finishes a job that was dispatched but never got the worker thread.
func (r *Runner) drain() {
	select {
	case j := <-r.jobs:
		j.startedAt = r.now()
		r.finish(j, fmt.Errorf("runner stopped before the task started: %w", model.ErrCancelled))
	default:
	}
}

func (r *Runner) execute(j *job) {
	r.mu.Lock()
	if r.state == model.RunnerStateStarting {
		r.state = model.RunnerStateRunning
	}
	j.startedAt = r.now()
	r.mu.Unlock()

	// Only the worker thread uses the job context from now on.
	j.ctx, _ = r.tracer.Start(j.ctx, "task.run", trace.WithAttributes(attribute.String("task.id", j.req.ID)))

	r.logger.Infof("Task %s started", j.req.ID)
	r.notify(j, model.Notification{
		TaskID:  j.req.ID,
		State:   model.VisibilityStateStarted,
		Message: fmt.Sprintf("task %s started", j.req.ID),
	})

	err := r.runTask(j)
	r.finish(j, err)
}

func (r *Runner) runTask(j *job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("task %s panicked: %v\n%s", j.req.ID, rec, debug.Stack())
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()

	// Cancelled before the worker thread got it.
	if j.ctx.Err() != nil {
		return fmt.Errorf("task cancelled before start: %w", model.ErrCancelled)
	}

	return j.task.Run(j.ctx, j.req.ID, &progressSink{runner: r, job: j})
}

func (r *Runner) finish(j *job, runErr error) {
	r.mu.Lock()
	if r.state != model.RunnerStateCancelling {
		r.state = model.RunnerStateFinishing
	}
	cancelled := j.cancelRequested
	r.mu.Unlock()

	ev := model.CompletionEvent{
		TaskID:     j.req.ID,
		StartedAt:  j.startedAt,
		FinishedAt: r.now(),
	}
	n := model.Notification{TaskID: j.req.ID}

	switch {
	case cancelled || errors.Is(runErr, model.ErrCancelled) || errors.Is(runErr, context.Canceled):
		ev.Status = model.CompletionStatusCancelled
		ev.Error = model.ErrCancelled.Error()
		if runErr != nil {
			ev.Error = runErr.Error()
		}
		n.State = model.VisibilityStateCancelled
		n.Message = fmt.Sprintf("task %s cancelled", j.req.ID)
		r.logger.Warningf("Task %s cancelled", j.req.ID)
	case runErr != nil:
		ev.Status = model.CompletionStatusFailed
		ev.Error = runErr.Error()
		n.State = model.VisibilityStateFailed
		n.Message = fmt.Sprintf("task %s failed: %s", j.req.ID, runErr)
		r.logger.Errorf("Task %s failed: %s", j.req.ID, runErr)
	default:
		ev.Status = model.CompletionStatusSucceeded
		n.State = model.VisibilityStateDone
		n.Message = fmt.Sprintf("task %s done", j.req.ID)
		r.logger.Infof("Task %s finished", j.req.ID)
	}

	// Going idle and publishing atomically, a start from a completion observer
	// always finds the runner idle.
	r.mu.Lock()
	j.cancel()
	r.active = nil
	r.state = model.RunnerStateIdle
	r.progress.Seal()
	published := r.completion.Publish(ev)
	r.mu.Unlock()

	r.logger.Debugf("Task %s completion published with sequence %d", j.req.ID, published.Seq)
	endSpan(j.ctx, published, runErr)

	// Release the task visibility.
	r.notify(j, n)
}

func endSpan(ctx context.Context, ev model.CompletionEvent, runErr error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("task.status", string(ev.Status)),
		attribute.Int64("task.completion.seq", int64(ev.Seq)),
	)
	switch ev.Status {
	case model.CompletionStatusFailed:
		span.RecordError(runErr)
		span.SetStatus(codes.Error, ev.Error)
	case model.CompletionStatusSucceeded:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (r *Runner) notify(j *job, n model.Notification) {
	if err := r.notifier.Notify(j.ctx, n); err != nil {
		r.logger.Warningf("could not notify %s state of task %s: %s", n.State, n.TaskID, err)
	}
}
