package lib

import (
	"context"
	"errors"
	"time"

	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/worker"
)

// Errors returned by the SDK.
var (
	ErrNotFound       = errors.New("not found")
	ErrNotValid       = errors.New("not valid")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
	ErrCancelled      = errors.New("cancelled")
	ErrStopped        = errors.New("stopped")
)

// ProgressSink receives the progress of a task. Reporting is also where the
// cancellation is observed: Report fails with [ErrCancelled] once the run has
// been cancelled.
type ProgressSink interface {
	// Report reports the remaining steps, they must never increase within a run.
	Report(ctx context.Context, remaining int) error
}

// Task is a unit of work run on the worker thread.
type Task interface {
	Run(ctx context.Context, id string, sink ProgressSink) error
}

// TaskFunc is a helper to create a Task from a function.
type TaskFunc func(ctx context.Context, id string, sink ProgressSink) error

// Run satisfies Task interface.
func (t TaskFunc) Run(ctx context.Context, id string, sink ProgressSink) error {
	return t(ctx, id, sink)
}

// RunnerState is the state of the worker thread.
type RunnerState string

const (
	RunnerStateIdle       RunnerState = "idle"
	RunnerStateStarting   RunnerState = "starting"
	RunnerStateRunning    RunnerState = "running"
	RunnerStateCancelling RunnerState = "cancelling"
	RunnerStateFinishing  RunnerState = "finishing"
)

// ProgressUpdate is a progress report of a run.
type ProgressUpdate struct {
	TaskID    string
	Remaining int
	// Total is the first remaining value reported by the run.
	Total int
	At    time.Time
}

// CompletionStatus is how a run ended.
type CompletionStatus string

const (
	CompletionStatusSucceeded CompletionStatus = "succeeded"
	CompletionStatusCancelled CompletionStatus = "cancelled"
	CompletionStatusFailed    CompletionStatus = "failed"
)

// CompletionEvent is the terminal result of a run.
type CompletionEvent struct {
	// Seq increases on every completion of the client.
	Seq        uint64
	TaskID     string
	Status     CompletionStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// CompletionRecord is a completion stored in the history.
type CompletionRecord struct {
	ID         string
	Event      CompletionEvent
	RecordedAt time.Time
}

// RunItem is a task of a [Client.Run].
type RunItem struct {
	ID   string
	Task Task
}

// RunOpts are the options of a [Client.Run].
type RunOpts struct {
	// StopOnFailure stops at the first task that doesn't succeed.
	StopOnFailure bool
}

// HistoryOpts are the options of [Client.History].
type HistoryOpts struct {
	// TaskID filters the completions of a task.
	TaskID string
	// Limit is the maximum number of completions, 0 means no limit.
	Limit int
}

// --- Conversion helpers ---

type taskAdapter struct {
	task Task
}

func (t taskAdapter) Run(ctx context.Context, id string, sink worker.ProgressSink) error {
	return t.task.Run(ctx, id, sinkAdapter{sink: sink})
}

type sinkAdapter struct {
	sink worker.ProgressSink
}

func (s sinkAdapter) Report(ctx context.Context, remaining int) error {
	return mapError(s.sink.Report(ctx, remaining))
}

func toInternalTask(t Task) worker.Task {
	if t == nil {
		return nil
	}
	return taskAdapter{task: t}
}

func fromInternalProgressUpdate(u model.ProgressUpdate) ProgressUpdate {
	return ProgressUpdate{
		TaskID:    u.TaskID,
		Remaining: u.Remaining,
		Total:     u.Total,
		At:        u.At,
	}
}

func fromInternalCompletionEvent(ev model.CompletionEvent) CompletionEvent {
	return CompletionEvent{
		Seq:        ev.Seq,
		TaskID:     ev.TaskID,
		Status:     CompletionStatus(ev.Status),
		Error:      ev.Error,
		StartedAt:  ev.StartedAt,
		FinishedAt: ev.FinishedAt,
	}
}

func fromInternalCompletionEvents(evs []model.CompletionEvent) []CompletionEvent {
	result := make([]CompletionEvent, len(evs))
	for i, ev := range evs {
		result[i] = fromInternalCompletionEvent(ev)
	}
	return result
}

func fromInternalCompletionRecords(rs []model.CompletionRecord) []CompletionRecord {
	result := make([]CompletionRecord, len(rs))
	for i, r := range rs {
		result[i] = CompletionRecord{
			ID:         r.ID,
			Event:      fromInternalCompletionEvent(r.Event),
			RecordedAt: r.RecordedAt,
		}
	}
	return result
}

var errorMappings = []struct {
	internal error
	public   error
}{
	{internal: model.ErrNotFound, public: ErrNotFound},
	{internal: model.ErrNotValid, public: ErrNotValid},
	{internal: model.ErrAlreadyRunning, public: ErrAlreadyRunning},
	{internal: model.ErrNotRunning, public: ErrNotRunning},
	{internal: model.ErrCancelled, public: ErrCancelled},
	{internal: model.ErrStopped, public: ErrStopped},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.internal) {
			return &mappedError{original: err, sentinel: m.public}
		}
	}

	return err
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
