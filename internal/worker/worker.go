// Package worker defines the unit of work executed by the task runner and the
// built-in tasks.
//
// Tasks block for as long as their work takes, they run on the worker thread
// and never on the delivery thread. Cancellation is cooperative: a task must
// return promptly when its context is done or when [ProgressSink.Report]
// returns an error.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/tasknotify/internal/model"
)

// ProgressSink receives the progress of a running task.
type ProgressSink interface {
	// Report reports the remaining work. It returns an error wrapping
	// model.ErrCancelled if the run has been cancelled.
	Report(ctx context.Context, remaining int) error
}

// Task is a unit of work.
type Task interface {
	Run(ctx context.Context, id string, sink ProgressSink) error
}

// TaskFunc is a helper to use functions as tasks.
type TaskFunc func(ctx context.Context, id string, sink ProgressSink) error

func (t TaskFunc) Run(ctx context.Context, id string, sink ProgressSink) error { return t(ctx, id, sink) }

// SleepFunc waits for d or until the context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc based on real time.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return checkCancelled(ctx)
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", model.ErrCancelled)
	case <-t.C:
		return nil
	}
}

func checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("context done: %w", model.ErrCancelled)
	}
	return nil
}
