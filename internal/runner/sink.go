package runner

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/slok/tasknotify/internal/model"
)

// progressSink is the worker.ProgressSink handed to every run.
type progressSink struct {
	runner *Runner
	job    *job

	mu       sync.Mutex
	reported bool
	total    int
	last     int
}

func (s *progressSink) Report(ctx context.Context, remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.job.req.ID
	if s.job.ctx.Err() != nil || ctx.Err() != nil {
		return fmt.Errorf("task %s: %w", id, model.ErrCancelled)
	}

	if remaining < 0 {
		return fmt.Errorf("task %s reported negative remaining %d: %w", id, remaining, model.ErrNotValid)
	}
	if s.reported && remaining > s.last {
		return fmt.Errorf("task %s reported %d after %d, progress can't go back: %w", id, remaining, s.last, model.ErrNotValid)
	}

	if !s.reported {
		s.reported = true
		s.total = remaining
	}
	s.last = remaining

	trace.SpanFromContext(s.job.ctx).AddEvent("progress", trace.WithAttributes(attribute.Int("task.remaining", remaining)))

	s.runner.progress.Emit(model.ProgressUpdate{
		TaskID:    id,
		Remaining: remaining,
		Total:     s.total,
		At:        s.runner.now(),
	})

	s.runner.notify(s.job, model.Notification{
		TaskID:    id,
		State:     model.VisibilityStateProgress,
		Remaining: remaining,
		Total:     s.total,
		Message:   s.runner.progressMsg(id, remaining),
	})

	return nil
}
