// Package notify has the visibility surfaces the task runner tells about the
// state of the running task.
package notify

import (
	"context"
	"errors"

	"github.com/slok/tasknotify/internal/model"
)

// Sink is a write only visibility surface.
type Sink interface {
	Notify(ctx context.Context, n model.Notification) error
}

// SinkFunc is a helper to use functions as sinks.
type SinkFunc func(ctx context.Context, n model.Notification) error

func (s SinkFunc) Notify(ctx context.Context, n model.Notification) error { return s(ctx, n) }

// Noop sink ignores all the notifications.
var Noop = SinkFunc(func(context.Context, model.Notification) error { return nil })

// Multi returns a sink that notifies all the sinks in order, every sink is
// notified even if a previous one failed.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
