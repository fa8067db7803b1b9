package runner

import (
	"fmt"

	"github.com/slok/tasknotify/internal/completion"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/progress"
)

type subscriptionKind int

const (
	subscriptionKindProgress subscriptionKind = iota + 1
	subscriptionKindCompletion
)

// Subscription is the handle of a progress or completion subscription.
type Subscription struct {
	kind subscriptionKind
	id   uint64
}

// SubscribeProgress registers a progress handler, it's called on the delivery thread.
func (r *Runner) SubscribeProgress(h progress.Handler) Subscription {
	return Subscription{kind: subscriptionKindProgress, id: r.progress.Subscribe(h)}
}

// SubscribeCompletion registers a completion handler, it's called on the
// delivery thread. If there is a latest completion it's delivered first unless
// the replay was disabled.
func (r *Runner) SubscribeCompletion(h completion.Handler) Subscription {
	return Subscription{kind: subscriptionKindCompletion, id: r.completion.Subscribe(h)}
}

// Unsubscribe removes a subscription.
func (r *Runner) Unsubscribe(s Subscription) error {
	var ok bool
	switch s.kind {
	case subscriptionKindProgress:
		ok = r.progress.Unsubscribe(s.id)
	case subscriptionKindCompletion:
		ok = r.completion.Unsubscribe(s.id)
	}

	if !ok {
		return fmt.Errorf("subscription %d: %w", s.id, model.ErrNotFound)
	}
	return nil
}
