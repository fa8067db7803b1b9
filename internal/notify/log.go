package notify

import (
	"context"

	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
)

// LogSink logs every notification.
type LogSink struct {
	logger log.Logger
}

// NewLogSink returns a new log sink.
func NewLogSink(logger log.Logger) *LogSink {
	if logger == nil {
		logger = log.Noop
	}
	return &LogSink{logger: logger.WithValues(log.Kv{"svc": "notify.LogSink"})}
}

func (l *LogSink) Notify(ctx context.Context, n model.Notification) error {
	logger := l.logger.WithCtxValues(ctx).WithValues(log.Kv{
		"task-id": n.TaskID,
		"state":   n.State,
	})

	switch n.State {
	case model.VisibilityStateProgress:
		logger.Debugf("%s", n.Message)
	case model.VisibilityStateFailed:
		logger.Errorf("%s", n.Message)
	case model.VisibilityStateCancelled:
		logger.Warningf("%s", n.Message)
	default:
		logger.Infof("%s", n.Message)
	}

	return nil
}
