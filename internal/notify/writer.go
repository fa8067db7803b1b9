package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/slok/tasknotify/internal/model"
)

const barWidth = 40

// WriterSink renders the notifications on a terminal like writer, progress is
// redrawn on the same line.
type WriterSink struct {
	w          io.Writer
	mu         sync.Mutex
	inProgress bool
}

// NewWriterSink creates a new writer sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Notify(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case n.State == model.VisibilityStateProgress:
		s.inProgress = true
		_, err = fmt.Fprintf(s.w, "\r  [%s] %s", bar(n.Remaining, n.Total), n.Message)
	case n.State.Terminal() && s.inProgress:
		s.inProgress = false
		_, err = fmt.Fprintf(s.w, "\n%s\n", n.Message)
	default:
		_, err = fmt.Fprintln(s.w, n.Message)
	}
	if err != nil {
		return fmt.Errorf("could not write notification: %w", err)
	}

	return nil
}

func bar(remaining, total int) string {
	if total <= 0 {
		return strings.Repeat("=", barWidth)
	}

	filled := (total - remaining) * barWidth / total
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}

	return strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
}
