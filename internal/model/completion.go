package model

import (
	"fmt"
	"time"
)

// CompletionStatus is the terminal status of a task run.
type CompletionStatus string

const (
	CompletionStatusSucceeded CompletionStatus = "succeeded"
	CompletionStatusCancelled CompletionStatus = "cancelled"
	CompletionStatusFailed    CompletionStatus = "failed"
)

// CompletionEvent is the terminal value published once per task run.
type CompletionEvent struct {
	// Seq is set by the completion channel on publish, it only grows.
	Seq        uint64
	TaskID     string
	Status     CompletionStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded returns true if the run finished successfully.
func (c CompletionEvent) Succeeded() bool {
	return c.Status == CompletionStatusSucceeded
}

// Duration returns how long the run took.
func (c CompletionEvent) Duration() time.Duration {
	if c.StartedAt.IsZero() || c.FinishedAt.Before(c.StartedAt) {
		return 0
	}
	return c.FinishedAt.Sub(c.StartedAt)
}

// CompletionRecord is a completion event stored in the history.
type CompletionRecord struct {
	ID         string
	Event      CompletionEvent
	RecordedAt time.Time
}

// Validate validates the completion record.
func (c CompletionRecord) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("record id is required: %w", ErrNotValid)
	}
	if c.Event.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	switch c.Event.Status {
	case CompletionStatusSucceeded, CompletionStatusCancelled, CompletionStatusFailed:
	default:
		return fmt.Errorf("unknown completion status %q: %w", c.Event.Status, ErrNotValid)
	}
	return nil
}
