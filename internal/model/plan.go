package model

import (
	"fmt"
	"time"
)

// TaskKind is the kind of built-in unit of work.
type TaskKind string

const (
	// TaskKindCountdown counts down reporting every step.
	TaskKindCountdown TaskKind = "countdown"
	// TaskKindDelay waits for a while and finishes.
	TaskKindDelay TaskKind = "delay"
)

// PlanTask is a single task of a plan.
type PlanTask struct {
	ID       string
	Kind     TaskKind
	Steps    int
	Interval time.Duration
	Delay    time.Duration
}

// Validate validates the plan task.
func (p PlanTask) Validate() error {
	if err := (TaskRequest{ID: p.ID}).Validate(); err != nil {
		return err
	}

	switch p.Kind {
	case TaskKindCountdown, TaskKindDelay:
	default:
		return fmt.Errorf("unknown task kind %q: %w", p.Kind, ErrNotValid)
	}

	if p.Steps < 0 {
		return fmt.Errorf("steps can't be negative: %w", ErrNotValid)
	}
	if p.Interval < 0 || p.Delay < 0 {
		return fmt.Errorf("durations can't be negative: %w", ErrNotValid)
	}

	return nil
}

// Plan is an ordered list of tasks to run one after the other.
type Plan struct {
	Tasks []PlanTask
}

// Validate validates the plan.
func (p Plan) Validate() error {
	if len(p.Tasks) == 0 {
		return fmt.Errorf("plan has no tasks: %w", ErrNotValid)
	}

	seen := map[string]bool{}
	for i, t := range p.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
		if seen[t.ID] {
			return fmt.Errorf("task %d: duplicated id %q: %w", i, t.ID, ErrNotValid)
		}
		seen[t.ID] = true
	}

	return nil
}
