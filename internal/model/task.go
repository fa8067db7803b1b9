package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskRequest is the request to start a single task run.
type TaskRequest struct {
	// ID identifies the task run, it's opaque to the runner.
	ID string
}

// Validate validates the task request.
func (t TaskRequest) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	return nil
}

// ProgressUpdate is an intermediate status of a running task.
type ProgressUpdate struct {
	TaskID string
	// Remaining is the amount of work left, 0 means the task has no more work to do.
	Remaining int
	// Total is the first remaining value reported on the run.
	Total int
	At    time.Time
}

// RunnerState is the state of the task runner.
type RunnerState string

const (
	RunnerStateIdle       RunnerState = "idle"
	RunnerStateStarting   RunnerState = "starting"
	RunnerStateRunning    RunnerState = "running"
	RunnerStateCancelling RunnerState = "cancelling"
	RunnerStateFinishing  RunnerState = "finishing"
)
