package model

// VisibilityState is the state shown on the visibility surface for a task.
type VisibilityState string

const (
	VisibilityStateStarted   VisibilityState = "started"
	VisibilityStateProgress  VisibilityState = "progress"
	VisibilityStateDone      VisibilityState = "done"
	VisibilityStateCancelled VisibilityState = "cancelled"
	VisibilityStateFailed    VisibilityState = "failed"
)

// Terminal returns true if the state closes the task visibility.
func (v VisibilityState) Terminal() bool {
	switch v {
	case VisibilityStateDone, VisibilityStateCancelled, VisibilityStateFailed:
		return true
	}
	return false
}

// Notification is what the runner tells the visibility surface on each transition.
type Notification struct {
	TaskID    string
	State     VisibilityState
	Remaining int
	Total     int
	Message   string
}
