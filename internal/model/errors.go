package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyRunning is returned when a task is started while another one is active.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned when cancelling while no task is active.
	ErrNotRunning = errors.New("not running")
	// ErrCancelled is returned by tasks that unwound because cancellation was requested.
	ErrCancelled = errors.New("cancelled")
	// ErrStopped is returned when using a component that is no longer serving.
	ErrStopped = errors.New("stopped")
)
