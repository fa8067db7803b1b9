package storage

import (
	"context"

	"github.com/slok/tasknotify/internal/model"
)

// ListOpts are the options to list completion records.
type ListOpts struct {
	// TaskID filters by task ID if set.
	TaskID string
	// Limit limits the number of records if greater than 0.
	Limit int
}

// HistoryRepository is the interface for completion history persistence.
//
// Records are returned most recent first.
type HistoryRepository interface {
	SaveCompletion(ctx context.Context, r model.CompletionRecord) error
	GetCompletion(ctx context.Context, id string) (*model.CompletionRecord, error)
	ListCompletions(ctx context.Context, opts ListOpts) ([]model.CompletionRecord, error)
}
