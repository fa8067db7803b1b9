package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.HistoryRepository.
type Repository struct {
	records map[string]model.CompletionRecord
	mu      sync.RWMutex
	logger  log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		records: make(map[string]model.CompletionRecord),
		logger:  cfg.Logger,
	}, nil
}

// SaveCompletion stores a completion record.
func (r *Repository) SaveCompletion(ctx context.Context, rec model.CompletionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("completion record %s: %w", rec.ID, model.ErrAlreadyExists)
	}

	r.records[rec.ID] = rec
	r.logger.Debugf("Saved completion record in repository: %s", rec.ID)

	return nil
}

// GetCompletion retrieves a completion record by ID.
func (r *Repository) GetCompletion(ctx context.Context, id string) (*model.CompletionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("completion record %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	recCopy := rec
	return &recCopy, nil
}

// ListCompletions returns the completion records, most recent first.
func (r *Repository) ListCompletions(ctx context.Context, opts storage.ListOpts) ([]model.CompletionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]model.CompletionRecord, 0, len(r.records))
	for _, rec := range r.records {
		if opts.TaskID != "" && rec.Event.TaskID != opts.TaskID {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].RecordedAt.Equal(recs[j].RecordedAt) {
			return recs[i].RecordedAt.After(recs[j].RecordedAt)
		}
		return recs[i].ID > recs[j].ID
	})

	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}

	return recs, nil
}
