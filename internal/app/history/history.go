package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.HistoryRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})

	return nil
}

// Service lists the recorded task completions.
type Service struct {
	repo   storage.HistoryRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// TaskID is an optional filter to only show the completions of this task.
	TaskID string
	// Limit is the maximum number of completions returned, 0 means no limit.
	Limit int
}

// Run lists the completions, most recent first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.CompletionRecord, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	opts := storage.ListOpts{
		TaskID: strings.TrimSpace(req.TaskID),
		Limit:  req.Limit,
	}
	s.logger.Debugf("listing completions with task filter %q and limit %d", opts.TaskID, opts.Limit)

	records, err := s.repo.ListCompletions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list completions: %w", err)
	}

	s.logger.Debugf("found %d completions", len(records))
	return records, nil
}
