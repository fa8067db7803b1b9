package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/storage"
	"github.com/slok/tasknotify/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.HistoryRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// SaveCompletion stores a completion record.
func (r *Repository) SaveCompletion(ctx context.Context, rec model.CompletionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	var startedAt *int64
	if !rec.Event.StartedAt.IsZero() {
		u := rec.Event.StartedAt.UnixMilli()
		startedAt = &u
	}

	query := `
		INSERT INTO completions (
			id, seq, task_id, status, error,
			started_at, finished_at, recorded_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Event.Seq,
		rec.Event.TaskID,
		rec.Event.Status,
		rec.Event.Error,
		startedAt,
		rec.Event.FinishedAt.UnixMilli(),
		rec.RecordedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: completions.") {
			return fmt.Errorf("completion record already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert completion record: %w", err)
	}

	r.logger.Debugf("Saved completion record in repository: %s", rec.ID)
	return nil
}

// GetCompletion retrieves a completion record by ID.
func (r *Repository) GetCompletion(ctx context.Context, id string) (*model.CompletionRecord, error) {
	query := `
		SELECT
			id, seq, task_id, status, error,
			started_at, finished_at, recorded_at
		FROM completions
		WHERE id = ?
	`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("completion record %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get completion record: %w", err)
	}

	return rec, nil
}

// ListCompletions returns the completion records, most recent first.
func (r *Repository) ListCompletions(ctx context.Context, opts storage.ListOpts) ([]model.CompletionRecord, error) {
	query := `
		SELECT
			id, seq, task_id, status, error,
			started_at, finished_at, recorded_at
		FROM completions
	`
	args := []any{}
	if opts.TaskID != "" {
		query += " WHERE task_id = ?"
		args = append(args, opts.TaskID)
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not list completion records: %w", err)
	}
	defer rows.Close()

	recs := []model.CompletionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan completion record: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate completion records: %w", err)
	}

	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.CompletionRecord, error) {
	var (
		rec        model.CompletionRecord
		status     string
		startedAt  sql.NullInt64
		finishedAt int64
		recordedAt int64
	)

	err := s.Scan(
		&rec.ID,
		&rec.Event.Seq,
		&rec.Event.TaskID,
		&status,
		&rec.Event.Error,
		&startedAt,
		&finishedAt,
		&recordedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Event.Status = model.CompletionStatus(status)
	if startedAt.Valid {
		rec.Event.StartedAt = time.UnixMilli(startedAt.Int64).UTC()
	}
	rec.Event.FinishedAt = time.UnixMilli(finishedAt).UTC()
	rec.RecordedAt = time.UnixMilli(recordedAt).UTC()

	return &rec, nil
}
