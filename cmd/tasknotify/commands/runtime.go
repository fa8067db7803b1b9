package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/oklog/run"

	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/notify"
	"github.com/slok/tasknotify/internal/printer"
	"github.com/slok/tasknotify/internal/runner"
	"github.com/slok/tasknotify/internal/storage"
	"github.com/slok/tasknotify/internal/storage/sqlite"
)

// withRunner starts the delivery and worker threads, executes fn and stops
// both threads once fn returns.
func (c RootCommand) withRunner(ctx context.Context, cfg runner.RunnerConfig, fn func(ctx context.Context, r *runner.Runner) error) error {
	loop, err := dispatch.NewLoop(dispatch.LoopConfig{Logger: c.Logger})
	if err != nil {
		return fmt.Errorf("could not create delivery loop: %w", err)
	}

	cfg.Poster = loop
	cfg.Logger = c.Logger
	r, err := runner.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("could not create runner: %w", err)
	}

	var g run.Group

	// The threads don't depend on ctx, pending deliveries must reach the
	// caller after a cancellation.
	{
		loopCtx, loopCancel := context.WithCancel(context.Background())
		g.Add(
			func() error { return loop.Run(loopCtx) },
			func(_ error) { loopCancel() },
		)
	}

	{
		workerCtx, workerCancel := context.WithCancel(context.Background())
		g.Add(
			func() error { return r.Run(workerCtx) },
			func(_ error) { workerCancel() },
		)
	}

	{
		fnCtx, fnCancel := context.WithCancel(ctx)
		g.Add(
			func() error { return fn(fnCtx, r) },
			func(_ error) { fnCancel() },
		)
	}

	return g.Run()
}

// historyRepository returns the completion history repository, nil when the history is disabled.
func (c RootCommand) historyRepository(ctx context.Context, disabled bool) (storage.HistoryRepository, func(), error) {
	if disabled {
		return nil, func() {}, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			c.Logger.Warningf("could not close repository: %s", err)
		}
	}, nil
}

// notifier returns the visibility sink for the runs.
func (c RootCommand) notifier(progress bool) notify.Sink {
	sinks := []notify.Sink{}
	if progress {
		sinks = append(sinks, notify.NewWriterSink(c.Stderr))
	}
	if c.Debug {
		sinks = append(sinks, notify.NewLogSink(c.Logger))
	}

	return notify.Multi(sinks...)
}

func newPrinter(format string, w io.Writer) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(w)
	default:
		return printer.NewTablePrinter(w)
	}
}
