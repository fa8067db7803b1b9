package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/tasknotify/internal/app/run"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/runner"
	storageio "github.com/slok/tasknotify/internal/storage/io"
)

type PlanCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file          string
	stopOnFailure bool
	format        string
	noHistory     bool
	noProgress    bool
}

// NewPlanCommand returns the plan command.
func NewPlanCommand(rootCmd *RootCommand, app *kingpin.Application) *PlanCommand {
	c := &PlanCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("plan", "Run the tasks of a YAML plan file one after the other.")
	c.Cmd.Arg("file", "Plan file path.").Required().StringVar(&c.file)
	c.Cmd.Flag("stop-on-failure", "Stop at the first task that doesn't succeed.").BoolVar(&c.stopOnFailure)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("no-history", "Don't record the completions in the history.").BoolVar(&c.noHistory)
	c.Cmd.Flag("no-progress", "Don't show the progress.").BoolVar(&c.noProgress)

	return c
}

func (c PlanCommand) Name() string { return c.Cmd.FullCommand() }

func (c PlanCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	path, err := filepath.Abs(c.file)
	if err != nil {
		return fmt.Errorf("invalid plan path: %w", err)
	}
	loader := storageio.NewPlanYAMLRepository(os.DirFS(filepath.Dir(path)))
	plan, err := loader.GetPlan(ctx, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("could not load plan: %w", err)
	}
	logger.Debugf("Plan loaded with %d tasks", len(plan.Tasks))

	items, intervals, err := planItems(plan)
	if err != nil {
		return err
	}

	repo, closeRepo, err := c.rootCmd.historyRepository(ctx, c.noHistory)
	if err != nil {
		return err
	}
	defer closeRepo()

	cfg := runner.RunnerConfig{
		Notifier:        c.rootCmd.notifier(!c.noProgress),
		ProgressMessage: progressMessage(intervals),
	}

	var events []model.CompletionEvent
	err = c.rootCmd.withRunner(ctx, cfg, func(ctx context.Context, r *runner.Runner) error {
		svc, err := run.NewService(run.ServiceConfig{
			Runner:     r,
			Repository: repo,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("could not create service: %w", err)
		}

		events, err = svc.Run(ctx, run.Request{
			Items:         items,
			StopOnFailure: c.stopOnFailure,
		})
		return err
	})

	if perr := newPrinter(c.format, c.rootCmd.Stdout).PrintCompletions(events); perr != nil {
		return fmt.Errorf("could not print completions: %w", perr)
	}
	if err != nil {
		return fmt.Errorf("could not run plan: %w", err)
	}

	return checkEvents(events)
}
