package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/ulid/v2"

	"github.com/slok/tasknotify/internal/app/run"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/runner"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id         string
	kind       string
	steps      int
	interval   time.Duration
	delay      time.Duration
	format     string
	noHistory  bool
	noProgress bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a single task in the foreground showing its progress.")
	c.Cmd.Flag("id", "Task ID, by default a random one.").StringVar(&c.id)
	c.Cmd.Flag("kind", "Task kind (countdown, delay).").Default(string(model.TaskKindCountdown)).EnumVar(&c.kind, string(model.TaskKindCountdown), string(model.TaskKindDelay))
	c.Cmd.Flag("steps", "Countdown starting step.").Default("10").IntVar(&c.steps)
	c.Cmd.Flag("interval", "Countdown wait between steps.").Default("1s").DurationVar(&c.interval)
	c.Cmd.Flag("delay", "Delay task wait.").Default("3s").DurationVar(&c.delay)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("no-history", "Don't record the completion in the history.").BoolVar(&c.noHistory)
	c.Cmd.Flag("no-progress", "Don't show the progress.").BoolVar(&c.noProgress)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	id := c.id
	if id == "" {
		id = ulid.Make().String()
	}

	task, interval, err := newTask(model.PlanTask{
		ID:       id,
		Kind:     model.TaskKind(c.kind),
		Steps:    c.steps,
		Interval: c.interval,
		Delay:    c.delay,
	})
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}

	repo, closeRepo, err := c.rootCmd.historyRepository(ctx, c.noHistory)
	if err != nil {
		return err
	}
	defer closeRepo()

	intervals := map[string]time.Duration{}
	if interval > 0 {
		intervals[id] = interval
	}
	cfg := runner.RunnerConfig{
		Task:            task,
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

		// The runner task is used.
		events, err = svc.Run(ctx, run.Request{
			Items: []run.Item{{Request: model.TaskRequest{ID: id}}},
		})
		return err
	})

	if perr := newPrinter(c.format, c.rootCmd.Stdout).PrintCompletions(events); perr != nil {
		return fmt.Errorf("could not print completions: %w", perr)
	}
	if err != nil {
		return fmt.Errorf("could not run task: %w", err)
	}

	return checkEvents(events)
}
