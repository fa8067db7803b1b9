package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/tasknotify/internal/app/history"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	limit  int
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the recorded task completions.")
	c.Cmd.Flag("task-id", "Only show the completions of this task.").StringVar(&c.taskID)
	c.Cmd.Flag("limit", "Maximum number of completions, 0 shows all.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, closeRepo, err := c.rootCmd.historyRepository(ctx, false)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	records, err := svc.Run(ctx, history.Request{
		TaskID: c.taskID,
		Limit:  c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list history: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintHistory(records); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
