package commands

import (
	"fmt"
	"time"

	"github.com/slok/tasknotify/internal/app/run"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/runner"
	"github.com/slok/tasknotify/internal/worker"
)

// planItems builds the run items of a plan and the countdown interval of every task.
func planItems(plan model.Plan) ([]run.Item, map[string]time.Duration, error) {
	items := make([]run.Item, 0, len(plan.Tasks))
	intervals := map[string]time.Duration{}
	for _, pt := range plan.Tasks {
		task, interval, err := newTask(pt)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create task %s: %w", pt.ID, err)
		}

		items = append(items, run.Item{Request: model.TaskRequest{ID: pt.ID}, Task: task})
		if interval > 0 {
			intervals[pt.ID] = interval
		}
	}

	return items, intervals, nil
}

// newTask returns the built-in task of a plan task, the interval is only set for countdowns.
func newTask(pt model.PlanTask) (worker.Task, time.Duration, error) {
	switch pt.Kind {
	case model.TaskKindCountdown:
		t, err := worker.NewCountdown(worker.CountdownConfig{
			Steps:    pt.Steps,
			Interval: pt.Interval,
		})
		if err != nil {
			return nil, 0, err
		}
		return t, t.Interval(), nil
	case model.TaskKindDelay:
		t, err := worker.NewDelay(worker.DelayConfig{Delay: pt.Delay})
		if err != nil {
			return nil, 0, err
		}
		return t, 0, nil
	}

	return nil, 0, fmt.Errorf("unknown task kind %q: %w", pt.Kind, model.ErrNotValid)
}

// progressMessage shows the countdowns as the time left until the last warning.
func progressMessage(intervals map[string]time.Duration) runner.ProgressMessageFunc {
	return func(taskID string, remaining int) string {
		interval, ok := intervals[taskID]
		if !ok {
			return fmt.Sprintf("task %s finishing", taskID)
		}
		return fmt.Sprintf("%s until last warning", time.Duration(remaining)*interval)
	}
}

// checkEvents fails if any of the runs didn't succeed.
func checkEvents(events []model.CompletionEvent) error {
	failed := 0
	for _, ev := range events {
		if !ev.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks did not succeed", failed, len(events))
	}

	return nil
}
