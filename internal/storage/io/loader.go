package io

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/tasknotify/internal/model"
)

// PlanYAMLRepository loads task plans from YAML files.
type PlanYAMLRepository struct {
	fs fs.FS
}

// NewPlanYAMLRepository creates a new YAML plan repository.
func NewPlanYAMLRepository(filesystem fs.FS) *PlanYAMLRepository {
	return &PlanYAMLRepository{fs: filesystem}
}

// GetPlan loads a plan from a YAML file and returns a validated domain model.
func (r *PlanYAMLRepository) GetPlan(ctx context.Context, path string) (model.Plan, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Plan{}, fmt.Errorf("reading plan file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Plan{}, ctx.Err()
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return model.Plan{}, fmt.Errorf("parsing YAML: %w", err)
	}

	p, err := plan.toModel()
	if err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan: %w", err)
	}

	if err := p.Validate(); err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan: %w", err)
	}

	return p, nil
}

// Plan represents the YAML structure of a plan.
type Plan struct {
	Tasks []PlanTask `yaml:"tasks"`
}

// PlanTask represents the YAML structure of a plan task.
type PlanTask struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Steps    int    `yaml:"steps"`
	Interval string `yaml:"interval"`
	Delay    string `yaml:"delay"`
}

func (p Plan) toModel() (model.Plan, error) {
	tasks := make([]model.PlanTask, 0, len(p.Tasks))
	for i, t := range p.Tasks {
		interval, err := parseDuration(t.Interval)
		if err != nil {
			return model.Plan{}, fmt.Errorf("task %d interval: %w", i, err)
		}
		delay, err := parseDuration(t.Delay)
		if err != nil {
			return model.Plan{}, fmt.Errorf("task %d delay: %w", i, err)
		}

		kind := model.TaskKind(strings.ToLower(strings.TrimSpace(t.Kind)))
		if kind == "" {
			kind = model.TaskKindCountdown
		}

		tasks = append(tasks, model.PlanTask{
			ID:       t.ID,
			Kind:     kind,
			Steps:    t.Steps,
			Interval: interval,
			Delay:    delay,
		})
	}

	return model.Plan{Tasks: tasks}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", err, model.ErrNotValid)
	}
	return d, nil
}
