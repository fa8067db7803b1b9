package io

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/tasknotify/internal/model"
)

func TestPlanYAMLRepository_GetPlan(t *testing.T) {
	tests := map[string]struct {
		fs      fstest.MapFS
		path    string
		expPlan model.Plan
		expErr  bool
	}{
		"Valid plan should load successfully": {
			fs: fstest.MapFS{
				"plan.yaml": &fstest.MapFile{
					Data: []byte(`tasks:
  - id: first
    kind: delay
    delay: 3s
  - id: countdown
    kind: countdown
    steps: 10
    interval: 1s
`),
				},
			},
			path: "plan.yaml",
			expPlan: model.Plan{Tasks: []model.PlanTask{
				{ID: "first", Kind: model.TaskKindDelay, Delay: 3 * time.Second},
				{ID: "countdown", Kind: model.TaskKindCountdown, Steps: 10, Interval: time.Second},
			}},
		},
		"Missing kind should default to countdown": {
			fs: fstest.MapFS{
				"plan.yaml": &fstest.MapFile{
					Data: []byte(`tasks:
  - id: a
`),
				},
			},
			path: "plan.yaml",
			expPlan: model.Plan{Tasks: []model.PlanTask{
				{ID: "a", Kind: model.TaskKindCountdown},
			}},
		},
		"Missing file should fail": {
			fs:     fstest.MapFS{},
			path:   "plan.yaml",
			expErr: true,
		},
		"Invalid YAML should fail": {
			fs: fstest.MapFS{
				"plan.yaml": &fstest.MapFile{Data: []byte(`tasks: [`)},
			},
			path:   "plan.yaml",
			expErr: true,
		},
		"Invalid duration should fail": {
			fs: fstest.MapFS{
				"plan.yaml": &fstest.MapFile{
					Data: []byte(`tasks:
  - id: a
    interval: often
`),
				},
			},
			path:   "plan.yaml",
			expErr: true,
		},
		"Empty plan should fail": {
			fs: fstest.MapFS{
				"plan.yaml": &fstest.MapFile{Data: []byte(`tasks: []`)},
			},
			path:   "plan.yaml",
			expErr: true,
		},
		"Duplicated ids should fail": {
			fs: fstest.MapFS{
				"plan.yaml": &fstest.MapFile{
					Data: []byte(`tasks:
  - id: a
  - id: a
`),
				},
			},
			path:   "plan.yaml",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewPlanYAMLRepository(test.fs)
			plan, err := repo.GetPlan(context.Background(), test.path)

			if test.expErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expPlan, plan)
		})
	}
}
