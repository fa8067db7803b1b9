package tasknotify_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inttn "github.com/slok/tasknotify/test/integration/tasknotify"
)

// completionOutput matches the JSON output of `tasknotify run --format json`.
type completionOutput struct {
	Seq    uint64 `json:"seq"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// recordOutput matches the JSON output of `tasknotify history --format json`.
type recordOutput struct {
	ID         string           `json:"id"`
	Completion completionOutput `json:"completion"`
}

func newTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test-history.db")
}

func TestIntegrationRun(t *testing.T) {
	config := inttn.NewConfig(t)

	tests := map[string]struct {
		args      []string
		expStatus string
		expErr    bool
	}{
		"A countdown should succeed.": {
			args:      []string{"--id", "countdown-1", "--kind", "countdown", "--steps", "3", "--interval", "10ms"},
			expStatus: "succeeded",
		},
		"A delay should succeed.": {
			args:      []string{"--id", "delay-1", "--kind", "delay", "--delay", "20ms"},
			expStatus: "succeeded",
		},
		"An unknown kind should fail.": {
			args:   []string{"--id", "x", "--kind", "other"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			dbPath := newTestDB(t)
			stdout, stderr, err := inttn.RunTask(ctx, config, dbPath, test.args...)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err, "stderr: %s", stderr)

			var got []completionOutput
			require.NoError(t, json.Unmarshal(stdout, &got))
			require.Len(t, got, 1)
			assert.Equal(t, test.expStatus, got[0].Status)

			// The completion has been recorded.
			stdout, stderr, err = inttn.RunHistory(ctx, config, dbPath)
			require.NoError(t, err, "stderr: %s", stderr)
			var records []recordOutput
			require.NoError(t, json.Unmarshal(stdout, &records))
			require.Len(t, records, 1)
			assert.Equal(t, got[0].TaskID, records[0].Completion.TaskID)
		})
	}
}

func TestIntegrationRunNoHistory(t *testing.T) {
	config := inttn.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPath := newTestDB(t)
	_, stderr, err := inttn.RunTask(ctx, config, dbPath, "--kind", "delay", "--delay", "10ms", "--no-history")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := inttn.RunHistory(ctx, config, dbPath)
	require.NoError(t, err, "stderr: %s", stderr)
	var records []recordOutput
	require.NoError(t, json.Unmarshal(stdout, &records))
	assert.Empty(t, records)
}

func TestIntegrationPlan(t *testing.T) {
	config := inttn.NewConfig(t)

	const plan = `
tasks:
  - id: first
    kind: countdown
    steps: 2
    interval: 10ms
  - id: second
    kind: delay
    delay: 10ms
`

	tests := map[string]struct {
		args   []string
		expIDs []string
	}{
		"Every task of the plan should run in order.": {
			expIDs: []string{"first", "second"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			planPath := filepath.Join(t.TempDir(), "plan.yaml")
			require.NoError(t, os.WriteFile(planPath, []byte(plan), 0o644))

			dbPath := newTestDB(t)
			stdout, stderr, err := inttn.RunPlan(ctx, config, dbPath, planPath, test.args...)
			require.NoError(t, err, "stderr: %s", stderr)

			var got []completionOutput
			require.NoError(t, json.Unmarshal(stdout, &got))
			gotIDs := []string{}
			for _, c := range got {
				gotIDs = append(gotIDs, c.TaskID)
				assert.Equal(t, "succeeded", c.Status)
			}
			assert.Equal(t, test.expIDs, gotIDs)

			// History is most recent first.
			stdout, stderr, err = inttn.RunHistory(ctx, config, dbPath, "--limit", "1")
			require.NoError(t, err, "stderr: %s", stderr)
			var records []recordOutput
			require.NoError(t, json.Unmarshal(stdout, &records))
			require.Len(t, records, 1)
			assert.Equal(t, "second", records[0].Completion.TaskID)
		})
	}
}
