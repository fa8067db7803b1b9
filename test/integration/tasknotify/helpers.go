package tasknotify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/tasknotify/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	// go test changes the CWD to the test package directory, relative paths would be wrong.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("TASKNOTIFY_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("tasknotify binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "TASKNOTIFY_INTEGRATION"
		envBinary     = "TASKNOTIFY_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RunCmd runs a tasknotify command against a specific db path with logging disabled.
func RunCmd(ctx context.Context, config Config, dbPath string, args ...string) (stdout, stderr []byte, err error) {
	cmd := testutils.Cmd{
		Binary: config.Binary,
		Args:   append([]string{"--no-log", "--db-path", dbPath}, args...),
		NoLog:  true,
	}
	return cmd.Run(ctx)
}

// RunTask runs a single task in JSON format without the progress bar.
func RunTask(ctx context.Context, config Config, dbPath string, args ...string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, dbPath, append([]string{"run", "--no-progress", "--format", "json"}, args...)...)
}

// RunPlan runs a plan file in JSON format without the progress bar.
func RunPlan(ctx context.Context, config Config, dbPath, planPath string, args ...string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, dbPath, append([]string{"plan", planPath, "--no-progress", "--format", "json"}, args...)...)
}

// RunHistory lists the history in JSON format.
func RunHistory(ctx context.Context, config Config, dbPath string, args ...string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, dbPath, append([]string{"history", "--format", "json"}, args...)...)
}
