package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Cmd is a single invocation of the tasknotify binary.
type Cmd struct {
	Binary string
	Args   []string
	// Env is appended to the current process environment, so it overrides it.
	Env   []string
	NoLog bool
}

// Run executes the command and returns what it wrote to stdout and stderr.
func (c Cmd) Run(ctx context.Context) (stdout, stderr []byte, err error) {
	env := append(os.Environ(), c.Env...)
	if c.NoLog {
		env = append(env, "TASKNOTIFY_NO_LOG=true")
	}

	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Env = env
	cmd.Stdout = &outData
	cmd.Stderr = &errData

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}
