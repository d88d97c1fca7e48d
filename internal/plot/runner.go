package plot

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner abstracts process execution so the builder can be exercised without
// the real plotting tool installed.
type Runner interface {
	// LookPath resolves name to an executable path.
	LookPath(name string) (string, error)
	// Run executes path with args and returns the captured output streams.
	Run(ctx context.Context, path string, args []string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (ExecRunner) Run(ctx context.Context, path string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
