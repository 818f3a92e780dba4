package toolchain

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes the external translate+compile+link toolchain. The
// production implementation shells out to the Go toolchain; tests substitute
// fakes so no build runs.
type Runner interface {
	// Run executes bin with args in dir and returns the combined
	// stdout/stderr diagnostic text. A nonzero exit surfaces as err with
	// the diagnostics still populated.
	Run(ctx context.Context, dir, bin string, args ...string) (string, error)
}

// ExecRunner runs the toolchain as a subprocess.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}
