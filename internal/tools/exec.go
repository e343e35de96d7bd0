package tools

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// CmdResult carries the outcome of a finished subprocess.
type CmdResult struct {
	Code   int
	Stdout string
	Stderr string
}

// RunCommand executes argv in cwd with a timeout, capturing stdout and
// stderr. A non-zero exit is not an error; the error return covers
// timeouts and processes that failed to start.
func RunCommand(ctx context.Context, cwd string, timeout time.Duration, argv ...string) (CmdResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CmdResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		res.Code = -1
		return res, ctxErr
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.Code = exitErr.ExitCode()
		return res, nil
	}
	res.Code = -1
	return res, err
}
