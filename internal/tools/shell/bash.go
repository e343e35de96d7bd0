// Package shell implements the bash tool: arbitrary shell commands run
// in the working directory with captured output and exit codes.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

const defaultTimeout = 120

// BashTool runs a command through a real shell so built-ins, pipes and
// env expansion work.
type BashTool struct{}

func (t *BashTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "bash",
		Description: "Run a shell command in the working directory. Returns stdout/stderr and exit code.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Shell command to run.",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"default":     120,
					"description": "Timeout seconds.",
				},
			},
			"required": []string{"command"},
		}),
		Permission: "bash",
	}
}

func (t *BashTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	var input struct {
		Command string `json:"command"`
		Timeout *int   `json:"timeout"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	cmd := strings.TrimSpace(input.Command)
	if cmd == "" {
		return tools.Errorf("Empty command.")
	}
	timeout := defaultTimeout
	if input.Timeout != nil && *input.Timeout > 0 {
		timeout = *input.Timeout
	}

	argv := shellArgv(cmd)
	res, err := tools.RunCommand(ctx, tctx.Cwd, time.Duration(timeout)*time.Second, argv...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tools.Errorf("Command timed out after %d seconds.", timeout)
		}
		return tools.Errorf("run command: %v", err)
	}

	var out strings.Builder
	if res.Stdout != "" {
		fmt.Fprintf(&out, "STDOUT:\n%s\n", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(&out, "STDERR:\n%s\n", res.Stderr)
	}
	fmt.Fprintf(&out, "EXIT_CODE: %d", res.Code)
	return tools.Result{Content: out.String(), IsError: res.Code != 0}
}

// shellArgv picks a real shell so built-ins like cd, pipes and && work.
func shellArgv(cmd string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd.exe", "/c", cmd}
	}
	shell := "sh"
	if _, err := exec.LookPath("bash"); err == nil {
		shell = "bash"
	}
	return []string{shell, "-lc", cmd}
}
