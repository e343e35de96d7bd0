package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

const patchTimeout = 120 * time.Second

// PatchTool applies a unified diff to the working directory, preferring
// git apply and falling back to the system patch command.
type PatchTool struct{}

func (t *PatchTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "patch",
		Description: "Apply a unified diff patch to the working directory. Uses git apply if available, else system patch.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"diff": map[string]any{
					"type":        "string",
					"description": "Unified diff text.",
				},
			},
			"required": []string{"diff"},
		}),
		Permission: "edit",
	}
}

func (t *PatchTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	var input struct {
		Diff string `json:"diff"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}

	tmp, err := os.CreateTemp("", "*.patch")
	if err != nil {
		return tools.Errorf("create patch file: %v", err)
	}
	patchPath := tmp.Name()
	defer os.Remove(patchPath)
	if _, err := tmp.WriteString(input.Diff); err != nil {
		tmp.Close()
		return tools.Errorf("write patch file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return tools.Errorf("write patch file: %v", err)
	}

	gitRC := "n/a"
	gitStderr := ""
	if git, err := exec.LookPath("git"); err == nil {
		res, runErr := tools.RunCommand(ctx, tctx.Cwd, patchTimeout, git, "apply", "--whitespace=nowarn", patchPath)
		if runErr == nil && res.Code == 0 {
			return tools.Text("Patch applied with git apply.")
		}
		gitRC = fmt.Sprintf("%d", res.Code)
		gitStderr = res.Stderr
		if runErr != nil && gitStderr == "" {
			gitStderr = runErr.Error()
		}
	}

	patchBin, err := exec.LookPath("patch")
	if err != nil {
		return tools.Errorf("No patch tool available (need git or patch).")
	}
	res, runErr := tools.RunCommand(ctx, tctx.Cwd, patchTimeout, patchBin, "-p0", "-i", patchPath)
	if runErr == nil && res.Code == 0 {
		return tools.Text("Patch applied with patch.")
	}
	patchStderr := res.Stderr
	if runErr != nil && patchStderr == "" {
		patchStderr = runErr.Error()
	}
	return tools.Errorf("Failed to apply patch.\n(git) rc=%s stderr=%s\n(patch) rc=%d stderr=%s",
		gitRC, gitStderr, res.Code, patchStderr)
}
