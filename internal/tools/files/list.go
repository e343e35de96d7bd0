package files

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// ListTool enumerates directory entries, optionally recursively.
type ListTool struct{}

func (t *ListTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "list",
		Description: "List files/directories under a path (relative to cwd).",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory path relative to cwd. Default '.'",
				},
				"max_entries": map[string]any{
					"type":        "integer",
					"description": "Max entries to return",
					"default":     200,
				},
				"recursive": map[string]any{
					"type":        "boolean",
					"description": "If true, list recursively",
					"default":     false,
				},
			},
		}),
		Permission: "read",
	}
}

func (t *ListTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Path       string `json:"path"`
		Recursive  bool   `json:"recursive"`
		MaxEntries *int   `json:"max_entries"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	path := input.Path
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	maxEntries := 200
	if input.MaxEntries != nil && *input.MaxEntries > 0 {
		maxEntries = *input.MaxEntries
	}

	resolver := Resolver{Root: tctx.Cwd}
	resolved, err := resolver.Resolve(path)
	if err != nil {
		return tools.Errorf("%v", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return tools.Errorf("Path not found: %s", path)
	}
	if !info.IsDir() {
		return tools.Errorf("Not a directory: %s", path)
	}

	var entries []string
	if input.Recursive {
		entries = listRecursive(resolver, resolved, maxEntries)
	} else {
		entries, err = listShallow(resolver, resolved, maxEntries)
		if err != nil {
			return tools.Errorf("%v", err)
		}
	}
	if len(entries) == 0 {
		return tools.Text("(empty)")
	}
	return tools.Text(strings.Join(entries, "\n"))
}

// listShallow lists one level: directories first, names compared
// case-insensitively, paths rendered relative to the working directory.
func listShallow(resolver Resolver, dir string, maxEntries int) ([]string, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(children, func(i, j int) bool {
		di, dj := children[i].IsDir(), children[j].IsDir()
		if di != dj {
			return di
		}
		return strings.ToLower(children[i].Name()) < strings.ToLower(children[j].Name())
	})

	var out []string
	for _, child := range children {
		if len(out) >= maxEntries {
			break
		}
		out = append(out, resolver.Rel(filepath.Join(dir, child.Name())))
	}
	return out, nil
}

func listRecursive(resolver Resolver, dir string, maxEntries int) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == dir {
			return nil
		}
		if len(out) >= maxEntries {
			return fs.SkipAll
		}
		out = append(out, resolver.Rel(p))
		return nil
	})
	return out
}
