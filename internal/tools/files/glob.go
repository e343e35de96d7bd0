package files

import (
	"context"
	"encoding/json"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// GlobTool finds files matching a glob pattern. A bare ** segment
// matches any number of directories, like shell globstar.
type GlobTool struct{}

func (t *GlobTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "glob",
		Description: "Find files matching a glob pattern (relative to cwd).",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern, e.g. 'src/**/*.py'.",
				},
				"max_results": map[string]any{
					"type":    "integer",
					"default": 200,
				},
			},
			"required": []string{"pattern"},
		}),
		Permission: "read",
	}
}

func (t *GlobTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Pattern    string `json:"pattern"`
		MaxResults *int   `json:"max_results"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return tools.Errorf("pattern is required")
	}
	maxResults := 200
	if input.MaxResults != nil && *input.MaxResults > 0 {
		maxResults = *input.MaxResults
	}

	resolver := Resolver{Root: tctx.Cwd}
	root, err := resolver.Resolve(".")
	if err != nil {
		return tools.Errorf("%v", err)
	}

	pattern := filepath.ToSlash(input.Pattern)
	if filepath.IsAbs(input.Pattern) {
		rel, err := filepath.Rel(root, input.Pattern)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			return tools.Text("(no matches)")
		}
		pattern = filepath.ToSlash(rel)
	}
	segments := strings.Split(path.Clean(pattern), "/")

	var matches []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || p == root {
			return nil
		}
		if len(matches) >= maxResults {
			return fs.SkipAll
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if matchSegments(segments, parts) {
			matches = append(matches, rel)
		}
		return nil
	})

	if len(matches) == 0 {
		return tools.Text("(no matches)")
	}
	return tools.Text(strings.Join(matches, "\n"))
}

// matchSegments matches path components against pattern components.
// "**" consumes zero or more components. Wildcards never match a name
// that starts with a dot; only a pattern that itself starts with a dot
// can.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], parts) {
			return true
		}
		for i := range parts {
			if strings.HasPrefix(parts[i], ".") {
				return false
			}
			if matchSegments(pattern[1:], parts[i+1:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if strings.HasPrefix(parts[0], ".") && !strings.HasPrefix(pattern[0], ".") {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
