// Package files implements the filesystem tools: list, glob, grep,
// read, write, edit, multiedit, patch and skill. Every path a tool
// touches resolves through Resolver so nothing escapes the working
// directory.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape marks paths that resolve outside the working directory.
var ErrPathEscape = errors.New("path escapes working directory")

// Resolver resolves and validates paths against a working directory.
type Resolver struct {
	Root string
}

// Resolve returns the absolute, cleaned location of path under the
// root. An empty path resolves to the root itself.
func (r Resolver) Resolve(path string) (string, error) {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}

	clean := strings.TrimSpace(path)
	var target string
	switch {
	case clean == "":
		target = rootAbs
	case filepath.IsAbs(clean):
		target = filepath.Clean(clean)
	default:
		target = filepath.Join(rootAbs, clean)
	}

	rel, err := filepath.Rel(rootAbs, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}
	return target, nil
}

// Rel renders an absolute path relative to the root for display.
// Paths it cannot relativize come back unchanged.
func (r Resolver) Rel(abs string) string {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return abs
	}
	return rel
}

// splitLines splits text for the line-range tools: a trailing newline
// does not open a final empty line, and a CR before the newline
// belongs to the separator.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
