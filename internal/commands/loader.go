package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waysongjiang/pyopencode/internal/workspace"
)

const frontMatterDelimiter = "---"

// projectDirs returns the project-level command directories, lowest
// priority first.
func projectDirs(cwd string) []string {
	return []string{
		filepath.Join(cwd, ".pyopencode", "commands"),
		filepath.Join(cwd, ".opencode", "commands"),
		filepath.Join(cwd, "commands"),
	}
}

func globalDirs() []string {
	dir, err := workspace.ConfigDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(dir, "commands")}
}

// Discover collects command templates. Merge order: global config dir <
// project dirs < inline behavior-config entries; later sources override
// earlier ones by name.
func Discover(cwd string, inline map[string]Spec) map[string]Spec {
	out := map[string]Spec{}

	for _, dir := range append(globalDirs(), projectDirs(cwd)...) {
		for _, path := range commandFiles(dir) {
			if spec, ok := loadFile(path); ok {
				out[spec.Name] = spec
			}
		}
	}

	for name, spec := range inline {
		spec.Name = name
		out[name] = spec
	}
	return out
}

// commandFiles lists *.md then *.txt in dir, each group sorted.
func commandFiles(dir string) []string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	var out []string
	for _, pattern := range []string{"*.md", "*.txt"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out
}

func loadFile(path string) (Spec, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, false
	}
	meta, body := splitFrontMatter(string(data))

	spec := meta
	spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	spec.Prompt = strings.TrimSpace(body)
	spec.SourcePath = path
	return spec, true
}

// splitFrontMatter separates an optional --- delimited YAML header from
// the body. Files without a header, or with one that does not decode,
// keep an empty Spec; a present-but-broken header is still stripped.
func splitFrontMatter(text string) (Spec, string) {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != frontMatterDelimiter {
		return Spec{}, text
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != frontMatterDelimiter {
			continue
		}
		var meta Spec
		header := strings.Join(lines[1:i], "\n")
		if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
			meta = Spec{}
		}
		return meta, strings.Join(lines[i+1:], "\n")
	}
	return Spec{}, text
}
