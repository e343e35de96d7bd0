package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func isolateGlobal(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "pyopencode")
}

func TestLoadEmpty(t *testing.T) {
	isolateGlobal(t)
	cwd := t.TempDir()

	bundle := Load(cwd, nil)
	if len(bundle.Docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(bundle.Docs))
	}
	if bundle.Combined != "" {
		t.Fatalf("expected empty combined text, got %q", bundle.Combined)
	}
}

func TestLoadFirstHitPerScope(t *testing.T) {
	globalDir := isolateGlobal(t)
	cwd := t.TempDir()

	writeFile(t, filepath.Join(globalDir, "AGENTS.md"), "global agents")
	writeFile(t, filepath.Join(globalDir, "RULES.md"), "global rules")
	writeFile(t, filepath.Join(cwd, "RULES.md"), "project rules")
	writeFile(t, filepath.Join(cwd, ".opencode", "AGENTS.md"), "nested agents")

	bundle := Load(cwd, nil)
	if len(bundle.Docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(bundle.Docs))
	}
	if bundle.Docs[0].Scope != "global" || bundle.Docs[0].Content != "global agents" {
		t.Fatalf("global doc = %+v", bundle.Docs[0])
	}
	if bundle.Docs[1].Scope != "project" || bundle.Docs[1].Content != "project rules" {
		t.Fatalf("project doc = %+v", bundle.Docs[1])
	}
}

func TestLoadProjectFallsBackToOpencodeDir(t *testing.T) {
	isolateGlobal(t)
	cwd := t.TempDir()

	writeFile(t, filepath.Join(cwd, ".opencode", "RULES.md"), "hidden rules")

	bundle := Load(cwd, nil)
	if len(bundle.Docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(bundle.Docs))
	}
	want := filepath.Join(cwd, ".opencode", "RULES.md")
	if bundle.Docs[0].Path != want {
		t.Fatalf("path = %q, want %q", bundle.Docs[0].Path, want)
	}
}

func TestLoadExtraFilesAllIncluded(t *testing.T) {
	isolateGlobal(t)
	cwd := t.TempDir()

	a := filepath.Join(cwd, "extra-a.md")
	b := filepath.Join(cwd, "extra-b.md")
	writeFile(t, a, "alpha")
	writeFile(t, b, "beta")
	missing := filepath.Join(cwd, "gone.md")

	bundle := Load(cwd, []string{a, missing, b})
	if len(bundle.Docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(bundle.Docs))
	}
	for _, d := range bundle.Docs {
		if d.Scope != "extra" {
			t.Fatalf("scope = %q, want extra", d.Scope)
		}
	}
	if bundle.Docs[0].Content != "alpha" || bundle.Docs[1].Content != "beta" {
		t.Fatalf("extra order wrong: %+v", bundle.Docs)
	}
}

func TestCombinedFormat(t *testing.T) {
	isolateGlobal(t)
	cwd := t.TempDir()

	path := filepath.Join(cwd, "AGENTS.md")
	writeFile(t, path, "  be kind to the build  \n")

	bundle := Load(cwd, nil)
	header := "[project] " + path
	want := header + "\n" + strings.Repeat("-", len(header)) + "\nbe kind to the build"
	if bundle.Combined != want {
		t.Fatalf("combined = %q, want %q", bundle.Combined, want)
	}
}

func TestCombinedSeparatesDocsWithBlankLine(t *testing.T) {
	isolateGlobal(t)
	cwd := t.TempDir()

	writeFile(t, filepath.Join(cwd, "AGENTS.md"), "first")
	extra := filepath.Join(cwd, "more.md")
	writeFile(t, extra, "second")

	bundle := Load(cwd, []string{extra})
	if got := strings.Count(bundle.Combined, "\n\n"); got != 1 {
		t.Fatalf("expected one blank separator, got %d in %q", got, bundle.Combined)
	}
	if !strings.Contains(bundle.Combined, "[extra] "+extra) {
		t.Fatalf("missing extra header in %q", bundle.Combined)
	}
}
