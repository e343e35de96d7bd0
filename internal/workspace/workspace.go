// Package workspace resolves the per-user directories that hold session
// transcripts, event logs and todo lists, plus the working directory a
// run operates in.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "pyopencode"

// DataDir returns the per-user data directory for pyopencode state.
// XDG_DATA_HOME wins when set; otherwise the platform default is used.
func DataDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); v != "" {
		return filepath.Join(v, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return filepath.Join(v, appName), nil
		}
		return filepath.Join(home, "AppData", "Local", appName), nil
	default:
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// ConfigDir returns the per-user configuration directory for pyopencode.
func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); v != "" {
		return filepath.Join(v, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("APPDATA")); v != "" {
			return filepath.Join(v, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

func dataSubdir(name string) (string, error) {
	root, err := DataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s directory: %w", name, err)
	}
	return dir, nil
}

// SessionsDir returns the directory holding session transcript files,
// creating it when missing.
func SessionsDir() (string, error) { return dataSubdir("sessions") }

// EventsDir returns the directory holding event log files, creating it
// when missing.
func EventsDir() (string, error) { return dataSubdir("events") }

// TodosDir returns the directory holding per-session todo lists,
// creating it when missing.
func TodosDir() (string, error) { return dataSubdir("todos") }

// ResolveCwd normalizes the requested working directory: expands a
// leading ~, makes the path absolute, and creates the directory when it
// does not exist yet. Pointing at a regular file is an error.
func ResolveCwd(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve current directory: %w", err)
		}
		return wd, nil
	}
	if p == "~" || strings.HasPrefix(p, "~"+string(os.PathSeparator)) || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cwd: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("--cwd must be a directory, got file: %s", abs)
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", fmt.Errorf("create cwd: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("stat cwd: %w", err)
	}
	return abs, nil
}
