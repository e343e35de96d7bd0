// Package main provides the CLI entry point for pyopencode, a local
// terminal-driven coding agent.
//
// pyopencode connects a project directory to an OpenAI- or
// Anthropic-compatible LLM endpoint and lets the model work on the
// project through permissioned tools: file inspection and editing,
// shell commands, web fetch and todo tracking, plus any tools exposed
// by configured MCP servers.
//
// # Basic Usage
//
// Run a single prompt:
//
//	pyopencode run --provider deepseek -p "explain cmd/pyopencode/main.go"
//
// Start an interactive session:
//
//	pyopencode repl --provider deepseek
//
// Inspect a recorded session:
//
//	pyopencode replay --session a1b2c3d4e5f6
//	pyopencode stats --session a1b2c3d4e5f6
//
// # Configuration
//
// Providers are declared in pyopencode.yaml (see --config); behavior
// such as permissions, agents, commands and MCP servers comes from
// pyopencode.json files resolved global < project < --behavior-config.
// A .env file in the working directory is loaded at startup, so API
// keys referenced as ${VAR} placeholders in the YAML can live there.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

var logLevel string

func main() {
	// API keys and base URLs may live in a project .env file.
	_ = godotenv.Load()

	configureLogging("info")

	rootCmd := buildRootCmd()

	// Cancel outstanding LLM calls and tool executions on Ctrl-C.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pyopencode",
		Short: "pyopencode - local modular coding agent",
		Long: `pyopencode runs an LLM-driven agent loop against a local project.

The model works through permissioned tools (read, write, edit, glob, grep,
ls, bash, webfetch, todo, ...) plus any tools exposed by configured MCP
servers. Every session is persisted as JSONL and can be replayed, re-executed
and summarized offline.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildReplCmd(),
		buildCmdCmd(),
		buildContinueRunCmd(),
		buildReplayCmd(),
		buildReplayExecCmd(),
		buildEventsCmd(),
		buildStatsCmd(),
		buildCommandsCmd(),
		buildMcpCmd(),
		buildSchemaCmd(),
	)

	return rootCmd
}

// configureLogging installs a JSON slog handler on stderr so structured
// logs never interleave with agent output on stdout.
func configureLogging(level string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
