package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/waysongjiang/pyopencode/internal/permissions"
)

const providersYAML = `providers:
  local:
    PYOPENCODE_BASE_URL: http://localhost:9999/v1
    PYOPENCODE_MODEL: test-model
    PYOPENCODE_API_KEY: sk-test
    include_reasoning: true
  other:
    PYOPENCODE_BASE_URL: http://localhost:9998/v1
    PYOPENCODE_MODEL: other-model
    PYOPENCODE_API_KEY: sk-other
`

// testOptions isolates user directories and writes a provider registry,
// returning ready-to-use options rooted in a temp project.
func testOptions(t *testing.T) Options {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))

	cwd := t.TempDir()
	yamlPath := filepath.Join(cwd, "pyopencode.yaml")
	if err := os.WriteFile(yamlPath, []byte(providersYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return Options{
		Cwd:        cwd,
		Provider:   "local",
		ConfigPath: yamlPath,
	}
}

func TestNewWiresDefaults(t *testing.T) {
	opts := testOptions(t)
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	if ctx.Provider.Name() != "local" || ctx.Provider.Model() != "test-model" {
		t.Fatalf("provider = %s/%s", ctx.Provider.Name(), ctx.Provider.Model())
	}
	if got := len(ctx.Tools.Names()); got != 15 {
		t.Fatalf("builtin tools = %d", got)
	}
	if ctx.Agent.Name != "general" {
		t.Fatalf("agent = %q", ctx.Agent.Name)
	}
	if ctx.Session == nil || ctx.Session.SessionID() == "" {
		t.Fatal("session not opened")
	}
	if ctx.Events == nil || ctx.Events.SessionID() != ctx.Session.SessionID() {
		t.Fatal("event store not bound to session")
	}

	// Stock defaults: read allowed, bash asks.
	cfg := ctx.Gate.Config()
	if cfg.Decide("read", "read") != permissions.DecisionAllow {
		t.Fatal("read should default to allow")
	}
	if cfg.Decide("bash", "bash") != permissions.DecisionAsk {
		t.Fatal("bash should default to ask")
	}
}

func TestNewReusesSessionID(t *testing.T) {
	opts := testOptions(t)
	opts.SessionID = "abc123def456"
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	if ctx.Session.SessionID() != "abc123def456" {
		t.Fatalf("session id = %q", ctx.Session.SessionID())
	}
}

func TestNewAgentOverridesThenCLIFlags(t *testing.T) {
	opts := testOptions(t)
	opts.AgentName = "run" // profile allows bash
	opts.DenyBash = true   // CLI flag wins over the profile
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	if ctx.Agent.Name != "run" {
		t.Fatalf("agent = %q", ctx.Agent.Name)
	}
	cfg := ctx.Gate.Config()
	if cfg.Decide("bash", "bash") != permissions.DecisionDeny {
		t.Fatal("--no-bash should override the run profile")
	}
	if cfg.Decide("edit", "edit") != permissions.DecisionAllow {
		t.Fatal("run profile should allow edit")
	}
}

func TestNewAutoApproveOpensEditAndBash(t *testing.T) {
	opts := testOptions(t)
	opts.AutoApprove = true
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	cfg := ctx.Gate.Config()
	if cfg.Decide("edit", "edit") != permissions.DecisionAllow || cfg.Decide("bash", "bash") != permissions.DecisionAllow {
		t.Fatal("--yes should allow edit and bash")
	}
}

func TestNewBehaviorConfigSelectsDefaultAgent(t *testing.T) {
	opts := testOptions(t)
	behavior := `{"default_agent": "plan"}`
	if err := os.WriteFile(filepath.Join(opts.Cwd, ".pyopencode.json"), []byte(behavior), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	if ctx.Agent.Name != "plan" {
		t.Fatalf("agent = %q", ctx.Agent.Name)
	}
	if ctx.Gate.Config().Decide("bash", "bash") != permissions.DecisionDeny {
		t.Fatal("plan profile should deny bash")
	}
	if ctx.Behavior.LoadedFrom == "" {
		t.Fatal("behavior config path not recorded")
	}
}

func TestNewLoadsProjectRules(t *testing.T) {
	opts := testOptions(t)
	if err := os.WriteFile(filepath.Join(opts.Cwd, "AGENTS.md"), []byte("Always run gofmt."), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	if !strings.Contains(ctx.RulesText, "[project]") || !strings.Contains(ctx.RulesText, "Always run gofmt.") {
		t.Fatalf("rules text = %q", ctx.RulesText)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	opts := testOptions(t)
	opts.Provider = "nope"
	if _, err := New(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewMissingProviderName(t *testing.T) {
	opts := testOptions(t)
	opts.Provider = ""
	if _, err := New(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "missing --provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestResolveProviderAppliesOverrides(t *testing.T) {
	opts := testOptions(t)
	opts.Model = "forced-model"
	opts.BaseURL = "http://forced:1/v1"
	opts.APIKey = "sk-forced"

	settings, registry, err := resolveProvider(opts)
	if err != nil {
		t.Fatal(err)
	}
	if settings.Model != "forced-model" || settings.BaseURL != "http://forced:1/v1" || settings.APIKey != "sk-forced" {
		t.Fatalf("settings = %+v", settings)
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "local" || names[1] != "other" {
		t.Fatalf("registry names = %v", names)
	}
}

func TestRunnerCarriesContextState(t *testing.T) {
	opts := testOptions(t)
	opts.Trace = true
	opts.Stream = true
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	r := ctx.Runner(os.Stdout)
	if r.Cwd != opts.Cwd || r.Session != ctx.Session || r.Events != ctx.Events {
		t.Fatal("runner not wired to context stores")
	}
	if !r.IncludeReasoning {
		t.Fatal("include_reasoning from provider settings not carried")
	}
	if r.ForceReasoning {
		t.Fatal("force_reasoning should be off for this provider")
	}
	if !r.Trace || !r.Stream {
		t.Fatal("trace/stream flags not carried")
	}
	if r.Agent.Name != "general" {
		t.Fatalf("runner agent = %q", r.Agent.Name)
	}
}

func TestSkipMCPLeavesServersUnstarted(t *testing.T) {
	opts := testOptions(t)
	behavior := `{"mcp_servers": {"fake": {"command": ["definitely-not-a-real-binary"]}}}`
	if err := os.WriteFile(filepath.Join(opts.Cwd, ".pyopencode.json"), []byte(behavior), 0o644); err != nil {
		t.Fatal(err)
	}
	opts.SkipMCP = true
	ctx, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	if len(ctx.MCP) != 0 {
		t.Fatalf("MCP clients = %d", len(ctx.MCP))
	}
	if len(ctx.Behavior.MCPServerList()) != 1 {
		t.Fatal("behavior config lost the server entry")
	}
}
