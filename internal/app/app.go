// Package app wires one runnable context from the CLI flags: provider,
// tools, permissions, agent profile, rules, MCP servers, session and
// event stores. Commands build a Context once and hand Runners out of
// it.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/agent"
	"github.com/waysongjiang/pyopencode/internal/agents"
	"github.com/waysongjiang/pyopencode/internal/config"
	"github.com/waysongjiang/pyopencode/internal/events"
	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/internal/mcp"
	"github.com/waysongjiang/pyopencode/internal/permissions"
	"github.com/waysongjiang/pyopencode/internal/rules"
	"github.com/waysongjiang/pyopencode/internal/sessions"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/internal/tools/builtin"
)

// Options carries the CLI flags that shape a context.
type Options struct {
	Cwd        string
	SessionID  string
	Provider   string // name in the provider registry YAML
	ConfigPath string // provider registry path, default pyopencode.yaml

	// Per-invocation provider overrides.
	Model   string
	BaseURL string
	APIKey  string

	AgentName      string
	BehaviorConfig string // explicit behavior JSON path

	AutoApprove bool
	DenyBash    bool
	AllowEdit   bool

	Trace  bool
	Stream bool

	// SkipMCP leaves configured MCP servers unstarted, for commands that
	// never execute tools.
	SkipMCP bool
}

// Context is the wired application state for one CLI invocation.
type Context struct {
	Cwd       string
	Provider  llm.Provider
	Settings  llm.Settings
	Registry  *llm.Registry
	Tools     *tools.Registry
	Gate      *permissions.Gate
	Session   *sessions.Store
	Events    *events.Store
	Agents    *agents.Registry
	Agent     agents.Profile
	Behavior  config.Behavior
	RulesText string
	MCP       []*mcp.Client
	Trace     bool
	Stream    bool

	opts Options
}

// New builds a Context. Wiring order matters: the agent profile feeds
// permission overrides, which CLI flags may then override again.
func New(ctx context.Context, opts Options) (*Context, error) {
	settings, registry, err := resolveProvider(opts)
	if err != nil {
		return nil, err
	}
	provider := llm.New(settings)

	reg := tools.NewRegistry()
	if err := builtin.Register(reg); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}

	behavior := config.Load(opts.Cwd, opts.BehaviorConfig)

	agentRegistry := agents.NewRegistry(&behavior)
	agentName := opts.AgentName
	if agentName == "" {
		agentName = behavior.DefaultAgent
	}
	profile := agentRegistry.Get(agentName)

	bundle := rules.Load(opts.Cwd, behavior.RulesFiles)

	var clients []*mcp.Client
	if servers := behavior.MCPServerList(); len(servers) > 0 && !opts.SkipMCP {
		clients = mcp.RegisterServers(ctx, reg, servers)
	}

	permCfg := buildPermissions(opts, behavior, profile)

	session, err := sessions.Open(opts.SessionID)
	if err != nil {
		closeClients(clients)
		return nil, err
	}
	eventStore, err := events.Open(session.SessionID())
	if err != nil {
		closeClients(clients)
		return nil, err
	}

	return &Context{
		Cwd:       opts.Cwd,
		Provider:  provider,
		Settings:  settings,
		Registry:  registry,
		Tools:     reg,
		Gate:      permissions.NewGate(permCfg, opts.AutoApprove),
		Session:   session,
		Events:    eventStore,
		Agents:    agentRegistry,
		Agent:     profile,
		Behavior:  behavior,
		RulesText: bundle.Combined,
		MCP:       clients,
		Trace:     opts.Trace,
		Stream:    opts.Stream,
		opts:      opts,
	}, nil
}

// buildPermissions layers the permission sources: defaults, behavior
// rules, agent overrides, then CLI flags. AutoApprove is applied last so
// --yes wins over --no-bash.
func buildPermissions(opts Options, behavior config.Behavior, profile agents.Profile) *permissions.Config {
	cfg := permissions.NewConfig()
	cfg.ApplyBehavior(behavior.Permissions)
	cfg.ApplyAgentOverrides(profile.PermissionOverrides)
	if opts.DenyBash {
		cfg.Set("bash", permissions.DecisionDeny)
	}
	if opts.AllowEdit {
		cfg.Set("edit", permissions.DecisionAllow)
	}
	if opts.AutoApprove {
		// Unattended runs: nothing left to ask about.
		cfg.Set("edit", permissions.DecisionAllow)
		cfg.Set("bash", permissions.DecisionAllow)
	}
	return cfg
}

// Reload re-resolves the behavior config, agent profile, permission
// rules and rules text from disk. The provider, session, event store and
// MCP clients stay as they are; the REPL calls this between turns after
// the config watcher reports a change.
func (c *Context) Reload() {
	behavior := config.Load(c.opts.Cwd, c.opts.BehaviorConfig)

	agentRegistry := agents.NewRegistry(&behavior)
	agentName := c.opts.AgentName
	if agentName == "" {
		agentName = behavior.DefaultAgent
	}
	profile := agentRegistry.Get(agentName)

	bundle := rules.Load(c.opts.Cwd, behavior.RulesFiles)

	c.Gate = permissions.NewGate(buildPermissions(c.opts, behavior, profile), c.opts.AutoApprove)
	c.Agents = agentRegistry
	c.Agent = profile
	c.Behavior = behavior
	c.RulesText = bundle.Combined
}

// WatchPaths lists the files whose changes should trigger a Reload: the
// behavior config candidates, the project rules candidates and any extra
// rules files the current config names.
func (c *Context) WatchPaths() []string {
	var paths []string
	if strings.TrimSpace(c.opts.BehaviorConfig) != "" {
		paths = append(paths, c.opts.BehaviorConfig)
	}
	paths = append(paths, config.ProjectCandidates(c.Cwd)...)
	paths = append(paths, rules.ProjectCandidates(c.Cwd)...)
	paths = append(paths, c.Behavior.RulesFiles...)
	return paths
}

// Runner builds the turn runner for this context. Trace and stream
// output goes to out.
func (c *Context) Runner(out io.Writer) *agent.Runner {
	return &agent.Runner{
		Cwd:              c.Cwd,
		Provider:         c.Provider,
		Tools:            c.Tools,
		Gate:             c.Gate,
		Session:          c.Session,
		Events:           c.Events,
		Agent:            c.Agent,
		RulesText:        c.RulesText,
		IncludeReasoning: c.Settings.IncludeReasoning,
		ForceReasoning:   c.Settings.ForceReasoning,
		Trace:            c.Trace,
		Stream:           c.Stream,
		Out:              out,
	}
}

// Close tears down background resources, currently the MCP server
// processes. Best-effort.
func (c *Context) Close() {
	closeClients(c.MCP)
	c.MCP = nil
}

func closeClients(clients []*mcp.Client) {
	for _, client := range clients {
		client.Close()
	}
}

// resolveProvider loads the registry YAML and applies per-invocation
// overrides for model, base URL and API key.
func resolveProvider(opts Options) (llm.Settings, *llm.Registry, error) {
	if strings.TrimSpace(opts.Provider) == "" {
		return llm.Settings{}, nil, fmt.Errorf("missing --provider (must match a name in %s)", providerConfigPath(opts))
	}
	registry, err := llm.LoadRegistry(providerConfigPath(opts))
	if err != nil {
		return llm.Settings{}, nil, err
	}
	settings, err := registry.Get(opts.Provider)
	if err != nil {
		return llm.Settings{}, nil, err
	}
	if opts.Model != "" {
		settings.Model = opts.Model
	}
	if opts.BaseURL != "" {
		settings.BaseURL = opts.BaseURL
	}
	if opts.APIKey != "" {
		settings.APIKey = opts.APIKey
	}
	return settings, registry, nil
}

func providerConfigPath(opts Options) string {
	if strings.TrimSpace(opts.ConfigPath) != "" {
		return opts.ConfigPath
	}
	return "pyopencode.yaml"
}
