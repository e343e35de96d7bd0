package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/waysongjiang/pyopencode/internal/agent"
	"github.com/waysongjiang/pyopencode/internal/app"
	"github.com/waysongjiang/pyopencode/internal/commands"
	"github.com/waysongjiang/pyopencode/internal/config"
	"github.com/waysongjiang/pyopencode/internal/events"
	"github.com/waysongjiang/pyopencode/internal/mcp"
	"github.com/waysongjiang/pyopencode/internal/sessions"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/internal/workspace"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// runFlags are the flags shared by every command that wires a full
// application context.
type runFlags struct {
	provider       string
	configPath     string
	cwd            string
	session        string
	yes            bool
	noBash         bool
	allowEdit      bool
	agentName      string
	behaviorConfig string
	trace          bool
	stream         bool
	resume         bool
}

// install registers the shared flags. The agent default and trace
// default vary per command.
func (f *runFlags) install(cmd *cobra.Command, agentDefault string, traceDefault bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.provider, "provider", "", "Provider name registered in the config YAML (e.g. deepseek/kimi/openai/qwen)")
	flags.StringVar(&f.configPath, "config", "pyopencode.yaml", "Provider registry YAML path")
	flags.StringVar(&f.cwd, "cwd", "", "Working directory (project root), default current directory")
	flags.StringVar(&f.session, "session", "", "Session id to append to (default creates new)")
	flags.BoolVar(&f.yes, "yes", false, "Auto-approve tools that require confirmation (edit/bash)")
	flags.BoolVar(&f.noBash, "no-bash", false, "Deny the bash tool")
	flags.BoolVar(&f.allowEdit, "allow-edit", false, "Auto-allow edit tools (write/edit/patch)")
	flags.StringVar(&f.agentName, "agent", agentDefault, "Agent profile (general/plan/explore/build/run or custom)")
	flags.StringVar(&f.behaviorConfig, "behavior-config", "", "Optional behavior JSON (pyopencode.json) path")
	flags.BoolVar(&f.trace, "trace", traceDefault, "Print LLM input/output and tool traces")
	flags.BoolVar(&f.stream, "stream", false, "Stream tokens while generating")
	_ = cmd.MarkFlagRequired("provider")
}

func (f *runFlags) installResume(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.resume, "resume", true, "Resume pending tool calls before running")
}

// options converts the flags into app options. --yes implies
// --allow-edit, matching the confirmation semantics.
func (f *runFlags) options(cwd string) app.Options {
	return app.Options{
		Cwd:            cwd,
		SessionID:      f.session,
		Provider:       f.provider,
		ConfigPath:     f.configPath,
		AgentName:      f.agentName,
		BehaviorConfig: f.behaviorConfig,
		AutoApprove:    f.yes,
		DenyBash:       f.noBash,
		AllowEdit:      f.allowEdit || f.yes,
		Trace:          f.trace,
		Stream:         f.stream,
	}
}

// printBanner shows the resolved run parameters before the first turn.
func printBanner(out io.Writer, appCtx *app.Context) {
	fmt.Fprintln(out, "pyopencode")
	fmt.Fprintf(out, "  📁 cwd              %s\n", appCtx.Cwd)
	fmt.Fprintf(out, "  🆔 session          %s\n", appCtx.Session.SessionID())
	fmt.Fprintf(out, "  🔌 provider         %s\n", appCtx.Settings.Name)
	fmt.Fprintf(out, "  🧠 model            %s\n", appCtx.Settings.Model)
	fmt.Fprintf(out, "  🌐 base_url         %s\n", appCtx.Settings.BaseURL)
	fmt.Fprintf(out, "  🤖 agent            %s\n", appCtx.Agent.Name)
	fmt.Fprintf(out, "  ⚙️ behavior_config  %s\n", orNone(appCtx.Behavior.LoadedFrom))
	fmt.Fprintf(out, "  📦 known providers  %s\n", strings.Join(appCtx.Registry.Names(), ", "))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// buildRunCmd creates the "run" command: one prompt, one agent turn.
func buildRunCmd() *cobra.Command {
	var (
		f        runFlags
		prompt   string
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one prompt through the agent loop",
		Example: `  # Ask about the project
  pyopencode run --provider deepseek -p "what does internal/agent do?"

  # Unattended edit run
  pyopencode run --provider deepseek -p "fix the failing test" --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(f.cwd)
			if err != nil {
				return err
			}
			appCtx, err := app.New(cmd.Context(), f.options(cwd))
			if err != nil {
				return err
			}
			defer appCtx.Close()

			out := cmd.OutOrStdout()
			printBanner(out, appCtx)
			fmt.Fprintf(out, "\nYou: %s\n\n", prompt)

			answer, err := appCtx.Runner(out).Run(cmd.Context(), agent.Options{
				UserPrompt: prompt,
				MaxSteps:   maxSteps,
				Resume:     f.resume,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAssistant:\n\n%s\n", answer)
			return nil
		},
	}

	f.install(cmd, "general", true)
	f.installResume(cmd)
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "User prompt to run once")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 25, "Max tool/LLM iterations")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// buildReplCmd creates the "repl" command: an interactive loop over one
// session. Behavior config and rules are re-resolved between turns when
// the file watcher saw a change.
func buildReplCmd() *cobra.Command {
	var (
		f        runFlags
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive agent session",
		Long: `Start an interactive session. Each line is one agent turn.

Special inputs:
  exit, quit  leave the REPL
  /continue   run a turn without a new user message (finishes pending work)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(f.cwd)
			if err != nil {
				return err
			}
			appCtx, err := app.New(cmd.Context(), f.options(cwd))
			if err != nil {
				return err
			}
			defer appCtx.Close()

			out := cmd.OutOrStdout()
			printBanner(out, appCtx)

			watcher, err := config.NewWatcher(appCtx.WatchPaths()...)
			if err != nil {
				watcher = nil
			} else {
				defer watcher.Close()
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for {
				fmt.Fprint(out, "You: ")
				if !scanner.Scan() {
					break
				}
				user := strings.TrimSpace(scanner.Text())
				if user == "" {
					continue
				}
				if lower := strings.ToLower(user); lower == "exit" || lower == "quit" {
					break
				}

				if watcher != nil && watcher.Changed() {
					appCtx.Reload()
					fmt.Fprintln(out, "(behavior config reloaded)")
				}

				prompt := user
				if user == "/continue" {
					prompt = ""
				}
				answer, err := appCtx.Runner(out).Run(cmd.Context(), agent.Options{
					UserPrompt: prompt,
					MaxSteps:   maxSteps,
					Resume:     f.resume,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nAssistant:\n\n%s\n\n", answer)
			}
			return scanner.Err()
		},
	}

	f.install(cmd, "general", true)
	f.installResume(cmd)
	cmd.Flags().IntVar(&maxSteps, "max-steps", 100, "Max tool/LLM iterations per message")

	return cmd
}

// buildCmdCmd creates the "cmd" command: run a reusable command
// template discovered from commands/ directories or the behavior config.
func buildCmdCmd() *cobra.Command {
	var (
		f        runFlags
		maxSteps int
		rawArgs  []string
	)

	cmd := &cobra.Command{
		Use:   "cmd <name>",
		Short: "Run a reusable command template",
		Long: `Run a named command template.

Templates come from commands/ directories (.pyopencode/commands,
.opencode/commands, commands) and the behavior config. {{key}}
placeholders are filled from --arg key=value. A template may pin its
own agent, model and max-steps.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(f.cwd)
			if err != nil {
				return err
			}

			behavior := config.Load(cwd, f.behaviorConfig)
			spec, err := commands.Load(cwd, args[0], behavior.Commands)
			if err != nil {
				return err
			}
			prompt := spec.Render(parseTemplateArgs(rawArgs))

			opts := f.options(cwd)
			if opts.AgentName == "" {
				opts.AgentName = spec.Agent
			}
			if spec.Model != "" {
				opts.Model = spec.Model
			}
			appCtx, err := app.New(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer appCtx.Close()

			out := cmd.OutOrStdout()
			model := appCtx.Agent.Model
			if model == "" {
				model = appCtx.Settings.Model
			}
			fmt.Fprintf(out, "command: %s\n", spec.Name)
			fmt.Fprintf(out, "cwd: %s\n", appCtx.Cwd)
			fmt.Fprintf(out, "session: %s\n", appCtx.Session.SessionID())
			fmt.Fprintf(out, "provider: %s\n", appCtx.Settings.Name)
			fmt.Fprintf(out, "model: %s\n", model)
			fmt.Fprintf(out, "agent: %s\n", appCtx.Agent.Name)
			fmt.Fprintf(out, "behavior_config: %s\n", orNone(appCtx.Behavior.LoadedFrom))

			// The template may pin the model and step budget for this run.
			if spec.Model != "" {
				appCtx.Agent.Model = spec.Model
			}
			if spec.MaxSteps > 0 {
				appCtx.Agent.MaxSteps = spec.MaxSteps
			}
			chosenMaxSteps := maxSteps
			if spec.MaxSteps > 0 {
				chosenMaxSteps = spec.MaxSteps
			}

			answer, err := appCtx.Runner(out).Run(cmd.Context(), agent.Options{
				UserPrompt: prompt,
				MaxSteps:   chosenMaxSteps,
				Resume:     f.resume,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAssistant:\n\n%s\n", answer)
			return nil
		},
	}

	f.install(cmd, "", false)
	f.installResume(cmd)
	cmd.Flags().IntVar(&maxSteps, "max-steps", 50, "Max tool/LLM iterations")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "A", nil, "Template args as key=value; used in {{key}} placeholders")

	return cmd
}

// buildContinueRunCmd creates the "continue-run" command: pick up a
// session without a new user message. Useful after a crash that left
// tool calls unanswered.
func buildContinueRunCmd() *cobra.Command {
	var (
		f        runFlags
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "continue-run",
		Short: "Continue a session without a new user message",
		Long: `Continue a session: execute any tool calls a previous run persisted
but never answered, then let the agent loop carry on from there.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(f.cwd)
			if err != nil {
				return err
			}
			appCtx, err := app.New(cmd.Context(), f.options(cwd))
			if err != nil {
				return err
			}
			defer appCtx.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cwd: %s\n", appCtx.Cwd)
			fmt.Fprintf(out, "session: %s\n", appCtx.Session.SessionID())
			fmt.Fprintf(out, "provider: %s\n", appCtx.Settings.Name)
			fmt.Fprintf(out, "model: %s\n", appCtx.Settings.Model)
			fmt.Fprintf(out, "agent: %s\n", appCtx.Agent.Name)

			answer, err := appCtx.Runner(out).Run(cmd.Context(), agent.Options{
				MaxSteps: maxSteps,
				Resume:   true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAssistant:\n\n%s\n", answer)
			return nil
		},
	}

	f.install(cmd, "general", false)
	cmd.Flags().IntVar(&maxSteps, "max-steps", 50, "Max tool/LLM iterations")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// buildReplayCmd creates the "replay" command: print recent messages
// from a saved session.
func buildReplayCmd() *cobra.Command {
	var (
		sessionID  string
		tail       int
		showSystem bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print recent messages from a saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessions.Open(sessionID)
			if err != nil {
				return err
			}

			msgs := store.Messages()
			if !showSystem {
				kept := msgs[:0]
				for _, m := range msgs {
					if m.Role != models.RoleSystem {
						kept = append(kept, m)
					}
				}
				msgs = kept
			}
			if tail > 0 && len(msgs) > tail {
				msgs = msgs[len(msgs)-tail:]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\nfile: %s\n", store.SessionID(), store.Path())
			for _, m := range msgs {
				title := string(m.Role)
				if m.Role == models.RoleTool {
					title = fmt.Sprintf("tool (%s)", m.ToolCallID)
				}
				fmt.Fprintf(out, "\n--- %s ---\n%s\n", title, m.Text())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to replay")
	cmd.Flags().IntVar(&tail, "tail", 50, "Show last N messages")
	cmd.Flags().BoolVar(&showSystem, "show-system", false, "Include system messages")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// buildEventsCmd creates the "events" command: print recent structured
// events recorded for a session.
func buildEventsCmd() *cobra.Command {
	var (
		sessionID string
		tail      int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent structured events for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := events.Open(sessionID)
			if err != nil {
				return err
			}
			evs, err := store.Iter()
			if err != nil {
				return err
			}
			if tail > 0 && len(evs) > tail {
				evs = evs[len(evs)-tail:]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\nfile: %s\nevents: %d\n", sessionID, store.Path(), len(evs))
			for _, e := range evs {
				ts := time.Unix(int64(e.TS), 0).Format("2006-01-02 15:04:05")
				data, err := json.MarshalIndent(e.Data, "", "  ")
				if err != nil {
					data = []byte("{}")
				}
				fmt.Fprintf(out, "\n[%s] %s\n%s\n", ts, e.Type, clip(string(data), 4000))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to inspect")
	cmd.Flags().IntVar(&tail, "tail", 200, "Show last N events")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// buildStatsCmd creates the "stats" command: a compact observability
// summary (latency, errors, tool usage) for a session.
func buildStatsCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize latency, errors and tool usage for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := events.Open(sessionID)
			if err != nil {
				return err
			}
			evs, err := store.Iter()
			if err != nil {
				return err
			}

			llmReq := filterEvents(evs, "llm.request")
			llmRes := filterEvents(evs, "llm.response")
			llmErr := filterEvents(evs, "llm.error")
			toolCall := filterEvents(evs, "tool.call")
			toolRes := filterEvents(evs, "tool.result")
			toolDen := filterEvents(evs, "tool.denied")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\n", sessionID)
			fmt.Fprintf(out, "events_file: %s\n", store.Path())
			fmt.Fprintf(out, "llm_requests: %d  llm_responses: %d  llm_errors: %d\n",
				len(llmReq), len(llmRes), len(llmErr))
			if avg, ok := avgElapsedMS(llmRes); ok {
				fmt.Fprintf(out, "llm_avg_latency_ms: %.1f\n", avg)
			}
			fmt.Fprintf(out, "tool_calls: %d  tool_results: %d  tool_denied: %d\n",
				len(toolCall), len(toolRes), len(toolDen))
			if avg, ok := avgElapsedMS(toolRes); ok {
				fmt.Fprintf(out, "tool_avg_latency_ms: %.1f\n", avg)
			}
			if top := topTools(toolCall, 12); len(top) > 0 {
				fmt.Fprintln(out, "top_tools:")
				for _, tc := range top {
					fmt.Fprintf(out, "  - %s: %d\n", tc.Name, tc.Count)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to summarize")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// buildReplayExecCmd creates the "replay-exec" command: re-execute the
// tool calls recorded in a session, without any LLM calls. Useful to
// reproduce side effects from a recorded run and to check whether tool
// outputs are still the same.
func buildReplayExecCmd() *cobra.Command {
	var (
		f      runFlags
		dryRun bool
		start  int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "replay-exec",
		Short: "Re-execute recorded tool calls from a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(f.cwd)
			if err != nil {
				return err
			}

			// The provider is wired but never called; the context is built
			// for its tool registry, permissions and behavior rules.
			opts := f.options(cwd)
			opts.SkipMCP = dryRun
			appCtx, err := app.New(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer appCtx.Close()

			store := appCtx.Session
			blocks := toolCallBlocks(store.Messages())
			if start < 0 {
				start = 0
			}
			if start > len(blocks) {
				start = len(blocks)
			}
			end := start + limit
			if limit <= 0 || end > len(blocks) {
				end = len(blocks)
			}
			blocks = blocks[start:end]

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\nfile: %s\nblocks: %d\ndry_run: %v\n",
				store.SessionID(), store.Path(), len(blocks), dryRun)

			for i, block := range blocks {
				fmt.Fprintf(out, "\nassistant_index: %d  block: %d\n", block.AssistantIndex, start+i)
				for _, tc := range block.Calls {
					runReplayCall(cmd.Context(), out, appCtx, block, tc, dryRun)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.provider, "provider", "", "Provider name (only used to build the tool context)")
	flags.StringVar(&f.configPath, "config", "pyopencode.yaml", "Provider registry YAML path")
	flags.StringVar(&f.cwd, "cwd", "", "Working directory (project root), default current directory")
	flags.StringVar(&f.session, "session", "", "Session id to replay tool execution from")
	flags.BoolVar(&f.yes, "yes", false, "Auto-approve tools that require confirmation (edit/bash)")
	flags.BoolVar(&f.noBash, "no-bash", false, "Deny the bash tool")
	flags.BoolVar(&f.allowEdit, "allow-edit", false, "Auto-allow edit tools (write/edit/patch)")
	flags.StringVar(&f.behaviorConfig, "behavior-config", "", "Optional behavior JSON (pyopencode.json) path")
	flags.BoolVar(&dryRun, "dry-run", false, "Do not execute tools; only show what would run")
	flags.IntVar(&start, "start", 0, "Start from assistant tool-call block (0-based)")
	flags.IntVar(&limit, "limit", 0, "Max blocks to process (0 = all)")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// runReplayCall re-executes one recorded tool call and prints the
// outcome, flagging results that differ from the recorded reply.
func runReplayCall(ctx context.Context, out io.Writer, appCtx *app.Context, block toolCallBlock, tc models.ToolCall, dryRun bool) {
	args := tc.Arguments
	if len(args) == 0 || !json.Valid(args) {
		args = json.RawMessage("{}")
	}

	fmt.Fprintf(out, "\ncall: %s (%s)\n%s\n", tc.Name, tc.ID, tools.Preview(args))
	if dryRun {
		return
	}
	if tc.Name == "" {
		fmt.Fprintln(out, "missing tool name")
		return
	}

	tool, ok := appCtx.Tools.Get(tc.Name)
	if !ok {
		fmt.Fprintf(out, "unknown tool: %s\n", tc.Name)
		return
	}
	spec := tool.Spec()
	if !appCtx.Gate.Decide(spec.Permission, spec.Name, tools.Preview(args)) {
		fmt.Fprintf(out, "denied: %s\n", tc.Name)
		return
	}

	tctx := tools.Context{Cwd: appCtx.Cwd, SessionID: appCtx.Session.SessionID()}
	res := executeRecovering(ctx, tool, tctx, tc.Name, args)

	title := fmt.Sprintf("result: %s (ok)", tc.Name)
	if res.IsError {
		title = fmt.Sprintf("result: %s (error)", tc.Name)
	}
	if old, answered := block.Answered[tc.ID]; answered &&
		strings.TrimSpace(old) != strings.TrimSpace(res.Content) {
		title += " [DIFF]"
	}
	fmt.Fprintf(out, "%s\n%s\n", title, clip(res.Content, 4000))
}

func executeRecovering(ctx context.Context, tool tools.Tool, tctx tools.Context, name string, args json.RawMessage) (res tools.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = tools.Errorf("Tool %s exception: %v", name, rec)
		}
	}()
	return tool.Execute(ctx, tctx, args)
}

// buildCommandsCmd creates the "commands" command: list the command
// templates discovered from commands/ directories and the behavior
// config.
func buildCommandsCmd() *cobra.Command {
	var (
		cwdFlag        string
		behaviorConfig string
	)

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List available command templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(cwdFlag)
			if err != nil {
				return err
			}
			behavior := config.Load(cwd, behaviorConfig)
			specs := commands.Discover(cwd, behavior.Commands)

			out := cmd.OutOrStdout()
			if len(specs) == 0 {
				fmt.Fprintln(out, "No commands found.")
				return nil
			}
			names := make([]string, 0, len(specs))
			for name := range specs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				spec := specs[name]
				extra := ""
				if spec.Agent != "" {
					extra = fmt.Sprintf(" (agent=%s)", spec.Agent)
				}
				fmt.Fprintf(out, "- %s%s %s\n", name, extra, spec.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cwdFlag, "cwd", "", "Working directory (project root), default current directory")
	cmd.Flags().StringVar(&behaviorConfig, "behavior-config", "", "Optional behavior JSON (pyopencode.json) path")

	return cmd
}

// buildMcpCmd creates the "mcp" command: list configured MCP servers
// and the tools they advertise. No LLM provider is needed.
func buildMcpCmd() *cobra.Command {
	var (
		cwdFlag        string
		behaviorConfig string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "List configured MCP servers and discovered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workspace.ResolveCwd(cwdFlag)
			if err != nil {
				return err
			}
			behavior := config.Load(cwd, behaviorConfig)
			servers := behavior.MCPServerList()

			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, "No MCP servers configured. Add mcp_servers to pyopencode.json.")
				return nil
			}
			for _, sc := range servers {
				fmt.Fprintf(out, "%s -> %s (prefix=%s)\n",
					sc.Name, strings.Join(sc.Command, " "), serverPrefix(sc))
			}

			var clients []*mcp.Client
			defer func() {
				for _, c := range clients {
					c.Close()
				}
			}()

			type namedTool struct{ name, desc string }
			var discovered []namedTool
			for _, sc := range servers {
				client := mcp.NewClient(sc)
				clients = append(clients, client)
				if err := client.Start(cmd.Context()); err != nil {
					return fmt.Errorf("start MCP server %s: %w", sc.Name, err)
				}
				infos, err := client.ListTools(cmd.Context())
				if err != nil {
					return fmt.Errorf("list tools for %s: %w", sc.Name, err)
				}
				for _, info := range infos {
					discovered = append(discovered, namedTool{
						name: serverPrefix(sc) + "." + info.Name,
						desc: info.Description,
					})
				}
			}

			if len(discovered) == 0 {
				fmt.Fprintln(out, "No MCP tools discovered.")
				return nil
			}
			sort.Slice(discovered, func(i, j int) bool { return discovered[i].name < discovered[j].name })
			fmt.Fprintln(out, "\nDiscovered MCP tools:")
			for _, t := range discovered {
				fmt.Fprintf(out, "- %s: %s\n", t.name, t.desc)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cwdFlag, "cwd", "", "Working directory (project root), default current directory")
	cmd.Flags().StringVar(&behaviorConfig, "behavior-config", "", "Optional behavior JSON (pyopencode.json) path")

	return cmd
}

func serverPrefix(sc mcp.ServerConfig) string {
	if sc.Prefix != "" {
		return sc.Prefix
	}
	return "mcp." + sc.Name
}

// buildSchemaCmd creates the "schema" command: print the JSON Schema
// for behavior config files, for editor validation.
func buildSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for pyopencode.json files",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// toolCallBlock is one assistant tool_calls message plus the contiguous
// tool replies recorded after it.
type toolCallBlock struct {
	AssistantIndex int
	Calls          []models.ToolCall
	Answered       map[string]string
}

func toolCallBlocks(msgs []models.Message) []toolCallBlock {
	var blocks []toolCallBlock
	for i, m := range msgs {
		if !m.HasToolCalls() {
			continue
		}
		block := toolCallBlock{
			AssistantIndex: i,
			Calls:          m.ToolCalls,
			Answered:       map[string]string{},
		}
		for j := i + 1; j < len(msgs); j++ {
			if msgs[j].Role != models.RoleTool {
				break
			}
			if id := msgs[j].ToolCallID; id != "" {
				block.Answered[id] = msgs[j].Text()
			}
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// parseTemplateArgs turns repeated key=value items into a template
// argument map. Items without "=" are ignored.
func parseTemplateArgs(items []string) map[string]string {
	out := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func filterEvents(evs []events.Event, eventType string) []events.Event {
	var out []events.Event
	for _, e := range evs {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// avgElapsedMS averages the elapsed_ms field across events. The second
// return is false when no event carries a usable value.
func avgElapsedMS(evs []events.Event) (float64, bool) {
	var sum float64
	var n int
	for _, e := range evs {
		ms, ok := e.Data["elapsed_ms"].(float64)
		if !ok || ms < 0 {
			continue
		}
		sum += ms
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

type toolCount struct {
	Name  string
	Count int
}

// topTools ranks tools by call count, ties broken by name for stable
// output.
func topTools(evs []events.Event, limit int) []toolCount {
	freq := map[string]int{}
	for _, e := range evs {
		name, ok := e.Data["tool"].(string)
		if !ok || name == "" {
			continue
		}
		freq[name]++
	}
	out := make([]toolCount, 0, len(freq))
	for name, count := range freq {
		out = append(out, toolCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
