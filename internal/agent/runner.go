// Package agent drives the turn loop: prompt building, LLM calls with
// retries, tool dispatch under permissions, session persistence and
// crash resume. The session file is the single source of truth; every
// message is persisted before the loop moves on.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waysongjiang/pyopencode/internal/agents"
	"github.com/waysongjiang/pyopencode/internal/compaction"
	"github.com/waysongjiang/pyopencode/internal/events"
	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/internal/permissions"
	"github.com/waysongjiang/pyopencode/internal/sessions"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// systemPrompt is persisted once per session as the first message.
const systemPrompt = "You are pyopencode, a local coding agent.\n" +
	"Rules:\n" +
	"- Use the provided tools to inspect and modify the project.\n" +
	"- Prefer small, verifiable steps.\n" +
	"- Never fabricate file contents or command output."

const maxStepsExhausted = "❌ Reached max steps without final answer"

// Options configures one Run invocation.
type Options struct {
	// UserPrompt is appended as a user message; empty means none.
	UserPrompt string
	// MaxSteps bounds the number of LLM calls. The agent profile may
	// override it.
	MaxSteps int
	// Resume executes tool calls a crashed run left unanswered before
	// anything else happens.
	Resume bool
}

// Runner owns the turn state machine around one session.
type Runner struct {
	Cwd       string
	Provider  llm.Provider
	Tools     *tools.Registry
	Gate      *permissions.Gate
	Session   *sessions.Store
	Events    *events.Store
	Agent     agents.Profile
	RulesText string

	// Reasoning echo flags from the provider config.
	IncludeReasoning bool
	ForceReasoning   bool

	// Trace prints per-step prompts, responses and tool results; Stream
	// prints text deltas as they arrive.
	Trace  bool
	Stream bool

	// Policy overrides the compaction defaults; the zero value means
	// DefaultPolicy.
	Policy compaction.Policy

	// Out receives trace and stream output. Defaults to stdout.
	Out io.Writer
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) policy() compaction.Policy {
	if r.Policy == (compaction.Policy{}) {
		return compaction.DefaultPolicy()
	}
	return r.Policy
}

// sanitize repairs the loaded transcript and reports what it removed.
func (r *Runner) sanitize() {
	removed, kept := r.Session.Sanitize()
	if removed > 0 {
		r.Events.Append("session.cleaned_invalid_tool_messages", map[string]any{
			"removed": removed,
			"kept":    kept,
		})
	}
}

// Run executes one turn: an optional user prompt followed by LLM steps
// and tool executions until the model answers without tool calls or the
// step budget runs out. The returned string is the final assistant
// text; the error covers fatal protocol and persistence failures only.
func (r *Runner) Run(ctx context.Context, opts Options) (string, error) {
	r.sanitize()

	maxSteps := opts.MaxSteps
	if r.Agent.MaxSteps > 0 {
		maxSteps = r.Agent.MaxSteps
	}

	if !hasSystemMessage(r.Session.Messages()) {
		if err := r.Session.Append(models.System(systemPrompt)); err != nil {
			return "", err
		}
	}

	if opts.Resume {
		if err := r.resumePendingToolCalls(ctx); err != nil {
			return "", err
		}
		// Resume appended tool replies; re-check the transcript.
		r.sanitize()
	}

	if opts.UserPrompt != "" {
		if err := r.Session.Append(models.User(opts.UserPrompt)); err != nil {
			return "", err
		}
	}

	toolDefs := toolDefs(r.Tools.Specs())
	policy := r.policy()
	finalText := ""

	for step := 0; step < maxSteps; {
		provider := llm.WithModel(r.Provider, r.Agent.Model)

		builder := compaction.Builder{
			Policy:           policy,
			Cwd:              r.Cwd,
			RulesText:        r.RulesText,
			AgentPrompt:      r.Agent.SystemPrompt,
			IncludeReasoning: r.IncludeReasoning,
			ForceReasoning:   r.ForceReasoning,
		}
		built := builder.Build(ctx, provider, r.Session.Messages())
		if built.NewSummary != nil {
			if err := r.Session.Append(*built.NewSummary); err != nil {
				return "", err
			}
		}
		wire := cleanWire(built.Messages)
		if err := validateWire(wire); err != nil {
			return "", err
		}

		r.Events.Append("llm.request", map[string]any{
			"step":           step,
			"model":          provider.Model(),
			"messages_count": len(wire),
			"tools_count":    len(toolDefs),
			"prompt_chars":   promptChars(wire),
		})

		turn, elapsed, err := r.callWithRetries(ctx, provider, llm.Request{
			Messages: wire,
			Tools:    toolDefs,
		}, step)
		if err != nil {
			errText := fmt.Sprintf("❌ LLM call failed after retries: %v", err)
			if aerr := r.Session.Append(models.Assistant(errText)); aerr != nil {
				return "", aerr
			}
			return errText, nil
		}

		r.Events.Append("llm.response", map[string]any{
			"step":       step,
			"elapsed_ms": elapsed.Milliseconds(),
			"text":       truncate(turn.Text, 4000),
			"tool_calls": toolCallData(turn.ToolCalls),
		})

		for i := range turn.ToolCalls {
			if turn.ToolCalls[i].ID == "" {
				turn.ToolCalls[i].ID = fmt.Sprintf("tc_%s_%d_%d_%s",
					r.Session.SessionID(), step, i, shortID())
			}
		}

		if err := r.persistAssistant(turn); err != nil {
			return "", err
		}
		if turn.Text != "" {
			finalText = turn.Text
		}

		if r.Trace {
			r.traceStep(step, wire, turn)
		}

		if len(turn.ToolCalls) == 0 {
			if turn.Text != "" {
				return turn.Text, nil
			}
			// Reasoning-only or empty output: spend the step and ask again.
			r.Events.Append("llm.empty_response", map[string]any{
				"step":   step,
				"reason": "no text and no tool_calls",
			})
			step++
			continue
		}

		step++
		if err := r.executeToolCalls(ctx, step, turn.ToolCalls, policy); err != nil {
			return "", err
		}
	}

	if finalText != "" {
		return finalText, nil
	}
	return maxStepsExhausted, nil
}

// callWithRetries performs one LLM call with up to three attempts.
// Only transient transport failures are retried; auth and validation
// errors fail on the first attempt.
func (r *Runner) callWithRetries(ctx context.Context, provider llm.Provider, req llm.Request, step int) (*llm.AssistantTurn, time.Duration, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		start := time.Now()
		turn, err := r.chatOnce(ctx, provider, req)
		if err == nil {
			return turn, time.Since(start), nil
		}
		lastErr = err
		r.Events.Append("llm.error", map[string]any{
			"step":    step,
			"attempt": attempt + 1,
			"error":   truncate(err.Error(), 2000),
		})
		if ctx.Err() != nil || !llm.IsRetryable(err) {
			break
		}
		if attempt < 2 {
			sleepBackoff(ctx, attempt)
		}
	}
	return nil, 0, lastErr
}

func (r *Runner) chatOnce(ctx context.Context, provider llm.Provider, req llm.Request) (*llm.AssistantTurn, error) {
	if !r.Stream {
		return provider.Complete(ctx, req)
	}
	turn, err := provider.Stream(ctx, req, func(d llm.StreamDelta) {
		if d.Text != "" {
			fmt.Fprint(r.out(), d.Text)
		}
	})
	if err == nil && turn.Text != "" {
		fmt.Fprintln(r.out())
	}
	return turn, err
}

// persistAssistant appends the assistant message for a turn: null
// content with tool calls, or plain text. Reasoning text is kept when
// the provider config echoes it back on later steps.
func (r *Runner) persistAssistant(turn *llm.AssistantTurn) error {
	var msg models.Message
	if len(turn.ToolCalls) > 0 {
		msg = models.AssistantToolCalls(turn.ToolCalls)
	} else {
		msg = models.Assistant(turn.Text)
	}
	if r.IncludeReasoning || r.ForceReasoning {
		msg.ReasoningContent = turn.ReasoningContent
	}
	return r.Session.Append(msg)
}

func sleepBackoff(ctx context.Context, attempt int) {
	delay := time.Duration(float64(500*time.Millisecond) * float64(int(1)<<attempt))
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func hasSystemMessage(msgs []models.Message) bool {
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
