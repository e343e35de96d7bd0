package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/waysongjiang/pyopencode/internal/compaction"
	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/internal/permissions"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// seedCrashedSession simulates a run that died after persisting an
// assistant tool-call message.
func seedCrashedSession(t *testing.T, f *fixture, calls []models.ToolCall, after ...models.Message) {
	t.Helper()
	for _, m := range []models.Message{
		models.System("boot"),
		models.User("do the thing"),
		models.AssistantToolCalls(calls),
	} {
		if err := f.session.Append(m); err != nil {
			t.Fatal(err)
		}
	}
	for _, m := range after {
		if err := f.session.Append(m); err != nil {
			t.Fatal(err)
		}
	}
}

func TestResumeExecutesPendingTools(t *testing.T) {
	echo := echoTool()
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "picked up"}}}
	f := newFixture(t, provider, registryWith(t, echo), nil)
	seedCrashedSession(t, f, []models.ToolCall{
		{ID: "tc_a", Name: "echo", Arguments: json.RawMessage(`{"text":"resumed"}`)},
	})

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "next", MaxSteps: 5, Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "picked up" {
		t.Fatalf("result = %q", got)
	}
	if echo.calls != 1 {
		t.Fatalf("echo executed %d times", echo.calls)
	}

	msgs := f.session.Messages()
	if len(msgs) != 6 {
		t.Fatalf("session = %d messages", len(msgs))
	}
	if msgs[3].Role != models.RoleTool || msgs[3].ToolCallID != "tc_a" || msgs[3].Text() != "echo:resumed" {
		t.Fatalf("resumed reply = %+v", msgs[3])
	}
	if msgs[4].Role != models.RoleUser || msgs[4].Text() != "next" {
		t.Fatalf("user prompt out of order: %+v", msgs[4])
	}

	pending := f.findEvent(t, "resume.pending_tools")
	if pending.Data["count"].(float64) != 1 || pending.Data["assistant_index"].(float64) != 2 {
		t.Fatalf("resume.pending_tools data = %v", pending.Data)
	}
	f.findEvent(t, "resume.tool_result")

	// Resume work happens before the first LLM call.
	types := f.eventTypes(t)
	for i, typ := range types {
		if typ == "llm.request" {
			break
		}
		if i == len(types)-1 {
			t.Fatalf("no llm.request after resume: %v", types)
		}
		if !strings.HasPrefix(typ, "resume.") {
			t.Fatalf("unexpected event before llm.request: %v", types)
		}
	}
}

func TestResumeOnlyUnansweredCalls(t *testing.T) {
	echo := echoTool()
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok"}}}
	f := newFixture(t, provider, registryWith(t, echo), nil)
	seedCrashedSession(t, f,
		[]models.ToolCall{
			{ID: "tc_a", Name: "echo", Arguments: json.RawMessage(`{"text":"one"}`)},
			{ID: "tc_b", Name: "echo", Arguments: json.RawMessage(`{"text":"two"}`)},
		},
		models.Tool("echo:one", "tc_a"),
	)

	if _, err := f.runner.Run(context.Background(), Options{MaxSteps: 5, Resume: true}); err != nil {
		t.Fatal(err)
	}
	if echo.calls != 1 {
		t.Fatalf("echo executed %d times, want only the unanswered call", echo.calls)
	}

	msgs := f.session.Messages()
	if msgs[4].ToolCallID != "tc_b" || msgs[4].Text() != "echo:two" {
		t.Fatalf("pending reply = %+v", msgs[4])
	}

	pending := f.findEvent(t, "resume.pending_tools")
	ids := pending.Data["tool_call_ids"].([]any)
	if len(ids) != 1 || ids[0].(string) != "tc_b" {
		t.Fatalf("tool_call_ids = %v", ids)
	}
}

func TestResumeAbortsOnNonToolAfterAssistant(t *testing.T) {
	echo := echoTool()
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "after"}}}
	f := newFixture(t, provider, registryWith(t, echo), nil)
	seedCrashedSession(t, f,
		[]models.ToolCall{
			{ID: "tc_a", Name: "echo", Arguments: json.RawMessage(`{}`)},
			{ID: "tc_b", Name: "echo", Arguments: json.RawMessage(`{}`)},
		},
		models.Tool("echo:", "tc_a"),
		models.Assistant("interrupted"),
	)

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5, Resume: true}); err != nil {
		t.Fatal(err)
	}
	if echo.calls != 0 {
		t.Fatal("aborted resume still executed a tool")
	}

	aborted := f.findEvent(t, "resume.aborted_non_tool_after_assistant")
	if aborted.Data["assistant_index"].(float64) != 2 ||
		aborted.Data["found_role"].(string) != "assistant" ||
		aborted.Data["found_index"].(float64) != 4 {
		t.Fatalf("abort data = %v", aborted.Data)
	}
	for _, m := range f.session.Messages() {
		if m.ToolCallID == "tc_b" {
			t.Fatalf("reply appended for aborted call: %+v", m)
		}
	}
}

func TestResumeNothingPendingIsQuiet(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok"}}}
	f := newFixture(t, provider, nil, nil)
	seedCrashedSession(t, f,
		[]models.ToolCall{{ID: "tc_a", Name: "echo", Arguments: json.RawMessage(`{}`)}},
		models.Tool("answered", "tc_a"),
	)

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5, Resume: true}); err != nil {
		t.Fatal(err)
	}
	for _, typ := range f.eventTypes(t) {
		if strings.HasPrefix(typ, "resume.") {
			t.Fatalf("unexpected resume event %s", typ)
		}
	}
}

func TestResumeStopsAtUserMessage(t *testing.T) {
	echo := echoTool()
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok"}}}
	f := newFixture(t, provider, registryWith(t, echo), nil)
	seedCrashedSession(t, f,
		[]models.ToolCall{{ID: "tc_a", Name: "echo", Arguments: json.RawMessage(`{}`)}},
		models.Tool("answered", "tc_a"),
		models.User("fresh topic"),
	)

	if _, err := f.runner.Run(context.Background(), Options{MaxSteps: 5, Resume: true}); err != nil {
		t.Fatal(err)
	}
	if echo.calls != 0 {
		t.Fatal("resume looked past a user message")
	}
	for _, typ := range f.eventTypes(t) {
		if strings.HasPrefix(typ, "resume.") {
			t.Fatalf("unexpected resume event %s", typ)
		}
	}
}

func TestResumeMissingAndDeniedTools(t *testing.T) {
	danger := &fakeTool{name: "run_cmd", permission: "bash"}
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok"}}}
	f := newFixture(t, provider, registryWith(t, danger), func(cfg *permissions.Config) {
		cfg.Set("bash", permissions.DecisionDeny)
	})
	seedCrashedSession(t, f, []models.ToolCall{
		{ID: "tc_d", Name: "run_cmd", Arguments: json.RawMessage(`{}`)},
		{ID: "tc_g", Name: "ghost", Arguments: json.RawMessage(`{}`)},
	})

	if _, err := f.runner.Run(context.Background(), Options{MaxSteps: 5, Resume: true}); err != nil {
		t.Fatal(err)
	}
	if danger.calls != 0 {
		t.Fatal("denied tool was executed on resume")
	}

	msgs := f.session.Messages()
	if msgs[3].ToolCallID != "tc_d" || msgs[3].Text() != "Tool run_cmd was denied by user permissions (resume)." {
		t.Fatalf("denied reply = %+v", msgs[3])
	}
	if msgs[4].ToolCallID != "tc_g" || msgs[4].Text() != "Tool ghost not found (resume)." {
		t.Fatalf("missing reply = %+v", msgs[4])
	}
}

func TestResumeDoesNotTruncateResults(t *testing.T) {
	long := strings.Repeat("y", 500)
	noisy := &fakeTool{
		name:       "noisy",
		permission: "read",
		execute: func(tools.Context, json.RawMessage) tools.Result {
			return tools.Text(long)
		},
	}
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok"}}}
	f := newFixture(t, provider, registryWith(t, noisy), nil)
	f.runner.Policy = compaction.Policy{
		MaxMessages:        45,
		SummarizeWhenOver:  60,
		MaxToolResultChars: 100,
		MaxMessageChars:    20000,
	}
	seedCrashedSession(t, f, []models.ToolCall{
		{ID: "tc_n", Name: "noisy", Arguments: json.RawMessage(`{}`)},
	})

	if _, err := f.runner.Run(context.Background(), Options{MaxSteps: 5, Resume: true}); err != nil {
		t.Fatal(err)
	}

	// The session keeps the full result; only the outbound prompt is capped.
	reply := f.session.Messages()[3]
	if len(reply.Text()) != 500 {
		t.Fatalf("resumed reply length = %d, want 500", len(reply.Text()))
	}
}
