package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/waysongjiang/pyopencode/internal/agents"
	"github.com/waysongjiang/pyopencode/internal/compaction"
	"github.com/waysongjiang/pyopencode/internal/events"
	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/internal/permissions"
	"github.com/waysongjiang/pyopencode/internal/sessions"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// scriptedProvider replays canned turns; errs aligned by call index
// simulate transient failures.
type scriptedProvider struct {
	turns []*llm.AssistantTurn
	errs  []error
	model string

	calls int
	reqs  []llm.Request
}

func (p *scriptedProvider) Name() string { return "fake" }

func (p *scriptedProvider) Model() string {
	if p.model != "" {
		return p.model
	}
	return "fake-model"
}

func (p *scriptedProvider) WithModel(model string) llm.Provider {
	p.model = model
	return p
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (*llm.AssistantTurn, error) {
	p.reqs = append(p.reqs, req)
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.turns) && p.turns[i] != nil {
		return p.turns[i], nil
	}
	return &llm.AssistantTurn{Text: "done"}, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request, onDelta func(llm.StreamDelta)) (*llm.AssistantTurn, error) {
	turn, err := p.Complete(ctx, req)
	if err == nil && turn.Text != "" {
		onDelta(llm.StreamDelta{Text: turn.Text})
	}
	return turn, err
}

// fakeTool is a scriptable registry entry.
type fakeTool struct {
	name       string
	permission string
	parameters json.RawMessage
	execute    func(tctx tools.Context, args json.RawMessage) tools.Result
	calls      int
}

func (f *fakeTool) Spec() tools.Spec {
	params := f.parameters
	if params == nil {
		params = tools.MustSchema(map[string]any{"type": "object"})
	}
	return tools.Spec{
		Name:        f.name,
		Description: "test tool",
		Parameters:  params,
		Permission:  f.permission,
	}
}

func (f *fakeTool) Execute(_ context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	f.calls++
	if f.execute != nil {
		return f.execute(tctx, args)
	}
	return tools.Text("ok")
}

func echoTool() *fakeTool {
	return &fakeTool{
		name:       "echo",
		permission: "read",
		execute: func(_ tools.Context, args json.RawMessage) tools.Result {
			var input struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(args, &input)
			return tools.Text("echo:" + input.Text)
		},
	}
}

type fixture struct {
	runner   *Runner
	provider *scriptedProvider
	session  *sessions.Store
	events   *events.Store
}

func newFixture(t *testing.T, provider *scriptedProvider, reg *tools.Registry, tweak func(*permissions.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	session, err := sessions.OpenAt(filepath.Join(dir, "sessions"), "")
	if err != nil {
		t.Fatal(err)
	}
	eventsDir := filepath.Join(dir, "events")
	if err := os.MkdirAll(eventsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ev := events.OpenAt(eventsDir, session.SessionID())

	cfg := permissions.NewConfig()
	if tweak != nil {
		tweak(cfg)
	}
	if reg == nil {
		reg = tools.NewRegistry()
	}

	return &fixture{
		runner: &Runner{
			Cwd:      dir,
			Provider: provider,
			Tools:    reg,
			Gate:     permissions.NewGate(cfg, true),
			Session:  session,
			Events:   ev,
			Agent:    agents.Profile{},
			Out:      io.Discard,
		},
		provider: provider,
		session:  session,
		events:   ev,
	}
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	evs, err := f.events.Iter()
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

func (f *fixture) findEvent(t *testing.T, eventType string) events.Event {
	t.Helper()
	evs, err := f.events.Iter()
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range evs {
		if e.Type == eventType {
			return e
		}
	}
	t.Fatalf("event %s not recorded in %v", eventType, f.eventTypes(t))
	return events.Event{}
}

func registryWith(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	for _, tool := range ts {
		if err := reg.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestRunFinalAnswerFirstStep(t *testing.T) {
	f := newFixture(t, &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "hi there"}}}, nil, nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "hello", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hi there" {
		t.Fatalf("result = %q", got)
	}

	msgs := f.session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("session = %d messages: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != models.RoleSystem || !strings.HasPrefix(msgs[0].Text(), "You are pyopencode, a local coding agent.") {
		t.Fatalf("system message = %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleUser || msgs[1].Text() != "hello" {
		t.Fatalf("user message = %+v", msgs[1])
	}
	if msgs[2].Role != models.RoleAssistant || msgs[2].Text() != "hi there" {
		t.Fatalf("assistant message = %+v", msgs[2])
	}

	types := f.eventTypes(t)
	if strings.Join(types, ",") != "llm.request,llm.response" {
		t.Fatalf("events = %v", types)
	}
	req := f.findEvent(t, "llm.request")
	if req.Data["messages_count"].(float64) != 2 || req.Data["model"].(string) != "fake-model" {
		t.Fatalf("llm.request data = %v", req.Data)
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	echo := echoTool()
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{{ID: "call_1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)}}},
		{Text: "final"},
	}}
	f := newFixture(t, provider, registryWith(t, echo), nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "final" {
		t.Fatalf("result = %q", got)
	}
	if echo.calls != 1 {
		t.Fatalf("echo executed %d times", echo.calls)
	}

	msgs := f.session.Messages()
	if len(msgs) != 5 {
		t.Fatalf("session = %d messages", len(msgs))
	}
	if !msgs[2].HasToolCalls() || msgs[2].Content != nil {
		t.Fatalf("assistant tool-call message = %+v", msgs[2])
	}
	if msgs[3].Role != models.RoleTool || msgs[3].ToolCallID != "call_1" || msgs[3].Text() != "echo:x" {
		t.Fatalf("tool reply = %+v", msgs[3])
	}

	types := f.eventTypes(t)
	want := "llm.request,llm.response,tool.call,tool.result,llm.request,llm.response"
	if strings.Join(types, ",") != want {
		t.Fatalf("events = %v", types)
	}
	call := f.findEvent(t, "tool.call")
	if call.Data["step"].(float64) != 1 || call.Data["permission_key"].(string) != "read" {
		t.Fatalf("tool.call data = %v", call.Data)
	}
	res := f.findEvent(t, "tool.result")
	if res.Data["is_error"].(bool) || res.Data["content_preview"].(string) != "echo:x" {
		t.Fatalf("tool.result data = %v", res.Data)
	}

	// Second request carries the tool block.
	second := provider.reqs[1]
	roles := make([]string, 0, len(second.Messages))
	for _, m := range second.Messages {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,tool" {
		t.Fatalf("second prompt roles = %v", roles)
	}
}

func TestRunMultiToolCallBlock(t *testing.T) {
	echo := echoTool()
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{
			{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"a"}`)},
			{ID: "c2", Name: "echo", Arguments: json.RawMessage(`{"text":"b"}`)},
		}},
		{Text: "final"},
	}}
	f := newFixture(t, provider, registryWith(t, echo), nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "final" {
		t.Fatalf("result = %q", got)
	}
	if echo.calls != 2 {
		t.Fatalf("echo executed %d times", echo.calls)
	}

	msgs := f.session.Messages()
	if len(msgs) != 6 {
		t.Fatalf("session = %d messages", len(msgs))
	}
	if msgs[3].ToolCallID != "c1" || msgs[3].Text() != "echo:a" {
		t.Fatalf("first reply = %+v", msgs[3])
	}
	if msgs[4].ToolCallID != "c2" || msgs[4].Text() != "echo:b" {
		t.Fatalf("second reply = %+v", msgs[4])
	}
}

func TestRunSynthesizesToolCallIDs(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{{Name: "echo", Arguments: json.RawMessage(`{}`)}}},
		{Text: "final"},
	}}
	f := newFixture(t, provider, registryWith(t, echoTool()), nil)

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}

	msgs := f.session.Messages()
	assistant := msgs[2]
	id := assistant.ToolCalls[0].ID
	prefix := fmt.Sprintf("tc_%s_0_0_", f.session.SessionID())
	if !strings.HasPrefix(id, prefix) || len(id) != len(prefix)+8 {
		t.Fatalf("synthesized id = %q, want prefix %q", id, prefix)
	}
	if msgs[3].ToolCallID != id {
		t.Fatalf("tool reply id %q != call id %q", msgs[3].ToolCallID, id)
	}
}

func TestRunDeniedTool(t *testing.T) {
	danger := &fakeTool{name: "run_cmd", permission: "bash"}
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{{ID: "c1", Name: "run_cmd"}}},
		{Text: "done"},
	}}
	f := newFixture(t, provider, registryWith(t, danger), func(cfg *permissions.Config) {
		cfg.Set("bash", permissions.DecisionDeny)
	})

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "done" {
		t.Fatalf("result = %q", got)
	}
	if danger.calls != 0 {
		t.Fatal("denied tool was executed")
	}

	msgs := f.session.Messages()
	if msgs[3].Text() != "Tool run_cmd was denied by user permissions." {
		t.Fatalf("denied reply = %q", msgs[3].Text())
	}
	f.findEvent(t, "tool.denied")
}

func TestRunMissingTool(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{{ID: "c1", Name: "nope"}}},
		{Text: "done"},
	}}
	f := newFixture(t, provider, nil, nil)

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}

	msgs := f.session.Messages()
	if msgs[3].Text() != "Tool nope not found." {
		t.Fatalf("missing reply = %q", msgs[3].Text())
	}
	missing := f.findEvent(t, "tool.missing")
	if missing.Data["tool"].(string) != "nope" {
		t.Fatalf("tool.missing data = %v", missing.Data)
	}
}

func TestRunEmptyResponseLoops(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{},
		{Text: "eventually"},
	}}
	f := newFixture(t, provider, nil, nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "eventually" {
		t.Fatalf("result = %q", got)
	}

	empty := f.findEvent(t, "llm.empty_response")
	if empty.Data["step"].(float64) != 0 || empty.Data["reason"].(string) != "no text and no tool_calls" {
		t.Fatalf("llm.empty_response data = %v", empty.Data)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times", provider.calls)
	}
}

func TestRunMaxStepsExhausted(t *testing.T) {
	tc := []models.ToolCall{{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{}`)}}
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: tc},
		{ToolCalls: []models.ToolCall{{ID: "c2", Name: "echo", Arguments: json.RawMessage(`{}`)}}},
	}}
	f := newFixture(t, provider, registryWith(t, echoTool()), nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got != "❌ Reached max steps without final answer" {
		t.Fatalf("result = %q", got)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times", provider.calls)
	}
}

func TestRunMaxStepsKeepsLastText(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{Text: "progress so far", ToolCalls: []models.ToolCall{{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{}`)}}},
	}}
	f := newFixture(t, provider, registryWith(t, echoTool()), nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got != "progress so far" {
		t.Fatalf("result = %q", got)
	}
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	provider := &scriptedProvider{
		errs:  []error{errors.New("connection reset by peer"), nil},
		turns: []*llm.AssistantTurn{nil, {Text: "recovered"}},
	}
	f := newFixture(t, provider, nil, nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "recovered" {
		t.Fatalf("result = %q", got)
	}
	llmErr := f.findEvent(t, "llm.error")
	if llmErr.Data["attempt"].(float64) != 1 || llmErr.Data["error"].(string) != "connection reset by peer" {
		t.Fatalf("llm.error data = %v", llmErr.Data)
	}
}

func TestRunRetriesExhausted(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{
			errors.New("status 502: bad gateway (1)"),
			errors.New("status 502: bad gateway (2)"),
			errors.New("status 502: bad gateway (3)"),
		},
	}
	f := newFixture(t, provider, nil, nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "❌ LLM call failed after retries: status 502: bad gateway (3)" {
		t.Fatalf("result = %q", got)
	}

	errorEvents := 0
	for _, typ := range f.eventTypes(t) {
		if typ == "llm.error" {
			errorEvents++
		}
	}
	if errorEvents != 3 {
		t.Fatalf("llm.error events = %d", errorEvents)
	}

	msgs := f.session.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleAssistant || last.Text() != got {
		t.Fatalf("error text not persisted: %+v", last)
	}
}

func TestRunPermanentErrorFailsFast(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{errors.New("status 401: invalid api key")},
	}
	f := newFixture(t, provider, nil, nil)

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "❌ LLM call failed after retries: status 401: invalid api key" {
		t.Fatalf("result = %q", got)
	}
	if provider.calls != 1 {
		t.Fatalf("permanent error retried: %d calls", provider.calls)
	}
}

func TestRunCanceledContextStopsRetries(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{errors.New("connection reset by peer")},
	}
	f := newFixture(t, provider, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := f.runner.Run(ctx, Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "❌ LLM call failed after retries: connection reset by peer" {
		t.Fatalf("result = %q", got)
	}
	if provider.calls != 1 {
		t.Fatalf("canceled context retried: %d calls", provider.calls)
	}
}

func TestRunCleansCorruptSession(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok"}}}
	f := newFixture(t, provider, nil, nil)

	if err := f.session.Append(models.System("boot")); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Append(models.Tool("orphan", "zzz")); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Append(models.User("old")); err != nil {
		t.Fatal(err)
	}

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}

	cleaned := f.findEvent(t, "session.cleaned_invalid_tool_messages")
	if cleaned.Data["removed"].(float64) != 1 || cleaned.Data["kept"].(float64) != 2 {
		t.Fatalf("cleaned data = %v", cleaned.Data)
	}
	for _, m := range f.session.Messages() {
		if m.Role == models.RoleTool {
			t.Fatalf("orphan tool message survived: %+v", m)
		}
	}
}

func TestRunTruncatesLongToolResults(t *testing.T) {
	long := strings.Repeat("x", 500)
	noisy := &fakeTool{
		name:       "noisy",
		permission: "read",
		execute: func(tools.Context, json.RawMessage) tools.Result {
			return tools.Text(long)
		},
	}
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{{ID: "c1", Name: "noisy"}}},
		{Text: "done"},
	}}
	f := newFixture(t, provider, registryWith(t, noisy), nil)
	f.runner.Policy = compaction.Policy{
		MaxMessages:        45,
		SummarizeWhenOver:  60,
		MaxToolResultChars: 100,
		MaxMessageChars:    20000,
	}

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}

	reply := f.session.Messages()[3]
	if !strings.Contains(reply.Text(), "\n\n... (truncated) ...\n\n") {
		t.Fatalf("tool reply not truncated: %d chars", len(reply.Text()))
	}
	if len(reply.Text()) >= 500 {
		t.Fatalf("tool reply too long: %d chars", len(reply.Text()))
	}

	// The event records the pre-truncation result.
	res := f.findEvent(t, "tool.result")
	if res.Data["content_len"].(float64) != 500 {
		t.Fatalf("content_len = %v", res.Data["content_len"])
	}
}

func TestRunAgentProfileOverrides(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{
		{ToolCalls: []models.ToolCall{{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{}`)}}},
	}}
	f := newFixture(t, provider, registryWith(t, echoTool()), nil)
	f.runner.Agent = agents.Profile{Name: "custom", Model: "special-model", MaxSteps: 1, SystemPrompt: "Mode: custom."}

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 50})
	if err != nil {
		t.Fatal(err)
	}
	if got != "❌ Reached max steps without final answer" {
		t.Fatalf("agent max_steps override ignored: %q", got)
	}

	req := f.findEvent(t, "llm.request")
	if req.Data["model"].(string) != "special-model" {
		t.Fatalf("model override not applied: %v", req.Data["model"])
	}

	// Agent prompt injected at the top of the wire messages.
	first := provider.reqs[0].Messages[0]
	if first.Role != "system" || first.Name != models.NameAgent || *first.Content != "Mode: custom." {
		t.Fatalf("agent prompt not injected: %+v", first)
	}
}

func TestRunPersistsReasoningWhenEnabled(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok", ReasoningContent: "thought"}}}
	f := newFixture(t, provider, nil, nil)
	f.runner.IncludeReasoning = true

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}
	msgs := f.session.Messages()
	if msgs[2].ReasoningContent != "thought" {
		t.Fatalf("reasoning not persisted: %+v", msgs[2])
	}
}

func TestRunDropsReasoningByDefault(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "ok", ReasoningContent: "thought"}}}
	f := newFixture(t, provider, nil, nil)

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}
	msgs := f.session.Messages()
	if msgs[2].ReasoningContent != "" {
		t.Fatalf("reasoning persisted unexpectedly: %+v", msgs[2])
	}
}

func TestRunStreamPrintsDeltas(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "streamed"}}}
	f := newFixture(t, provider, nil, nil)
	var buf bytes.Buffer
	f.runner.Stream = true
	f.runner.Out = &buf

	got, err := f.runner.Run(context.Background(), Options{UserPrompt: "go", MaxSteps: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got != "streamed" {
		t.Fatalf("result = %q", got)
	}
	if buf.String() != "streamed\n" {
		t.Fatalf("stream output = %q", buf.String())
	}
}

func TestRunSystemPromptEnsuredOnce(t *testing.T) {
	provider := &scriptedProvider{turns: []*llm.AssistantTurn{{Text: "a"}, {Text: "b"}}}
	f := newFixture(t, provider, nil, nil)

	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "one", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.runner.Run(context.Background(), Options{UserPrompt: "two", MaxSteps: 5}); err != nil {
		t.Fatal(err)
	}

	count := 0
	for _, m := range f.session.Messages() {
		if m.Role == models.RoleSystem {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("system messages = %d", count)
	}
	want := "You are pyopencode, a local coding agent.\n" +
		"Rules:\n" +
		"- Use the provided tools to inspect and modify the project.\n" +
		"- Prefer small, verifiable steps.\n" +
		"- Never fabricate file contents or command output."
	if f.session.Messages()[0].Text() != want {
		t.Fatalf("system prompt = %q", f.session.Messages()[0].Text())
	}
}
