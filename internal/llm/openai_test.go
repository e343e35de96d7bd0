package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/waysongjiang/pyopencode/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestOpenAIComplete_TextResponse(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello there","reasoning_content":"thinking..."}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("test", srv.URL, "key", "test-model")
	turn, err := p.Complete(context.Background(), Request{
		Messages: []WireMessage{{Role: "user", Content: strPtr("hi")}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if turn.Text != "hello there" {
		t.Errorf("text = %q, want %q", turn.Text, "hello there")
	}
	if turn.ReasoningContent != "thinking..." {
		t.Errorf("reasoning = %q", turn.ReasoningContent)
	}
	if len(turn.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(turn.ToolCalls))
	}

	if gotBody["model"] != "test-model" {
		t.Errorf("request model = %v", gotBody["model"])
	}
	// Default temperature applied when the request does not set one.
	if temp, ok := gotBody["temperature"].(float64); !ok || temp < 0.19 || temp > 0.21 {
		t.Errorf("request temperature = %v, want 0.2", gotBody["temperature"])
	}
}

func TestOpenAIComplete_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["tool_choice"] != "auto" {
			t.Errorf("tool_choice = %v, want auto", body["tool_choice"])
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"read","arguments":"{\"path\":\"main.go\"}"}},
			{"id":"call_2","type":"function","function":{"name":"list","arguments":"not json"}}
		]}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("test", srv.URL, "key", "m")
	turn, err := p.Complete(context.Background(), Request{
		Messages: []WireMessage{{Role: "user", Content: strPtr("go")}},
		Tools:    []ToolDef{{Name: "read", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(turn.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(turn.ToolCalls))
	}
	if turn.ToolCalls[0].ID != "call_1" || turn.ToolCalls[0].Name != "read" {
		t.Errorf("first call = %+v", turn.ToolCalls[0])
	}
	if string(turn.ToolCalls[0].Arguments) != `{"path":"main.go"}` {
		t.Errorf("first args = %s", turn.ToolCalls[0].Arguments)
	}
	// Garbled arguments degrade to an empty object.
	if string(turn.ToolCalls[1].Arguments) != `{}` {
		t.Errorf("second args = %s, want {}", turn.ToolCalls[1].Arguments)
	}
}

func TestOpenAIComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAI("deepseek", srv.URL, "key", "m")
	_, err := p.Complete(context.Background(), Request{Messages: []WireMessage{{Role: "user", Content: strPtr("x")}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("429 should be retryable: %v", err)
	}
}

func TestOpenAIStream_AccumulatesToolCallDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Let me "}}]}`,
			`{"choices":[{"delta":{"content":"check."}}]}`,
			`{"choices":[{"delta":{"reasoning_content":"hmm"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"grep","arguments":"{\"pat"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"tern\":\"x\"}"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"list","arguments":"{}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAI("test", srv.URL, "key", "m")
	var streamed string
	var reasoned string
	turn, err := p.Stream(context.Background(), Request{
		Messages: []WireMessage{{Role: "user", Content: strPtr("x")}},
	}, func(d StreamDelta) {
		streamed += d.Text
		reasoned += d.Reasoning
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if turn.Text != "Let me check." {
		t.Errorf("text = %q", turn.Text)
	}
	if streamed != "Let me check." {
		t.Errorf("streamed deltas = %q", streamed)
	}
	if reasoned != "hmm" || turn.ReasoningContent != "hmm" {
		t.Errorf("reasoning = %q / %q", reasoned, turn.ReasoningContent)
	}
	if len(turn.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(turn.ToolCalls))
	}
	if turn.ToolCalls[0].ID != "call_a" || string(turn.ToolCalls[0].Arguments) != `{"pattern":"x"}` {
		t.Errorf("first call = %+v args=%s", turn.ToolCalls[0], turn.ToolCalls[0].Arguments)
	}
	if turn.ToolCalls[1].ID != "call_b" || turn.ToolCalls[1].Name != "list" {
		t.Errorf("second call = %+v", turn.ToolCalls[1])
	}
}

func TestToOpenAIMessages_WireShapes(t *testing.T) {
	msgs := []WireMessage{
		{Role: "system", Content: strPtr("sys")},
		{Role: "assistant", Content: nil, ToolCalls: []models.ToolCall{{ID: "c1", Name: "read", Arguments: json.RawMessage(`{"p":1}`)}}},
		{Role: "tool", Content: strPtr("result"), ToolCallID: "c1"},
		{Role: "assistant", Content: strPtr("done"), ReasoningContent: strPtr("")},
	}
	out := toOpenAIMessages(msgs)
	if len(out) != 4 {
		t.Fatalf("len = %d", len(out))
	}
	if out[1].Content != "" || len(out[1].ToolCalls) != 1 {
		t.Errorf("assistant tool-call message = %+v", out[1])
	}
	if out[1].ToolCalls[0].Function.Arguments != `{"p":1}` {
		t.Errorf("arguments = %q", out[1].ToolCalls[0].Function.Arguments)
	}
	if out[2].ToolCallID != "c1" || out[2].Content != "result" {
		t.Errorf("tool message = %+v", out[2])
	}
	if out[3].ReasoningContent != "" {
		t.Errorf("forced reasoning should be empty string, got %q", out[3].ReasoningContent)
	}
}

func TestWithModel(t *testing.T) {
	p := NewOpenAI("test", "http://localhost", "key", "base-model")
	q := WithModel(p, "other-model")
	if q.Model() != "other-model" {
		t.Errorf("override model = %q", q.Model())
	}
	if p.Model() != "base-model" {
		t.Errorf("original mutated: %q", p.Model())
	}
	if WithModel(p, "") != Provider(p) {
		t.Error("empty override should return the same provider")
	}
}
