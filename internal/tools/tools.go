// Package tools defines the tool contract the agent loop dispatches
// through: a Spec describing the tool to the model, an Execute method
// doing the work, and a Registry keyed by tool name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Spec describes one tool to the model and to the permission engine.
// Parameters is a JSON Schema object. Permission is the class checked
// before execution: read, edit, bash or mcp.
type Spec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Permission  string
}

// Result is a tool execution outcome. Errors travel as values: IsError
// marks the content as an error report, never a Go error, so the loop
// can hand it back to the model.
type Result struct {
	Content string
	IsError bool
}

// Context carries per-run state into a tool execution.
type Context struct {
	// Cwd is the project root all relative paths resolve against.
	Cwd string
	// SessionID identifies the running session for tools that persist
	// state per session (todo lists).
	SessionID string
}

// Tool is one callable unit of work.
type Tool interface {
	Spec() Spec
	Execute(ctx context.Context, tctx Context, args json.RawMessage) Result
}

// Errorf builds an error Result.
func Errorf(format string, a ...any) Result {
	return Result{Content: fmt.Sprintf(format, a...), IsError: true}
}

// Text builds a success Result.
func Text(content string) Result {
	return Result{Content: content}
}

// MustSchema marshals a schema literal, panicking on programmer error.
// Builtin tool schemas are static maps, so a failure here is a bug.
func MustSchema(schema map[string]any) json.RawMessage {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("marshal tool schema: %v", err))
	}
	return raw
}

// Preview renders tool arguments for traces, events and approval
// prompts: indented JSON capped at 2000 characters.
func Preview(args json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		decoded = string(args)
	}
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		pretty = args
	}
	s := string(pretty)
	if len(s) > 2000 {
		s = s[:2000] + "\n... (truncated)"
	}
	return s
}

// NormalizeArgs coerces model-supplied arguments to a JSON object,
// substituting {} for empty or invalid payloads.
func NormalizeArgs(args json.RawMessage) json.RawMessage {
	if len(args) == 0 || !json.Valid(args) {
		return json.RawMessage("{}")
	}
	return args
}
