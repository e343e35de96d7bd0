// Package mcp bridges external Model Context Protocol servers into the
// local tool registry. Each server is a child process spoken to over
// line-delimited JSON-RPC 2.0 on stdio.
package mcp

import "encoding/json"

// ServerConfig describes one MCP server from the behavior config. The
// map key supplies Name; Prefix overrides the default tool-name prefix
// mcp.<name>.
type ServerConfig struct {
	Name    string            `json:"-"`
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Prefix  string            `json:"prefix,omitempty"`
}

// ToolInfo is one remote tool advertised by tools/list.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// toolListResult is the tools/list reply. Servers disagree on the schema
// key, so all three spellings are accepted.
type toolListResult struct {
	Tools []toolListEntry `json:"tools"`
}

type toolListEntry struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	InputSchemaCamel json.RawMessage `json:"inputSchema"`
	InputSchemaSnake json.RawMessage `json:"input_schema"`
	Parameters       json.RawMessage `json:"parameters"`
}

func (e toolListEntry) schema() json.RawMessage {
	for _, s := range []json.RawMessage{e.InputSchemaCamel, e.InputSchemaSnake, e.Parameters} {
		if len(s) > 0 && string(s) != "null" {
			return s
		}
	}
	return json.RawMessage(`{}`)
}
