package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// requestTimeout bounds each outstanding JSON-RPC request. Replies that
// arrive after the deadline are dropped.
const requestTimeout = 30 * time.Second

// Client runs one MCP server as a child process and speaks JSON-RPC 2.0
// over its stdio, one JSON document per line. A dedicated reader
// goroutine dispatches replies to pending requests by id.
type Client struct {
	config ServerConfig
	logger *slog.Logger

	process *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	pending   map[int64]chan *rpcResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient prepares a client for the given server. Call Start to spawn
// the process.
func NewClient(cfg ServerConfig) *Client {
	return &Client{
		config:   cfg,
		logger:   slog.Default().With("mcp_server", cfg.Name),
		pending:  make(map[int64]chan *rpcResponse),
		stopChan: make(chan struct{}),
	}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.config.Name }

// Start spawns the server process and begins reading its stdout.
func (c *Client) Start(ctx context.Context) error {
	if len(c.config.Command) == 0 {
		return fmt.Errorf("mcp server %s: command is required", c.config.Name)
	}

	c.process = exec.CommandContext(ctx, c.config.Command[0], c.config.Command[1:]...)
	c.process.Env = os.Environ()
	for k, v := range c.config.Env {
		c.process.Env = append(c.process.Env, k+"="+v)
	}
	if c.config.Cwd != "" {
		c.process.Dir = c.config.Cwd
	}

	stdin, err := c.process.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	c.stdin = stdin

	stdout, err := c.process.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, _ := c.process.StderrPipe()

	if err := c.process.Start(); err != nil {
		return fmt.Errorf("start mcp server %s: %w", c.config.Name, err)
	}

	c.connected.Store(true)
	c.logger.Info("started MCP server", "command", c.config.Command[0], "pid", c.process.Process.Pid)

	c.wg.Add(1)
	go c.readLoop(stdout)
	if stderr != nil {
		c.wg.Add(1)
		go c.logStderr(stderr)
	}
	return nil
}

// Close terminates the child process and stops the reader.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.stopChan)
		if c.stdin != nil {
			c.stdin.Close()
		}
		if c.process != nil && c.process.Process != nil {
			c.process.Process.Kill()
		}
		c.wg.Wait()
	})
}

// Call sends one request and blocks for its reply, the context, or the
// request timeout.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !c.connected.Load() {
		return nil, fmt.Errorf("mcp server %s: not connected", c.config.Name)
	}

	rawParams := json.RawMessage(`{}`)
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		rawParams = encoded
	}

	id := c.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: rawParams}

	respChan := make(chan *rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.writeMu.Lock()
	_, err = c.stdin.Write(append(data, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("MCP request timeout: %s", method)
	case <-c.stopChan:
		return nil, fmt.Errorf("mcp server %s: closed", c.config.Name)
	}
}

// ListTools fetches the server's tool catalog via tools/list.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := c.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var entries []toolListEntry
	var wrapped toolListResult
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Tools != nil {
		entries = wrapped.Tools
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode tools/list reply: %w", err)
	}

	tools := make([]ToolInfo, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		tools = append(tools, ToolInfo{Name: e.Name, Description: e.Description, InputSchema: e.schema()})
	}
	return tools, nil
}

// CallTool invokes a remote tool via tools/call and normalizes the
// reply's content field to text.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	if len(arguments) == 0 {
		arguments = json.RawMessage(`{}`)
	}
	params := struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}{Name: name, Arguments: arguments}
	raw, err := c.Call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}
	return normalizeContent(raw), nil
}

func (c *Client) readLoop(stdout io.Reader) {
	defer c.wg.Done()
	defer c.connected.Store(false)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-c.stopChan:
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.processLine(line)
	}
	if err := scanner.Err(); err != nil {
		c.logger.Error("stdout scanner error", "error", err)
	}
}

// processLine dispatches one reply to its pending request. Lines that
// are not id-bearing responses (notifications, junk) are dropped.
func (c *Client) processLine(line string) {
	var resp rpcResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil || resp.ID == nil {
		return
	}

	var id int64
	switch v := resp.ID.(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	default:
		c.logger.Warn("unexpected response id type", "id", resp.ID)
		return
	}

	c.pendingMu.Lock()
	if ch, ok := c.pending[id]; ok {
		select {
		case ch <- &resp:
		default:
		}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

func (c *Client) logStderr(stderr io.Reader) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		select {
		case <-c.stopChan:
			return
		default:
		}
		if line := scanner.Text(); line != "" {
			c.logger.Debug("server stderr", "message", line)
		}
	}
}

// normalizeContent flattens a tools/call result to text: a string
// content is used verbatim, a list of {type,text} fragments is joined by
// newlines, anything else is JSON-serialized.
func normalizeContent(result json.RawMessage) string {
	if len(result) == 0 {
		return "null"
	}
	var top any
	if err := json.Unmarshal(result, &top); err != nil {
		return string(result)
	}

	switch v := top.(type) {
	case string:
		return v
	case map[string]any:
		content, ok := v["content"]
		if !ok {
			return indentJSON(result)
		}
		switch c := content.(type) {
		case string:
			return c
		case []any:
			parts := make([]string, 0, len(c))
			for _, p := range c {
				parts = append(parts, partText(p))
			}
			return strings.Join(parts, "\n")
		default:
			return indentJSON(result)
		}
	default:
		return indentJSON(result)
	}
}

func partText(part any) string {
	if m, ok := part.(map[string]any); ok {
		if m["type"] == "text" {
			switch t := m["text"].(type) {
			case string:
				return t
			case nil:
				return ""
			default:
				encoded, _ := json.Marshal(t)
				return string(encoded)
			}
		}
		encoded, _ := json.Marshal(m)
		return string(encoded)
	}
	if s, ok := part.(string); ok {
		return s
	}
	encoded, _ := json.Marshal(part)
	return string(encoded)
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
