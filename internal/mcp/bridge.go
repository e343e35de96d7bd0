package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// remoteTool adapts one remote MCP tool to the local Tool interface.
type remoteTool struct {
	spec       tools.Spec
	client     *Client
	remoteName string
}

func (t *remoteTool) Spec() tools.Spec { return t.spec }

func (t *remoteTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	content, err := t.client.CallTool(ctx, t.remoteName, args)
	if err != nil {
		return tools.Errorf("MCP tool %s failed: %v", t.spec.Name, err)
	}
	return tools.Text(content)
}

// RegisterServers starts each configured server and registers its remote
// tools under <prefix>.<remote-name> with permission class mcp. A server
// that fails to start or list tools is logged and skipped; the returned
// clients are the ones that made it up and must be closed by the caller.
func RegisterServers(ctx context.Context, registry *tools.Registry, servers []ServerConfig) []*Client {
	var clients []*Client
	for _, cfg := range servers {
		client := NewClient(cfg)
		if err := client.Start(ctx); err != nil {
			slog.Warn("skipping MCP server", "server", cfg.Name, "error", err)
			continue
		}
		infos, err := client.ListTools(ctx)
		if err != nil {
			slog.Warn("skipping MCP server", "server", cfg.Name, "error", err)
			client.Close()
			continue
		}
		clients = append(clients, client)

		prefix := cfg.Prefix
		if prefix == "" {
			prefix = "mcp." + cfg.Name
		}
		for _, info := range infos {
			spec := tools.Spec{
				Name:        prefix + "." + info.Name,
				Description: strings.TrimSpace("[MCP:" + cfg.Name + "] " + info.Description),
				Parameters:  info.InputSchema,
				Permission:  "mcp",
			}
			if err := registry.Register(&remoteTool{spec: spec, client: client, remoteName: info.Name}); err != nil {
				slog.Warn("skipping MCP tool", "tool", spec.Name, "error", err)
			}
		}
	}
	return clients
}
