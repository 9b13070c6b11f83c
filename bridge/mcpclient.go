package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/types"
)

const (
	clientName    = "actorglue"
	clientVersion = "1.0.0"
)

// mcpClient is the subset of the mcp-go client the bridge uses
type mcpClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPClient is a session with the remote tool-serving process
type MCPClient struct {
	name   string
	client mcpClient
	logger *slog.Logger
}

// NewMCPClient starts the configured server process and initializes the
// session. extraEnv is added to the process environment on top of cfg.Env.
func NewMCPClient(ctx context.Context, cfg config.MCPServerConfig, extraEnv map[string]string, logger *slog.Logger) (*MCPClient, error) {
	command, args, err := cfg.Argv()
	if err != nil {
		return nil, &types.BridgeError{Operation: "mcp_start", Message: "invalid server command", Err: err}
	}

	logger.Info("starting mcp server", "name", cfg.Name, "command", command, "args", args)
	c, err := mcpclient.NewStdioMCPClient(command, envSlice(cfg.Env, extraEnv), args...)
	if err != nil {
		return nil, &types.BridgeError{Operation: "mcp_start", Message: "failed to start " + command, Err: err}
	}

	client, err := newMCPClient(ctx, cfg.Name, c, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newMCPClient initializes an already-connected client
func newMCPClient(ctx context.Context, name string, c mcpClient, logger *slog.Logger) (*MCPClient, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}

	result, err := c.Initialize(ctx, initReq)
	if err != nil {
		c.Close()
		return nil, &types.BridgeError{Operation: "mcp_initialize", Message: "handshake failed", Err: err}
	}

	logger.Info("mcp server connected",
		"name", name,
		"server", result.ServerInfo.Name,
		"version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion)

	return &MCPClient{name: name, client: c, logger: logger}, nil
}

// ListTools returns the server's current tool catalogue
func (c *MCPClient) ListTools(ctx context.Context) ([]types.ToolDescriptor, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", c.name, err)
	}

	descs := make([]types.ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		descs = append(descs, descriptorFromMCP(t))
	}
	c.logger.Debug("mcp tools listed", "server", c.name, "count", len(descs))
	return descs, nil
}

// CallTool invokes a tool by its server-side name
func (c *MCPClient) CallTool(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	var arguments map[string]any
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("arguments for %s are not a JSON object: %w", name, err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	c.logger.Debug("mcp tool call", "server", c.name, "tool", name)
	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", name, c.name, err)
	}
	return result, nil
}

// Close terminates the session and the server process
func (c *MCPClient) Close() error {
	c.logger.Info("closing mcp server", "name", c.name)
	return c.client.Close()
}

func descriptorFromMCP(t mcp.Tool) types.ToolDescriptor {
	schema := json.RawMessage(`{"type":"object","properties":{}}`)
	switch {
	case len(t.RawInputSchema) > 0:
		schema = t.RawInputSchema
	case t.InputSchema.Properties != nil || t.InputSchema.Required != nil:
		if data, err := json.Marshal(t.InputSchema); err == nil {
			schema = data
		}
	}

	desc := t.Description
	if desc == "" {
		desc = fmt.Sprintf("Remote tool %q", t.Name)
	}
	return types.ToolDescriptor{Name: t.Name, Description: desc, InputSchema: schema}
}

// flattenContent joins text blocks with newlines and JSON-encodes anything else
func flattenContent(result *mcp.CallToolResult) string {
	parts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// envSlice merges env maps into KEY=VALUE pairs; later maps win
func envSlice(envs ...map[string]string) []string {
	merged := map[string]string{}
	for _, env := range envs {
		for k, v := range env {
			if v != "" {
				merged[k] = v
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+merged[k])
	}
	return result
}
