// Package mcpserver exposes the local tools to other MCP clients over stdio
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/oklog/ulid/v2"

	"github.com/sammcj/actorglue/bridge"
	"github.com/sammcj/actorglue/types"
)

const serverName = "actorglue-tools"

// MCPServer serves the registry's local tools
type MCPServer struct {
	server   *server.MCPServer
	registry *bridge.Registry
	logger   *slog.Logger
}

// NewMCPServer registers every local tool of registry. Calls go through
// Registry.Dispatch so they are validated, traced and time limited the same
// way as calls made by the agent loop.
func NewMCPServer(registry *bridge.Registry, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		server: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(true),
			server.WithLogging(),
		),
		registry: registry,
		logger:   logger,
	}

	for _, e := range registry.Local() {
		desc := e.Descriptor()
		s.server.AddTool(mcp.NewToolWithRawSchema(desc.Name, desc.Description, desc.InputSchema), s.handleTool)
		logger.Debug("exposing tool", "tool", desc.Name)
	}

	s.server.AddNotificationHandler("notifications/initialized", s.handleNotification)

	logger.Info("mcp server created", "tools", len(registry.Local()))
	return s
}

func (s *MCPServer) handleTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := json.Marshal(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	result := s.registry.Dispatch(ctx, types.ToolCallRequest{
		ID:        ulid.Make().String(),
		Name:      request.Params.Name,
		Arguments: args,
	})
	if result.IsError {
		s.logger.Warn("tool call failed", "tool", request.Params.Name, "error", result.Content)
		return mcp.NewToolResultError(result.Content), nil
	}
	return mcp.NewToolResultText(result.Content), nil
}

func (s *MCPServer) handleNotification(_ context.Context, notification mcp.JSONRPCNotification) {
	s.logger.Debug("received notification", "method", notification.Method)
}

// Serve answers requests on in and out until ctx is cancelled or in is closed
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting mcp server on stdio")
	stdio := server.NewStdioServer(s.server)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("mcp server stopped")
	return nil
}
