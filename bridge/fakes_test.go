package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/types"
)

// scriptedProvider replays canned responses in order, repeating the last one
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*types.LLMResponse
	errs      map[int]error
	requests  []llm.Request
}

func (p *scriptedProvider) Chat(_ context.Context, req llm.Request) (*types.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	i := len(p.requests) - 1
	if err := p.errs[i]; err != nil {
		return nil, err
	}
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func textResponse(text string) *types.LLMResponse {
	return &types.LLMResponse{StopReason: types.StopEndTurn, Blocks: []types.Block{types.TextBlock(text)}}
}

func toolUse(calls ...types.Block) *types.LLMResponse {
	return &types.LLMResponse{StopReason: types.StopToolUse, Blocks: calls}
}

func callBlock(id, name, args string) types.Block {
	return types.Block{Kind: types.BlockToolCall, CallID: id, ToolName: name, Arguments: json.RawMessage(args)}
}

// funcTool is a local executor backed by a function
type funcTool struct {
	desc types.ToolDescriptor
	fn   func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *funcTool) Descriptor() types.ToolDescriptor { return f.desc }
func (f *funcTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return f.fn(ctx, args)
}

func newFuncTool(name string, fn func(ctx context.Context, args json.RawMessage) (string, error)) *funcTool {
	return &funcTool{
		desc: types.ToolDescriptor{
			Name:        name,
			Description: name + " tool",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
		},
		fn: fn,
	}
}

// fakeCatalog is an in-memory tool-serving process
type fakeCatalog struct {
	mu      sync.Mutex
	tools   []types.ToolDescriptor
	listErr error
	results map[string]*mcp.CallToolResult
	callErr error
	called  []string
}

func (c *fakeCatalog) ListTools(context.Context) ([]types.ToolDescriptor, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.tools, nil
}

func (c *fakeCatalog) CallTool(_ context.Context, name string, _ json.RawMessage) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	c.called = append(c.called, name)
	c.mu.Unlock()
	if c.callErr != nil {
		return nil, c.callErr
	}
	if r, ok := c.results[name]; ok {
		return r, nil
	}
	return nil, errors.New("unknown tool " + name)
}

// fakeMCP stands in for the mcp-go client
type fakeMCP struct {
	initErr  error
	tools    []mcp.Tool
	lastCall mcp.CallToolRequest
	result   *mcp.CallToolResult
	closed   bool
}

func (f *fakeMCP) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		ServerInfo:      mcp.Implementation{Name: "fake-actors", Version: "0.1.0"},
	}, nil
}

func (f *fakeMCP) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeMCP) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.lastCall = req
	return f.result, nil
}

func (f *fakeMCP) Close() error {
	f.closed = true
	return nil
}
