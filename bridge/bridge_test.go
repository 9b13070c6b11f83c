package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/logging"
	"github.com/sammcj/actorglue/types"
)

func newTestBridge(t *testing.T, p *scriptedProvider, remote RemoteCatalog, tools ...Executor) *Bridge {
	t.Helper()
	reg := NewRegistry(remote, time.Second, logging.Discard())
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	cfg := config.DefaultConfig().LLM
	return New(p, reg, cfg, logging.Discard())
}

// assertToolResultsMatch checks that every tool-use assistant turn is followed
// by one tool_result turn answering each call in order
func assertToolResultsMatch(t *testing.T, turns []types.Turn) {
	t.Helper()
	for i, turn := range turns {
		calls := turn.ToolCalls()
		if turn.Role != types.RoleAssistant || len(calls) == 0 {
			continue
		}
		require.Less(t, i+1, len(turns), "tool calls without results")
		next := turns[i+1]
		require.Equal(t, types.RoleToolResult, next.Role)
		require.Len(t, next.Blocks, len(calls))
		for j, call := range calls {
			assert.Equal(t, types.BlockToolResult, next.Blocks[j].Kind)
			assert.Equal(t, call.ID, next.Blocks[j].CallID)
		}
	}
}

func TestRunPlainTextNoTools(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{textResponse("I can't check live weather.")}}
	dispatched := 0
	b := newTestBridge(t, p, nil, newFuncTool("create_gmail_draft", func(context.Context, json.RawMessage) (string, error) {
		dispatched++
		return "", nil
	}))

	out := b.Run(context.Background(), "what's the weather")

	assert.Equal(t, "I can't check live weather.", out)
	assert.Equal(t, 1, p.calls())
	assert.Zero(t, dispatched)
	assert.Equal(t, StateDone, b.State())

	turns := b.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
}

func TestRunSingleToolCall(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{
		toolUse(callBlock("call_1", "lookup", `{"q":"rate confirmations"}`)),
		textResponse("Found 3 emails."),
	}}
	var gotArgs string
	b := newTestBridge(t, p, nil, newFuncTool("lookup", func(_ context.Context, args json.RawMessage) (string, error) {
		gotArgs = string(args)
		return "3 results", nil
	}))

	out := b.Run(context.Background(), "how many rate confirmations?")

	assert.Equal(t, "Found 3 emails.", out)
	assert.JSONEq(t, `{"q":"rate confirmations"}`, gotArgs)
	assert.Equal(t, 2, p.calls())

	turns := b.Transcript()
	require.Len(t, turns, 4)
	assert.Equal(t, types.RoleToolResult, turns[2].Role)
	require.Len(t, turns[2].Blocks, 1)
	assert.Equal(t, "3 results", turns[2].Blocks[0].Text)
	assertToolResultsMatch(t, turns)

	// the second model call sees the tool result and the same tool list
	second := p.requests[1]
	assert.Len(t, second.Turns, 3)
	assert.Equal(t, p.requests[0].Tools, second.Tools)
}

func TestRunToolFailureIsIsolated(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{
		toolUse(
			callBlock("a", "ok_tool", `{}`),
			callBlock("b", "broken_tool", `{}`),
			callBlock("c", "missing_tool", `{}`),
			callBlock("d", "ok_tool", `{"q":"again"}`),
		),
		textResponse("done"),
	}}
	b := newTestBridge(t, p, nil,
		newFuncTool("ok_tool", func(context.Context, json.RawMessage) (string, error) { return "fine", nil }),
		newFuncTool("broken_tool", func(context.Context, json.RawMessage) (string, error) { return "", errors.New("smtp down") }),
	)

	assert.Equal(t, "done", b.Run(context.Background(), "do four things"))

	turns := b.Transcript()
	assertToolResultsMatch(t, turns)
	results := turns[2].Blocks
	require.Len(t, results, 4)
	assert.Equal(t, "fine", results[0].Text)
	assert.Equal(t, "Error executing tool: smtp down", results[1].Text)
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[2].Text, "tool not found")
	assert.Equal(t, "fine", results[3].Text)
}

func TestRunMaxTurnsReached(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{
		toolUse(callBlock("loop", "ok_tool", `{}`)),
	}}
	reg := NewRegistry(nil, time.Second, logging.Discard())
	require.NoError(t, reg.Register(newFuncTool("ok_tool", func(context.Context, json.RawMessage) (string, error) { return "again", nil })))
	cfg := config.DefaultConfig().LLM
	cfg.MaxTurns = 3
	b := New(p, reg, cfg, logging.Discard())

	out := b.Run(context.Background(), "loop forever")

	assert.Equal(t, MaxTurnsReached, out)
	assert.Equal(t, 3, p.calls())
	assert.Equal(t, StateFailed, b.State())

	turns := b.Transcript()
	assert.Len(t, turns, 1+3*2)
	assertToolResultsMatch(t, turns)
}

func TestRunModelErrorLeavesTranscriptClean(t *testing.T) {
	p := &scriptedProvider{
		responses: []*types.LLMResponse{textResponse("recovered")},
		errs:      map[int]error{0: errors.New("401 unauthorized")},
	}
	b := newTestBridge(t, p, nil)

	out := b.Run(context.Background(), "hello")
	assert.Equal(t, "Error calling model: 401 unauthorized", out)
	assert.Equal(t, StateFailed, b.State())
	assert.Empty(t, b.Transcript(), "the unanswered query is rolled back")

	// the session carries on with the next query
	assert.Equal(t, "recovered", b.Run(context.Background(), "hello again"))
	assert.Equal(t, StateDone, b.State())
	turns := b.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, "hello again", turns[0].Text())
}

func TestRunToolUseWithoutCallsEnds(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{
		{StopReason: types.StopToolUse, Blocks: []types.Block{types.TextBlock("nothing to call")}},
	}}
	b := newTestBridge(t, p, nil)

	assert.Equal(t, "nothing to call", b.Run(context.Background(), "x"))
	assert.Equal(t, 1, p.calls())
}

func TestRunAnswersCallsCutOffByStopReason(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{
		{StopReason: "max_tokens", Blocks: []types.Block{
			types.TextBlock("let me look"),
			callBlock("c1", "build_apify_actor", `{"name":"rate-scraper"}`),
		}},
		textResponse("second answer"),
	}}
	dispatched := 0
	b := newTestBridge(t, p, nil, newFuncTool("build_apify_actor", func(context.Context, json.RawMessage) (string, error) {
		dispatched++
		return "", nil
	}))

	assert.Equal(t, "let me look", b.Run(context.Background(), "build it"))
	assert.Zero(t, dispatched)
	assert.Equal(t, StateDone, b.State())

	turns := b.Transcript()
	require.Len(t, turns, 3)
	assertToolResultsMatch(t, turns)
	assert.True(t, turns[2].Blocks[0].IsError)
	assert.Equal(t, "Error: tool call not executed (response stopped: max_tokens)", turns[2].Blocks[0].Text)

	// the next query sees a consistent transcript
	assert.Equal(t, "second answer", b.Run(context.Background(), "try again"))
	assertToolResultsMatch(t, b.Transcript())
}

func TestRunPanickingToolKeepsSiblings(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{
		toolUse(callBlock("a", "boom", `{}`), callBlock("b", "ok_tool", `{}`)),
		textResponse("done"),
	}}
	b := newTestBridge(t, p, nil,
		newFuncTool("boom", func(context.Context, json.RawMessage) (string, error) {
			var m map[string]int
			m["x"] = 1
			return "", nil
		}),
		newFuncTool("ok_tool", func(context.Context, json.RawMessage) (string, error) { return "fine", nil }),
	)

	var out string
	require.NotPanics(t, func() { out = b.Run(context.Background(), "go") })
	assert.Equal(t, "done", out)

	turns := b.Transcript()
	assertToolResultsMatch(t, turns)
	results := turns[2].Blocks
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Text, "Error executing tool: panic: assignment to entry in nil map")
	assert.Equal(t, "fine", results[1].Text)
}

func TestRunMergesRemoteAndLocalTools(t *testing.T) {
	remote := &fakeCatalog{
		tools: []types.ToolDescriptor{{Name: "apify/rag-web-browser", InputSchema: json.RawMessage(`{"type":"object"}`)}},
		results: map[string]*mcp.CallToolResult{
			"apify/rag-web-browser": {Content: []mcp.Content{mcp.NewTextContent("page one"), mcp.NewTextContent("page two")}},
		},
	}
	p := &scriptedProvider{responses: []*types.LLMResponse{
		toolUse(callBlock("r1", "apify_rag-web-browser", `{"query":"go"}`)),
		textResponse("summarised"),
	}}
	b := newTestBridge(t, p, remote, newFuncTool("query_dataset", func(context.Context, json.RawMessage) (string, error) { return "", nil }))

	assert.Equal(t, "summarised", b.Run(context.Background(), "browse"))

	names := []string{}
	for _, d := range p.requests[0].Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"apify_rag-web-browser", "query_dataset"}, names)
	assert.Equal(t, []string{"apify/rag-web-browser"}, remote.called)
	assert.Equal(t, "page one\npage two", b.Transcript()[2].Blocks[0].Text)
}

func TestResetClearsTranscript(t *testing.T) {
	p := &scriptedProvider{responses: []*types.LLMResponse{textResponse("hi")}}
	b := newTestBridge(t, p, nil)
	b.Run(context.Background(), "hello")
	require.Len(t, b.Transcript(), 2)

	b.Reset()
	assert.Empty(t, b.Transcript())
	assert.Equal(t, StateIdle, b.State())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseReleasesResources(t *testing.T) {
	closed := 0
	reg := NewRegistry(nil, 0, logging.Discard())
	b := New(&scriptedProvider{}, reg, config.DefaultConfig().LLM, logging.Discard(),
		closerFunc(func() error { closed++; return nil }),
		closerFunc(func() error { closed++; return errors.New("already closed") }),
	)

	err := b.Close()
	assert.ErrorContains(t, err, "already closed")
	assert.Equal(t, 2, closed)
	assert.NoError(t, b.Close(), "second close is a no-op")
}
