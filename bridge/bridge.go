package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/tracing"
	"github.com/sammcj/actorglue/types"
)

// Sentinel answers returned by Run instead of errors
const (
	MaxTurnsReached = "Error: Maximum tool turns reached."
	modelErrPrefix  = "Error calling model: "
)

// State is where the agent loop stands within a Run
type State string

const (
	StateIdle             State = "IDLE"
	StateAwaitingModel    State = "AWAITING_MODEL"
	StateDispatchingTools State = "DISPATCHING_TOOLS"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// Bridge drives the conversation between the model and the tools
type Bridge struct {
	provider  llm.Provider
	registry  *Registry
	conv      *types.Conversation
	model     string
	system    string
	maxTokens int
	maxTurns  int
	logger    *slog.Logger

	runMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	closers []io.Closer
}

// New creates a bridge. Closers (the MCP session, the dataset) are released by Close.
func New(provider llm.Provider, registry *Registry, cfg config.LLMConfig, logger *slog.Logger, closers ...io.Closer) *Bridge {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 15
	}
	return &Bridge{
		provider:  provider,
		registry:  registry,
		conv:      types.NewConversation(),
		model:     cfg.Model,
		system:    cfg.SystemPrompt,
		maxTokens: cfg.MaxTokens,
		maxTurns:  maxTurns,
		logger:    logger,
		state:     StateIdle,
		closers:   closers,
	}
}

// Run answers one user query, calling tools as the model requests, and
// returns the final text or a sentinel error string. Calls are serialized.
func (b *Bridge) Run(ctx context.Context, query string) string {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "agent.run", trace.WithAttributes(
		tracing.StringAttr("llm.model", b.model),
	))
	defer span.End()

	start := b.conv.Len()
	b.conv.Append(types.Turn{Role: types.RoleUser, Blocks: []types.Block{types.TextBlock(query)}})
	b.setState(StateAwaitingModel)

	tools, err := b.registry.List(ctx)
	if err != nil {
		b.logger.Warn("continuing with local tools only", "error", err)
	}
	b.logger.Debug("tools available", "count", len(tools))

	for cycle := 1; cycle <= b.maxTurns; cycle++ {
		b.setState(StateAwaitingModel)
		resp, err := b.provider.Chat(ctx, llm.Request{
			Model:     b.model,
			System:    b.system,
			Turns:     b.conv.Turns(),
			Tools:     tools,
			MaxTokens: b.maxTokens,
		})
		if err != nil {
			b.setState(StateFailed)
			tracing.RecordError(span, err)
			b.logger.Error("model call failed", "cycle", cycle, "error", err)
			if cycle == 1 {
				// nothing answered the query yet; a retry starts from the same transcript
				b.conv.Truncate(start)
			}
			return modelErrPrefix + err.Error()
		}

		turn := resp.Turn()
		b.conv.Append(turn)

		calls := turn.ToolCalls()
		if resp.StopReason != types.StopToolUse || len(calls) == 0 {
			if len(calls) > 0 {
				// a truncated response may still carry calls; each needs a result
				b.logger.Warn("tool calls not executed", "stop_reason", resp.StopReason, "count", len(calls))
				b.conv.Append(unanswered(calls, resp.StopReason))
			}
			b.setState(StateDone)
			tracing.SetOK(span)
			b.logger.Info("run complete", "cycles", cycle, "stop_reason", resp.StopReason)
			return turn.Text()
		}

		b.setState(StateDispatchingTools)
		b.logger.Info("dispatching tool calls", "cycle", cycle, "count", len(calls))
		results := make([]types.Block, 0, len(calls))
		for _, call := range calls {
			results = append(results, b.registry.Dispatch(ctx, call).Block())
		}
		b.conv.Append(types.Turn{Role: types.RoleToolResult, Blocks: results})
	}

	b.setState(StateFailed)
	b.logger.Warn("tool turn budget exhausted", "max_turns", b.maxTurns)
	tracing.RecordError(span, errors.New("maximum tool turns reached"))
	return MaxTurnsReached
}

// unanswered builds the tool_result turn for calls the loop will not run
func unanswered(calls []types.ToolCallRequest, reason types.StopReason) types.Turn {
	blocks := make([]types.Block, 0, len(calls))
	for _, call := range calls {
		blocks = append(blocks, types.ToolCallResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Error: tool call not executed (response stopped: %s)", reason),
			IsError: true,
		}.Block())
	}
	return types.Turn{Role: types.RoleToolResult, Blocks: blocks}
}

// State reports the state the loop is in, or ended the last Run in
func (b *Bridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
}

// Transcript returns a copy of the conversation so far
func (b *Bridge) Transcript() []types.Turn {
	return b.conv.Turns()
}

// Reset starts a fresh conversation
func (b *Bridge) Reset() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	b.conv.Reset()
	b.setState(StateIdle)
}

// Registry returns the tool registry
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// Close releases the bridge's resources
func (b *Bridge) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
