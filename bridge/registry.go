package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/tracing"
	"github.com/sammcj/actorglue/types"
)

const (
	// NoOutput replaces an empty tool result so the model never sees nothing
	NoOutput = "Tool executed successfully (no text output)."

	maxToolNameLength = 64
)

// Executor is a callable tool
type Executor interface {
	Descriptor() types.ToolDescriptor
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// RemoteCatalog is the remote tool-serving process
type RemoteCatalog interface {
	ListTools(ctx context.Context) ([]types.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error)
}

// CallTracker is told about every dispatch, e.g. to report slow calls
type CallTracker interface {
	Track(name string) uint64
	Done(id uint64)
}

// Registry presents local and remote tools under one namespace
type Registry struct {
	remote      RemoteCatalog
	callTimeout time.Duration
	tracker     CallTracker
	logger      *slog.Logger

	mu        sync.RWMutex
	local     map[string]Executor
	order     []string
	validator *llm.Validator
	// exposed remote name -> executor, rebuilt by List
	remoteMap map[string]Executor
}

// NewRegistry creates a registry. remote may be nil when no tool server is configured.
func NewRegistry(remote RemoteCatalog, callTimeout time.Duration, logger *slog.Logger) *Registry {
	v, _ := llm.NewValidator(nil)
	return &Registry{
		remote:      remote,
		callTimeout: callTimeout,
		logger:      logger,
		local:       make(map[string]Executor),
		validator:   v,
		remoteMap:   make(map[string]Executor),
	}
}

// SetTracker installs a tracker notified around each dispatch
func (r *Registry) SetTracker(t CallTracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker = t
}

// Register adds a local tool
func (r *Registry) Register(e Executor) error {
	desc := e.Descriptor()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.local[desc.Name]; exists {
		return fmt.Errorf("local tool %s already registered", desc.Name)
	}

	descs := make([]types.ToolDescriptor, 0, len(r.order)+1)
	for _, name := range r.order {
		descs = append(descs, r.local[name].Descriptor())
	}
	v, err := llm.NewValidator(append(descs, desc))
	if err != nil {
		return err
	}

	r.local[desc.Name] = e
	r.order = append(r.order, desc.Name)
	r.validator = v
	r.logger.Debug("local tool registered", "tool", desc.Name)
	return nil
}

// Local returns the local tools in registration order
func (r *Registry) Local() []Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Executor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.local[name])
	}
	return out
}

// List merges a fresh remote catalogue with the local tools. Local tools
// shadow remote tools of the same name. When the remote listing fails the
// local tools are still returned together with the error.
func (r *Registry) List(ctx context.Context) ([]types.ToolDescriptor, error) {
	var (
		descs     []types.ToolDescriptor
		remoteMap = make(map[string]Executor)
		listErr   error
	)

	r.mu.RLock()
	local := make(map[string]Executor, len(r.local))
	for name, e := range r.local {
		local[name] = e
	}
	order := append([]string(nil), r.order...)
	r.mu.RUnlock()

	if r.remote != nil {
		remoteTools, err := r.remote.ListTools(ctx)
		if err != nil {
			listErr = fmt.Errorf("remote catalogue unavailable: %w", err)
		}
		for _, d := range remoteTools {
			name := sanitizeToolName(d.Name)
			if _, shadowed := local[name]; shadowed {
				r.logger.Warn("local tool shadows remote tool", "tool", name, "remote_name", d.Name)
				continue
			}
			if prev, dup := remoteMap[name]; dup {
				r.logger.Warn("remote tool name collides after sanitizing, keeping first",
					"tool", name, "kept", prev.(*remoteTool).original, "dropped", d.Name)
				continue
			}

			exposed := d
			exposed.Name = name
			remoteMap[name] = &remoteTool{desc: exposed, original: d.Name, remote: r.remote}
			descs = append(descs, exposed)
		}
	}

	for _, name := range order {
		descs = append(descs, local[name].Descriptor())
	}

	r.mu.Lock()
	r.remoteMap = remoteMap
	r.mu.Unlock()

	return descs, listErr
}

// Dispatch executes one tool call. It always returns a result for call.ID;
// failures become error text.
func (r *Registry) Dispatch(ctx context.Context, call types.ToolCallRequest) (res types.ToolCallResult) {
	ctx, span := tracing.StartSpan(ctx, "tool.dispatch", trace.WithAttributes(
		tracing.StringAttr("tool.name", call.Name),
		tracing.StringAttr("tool.call_id", call.ID),
	))
	defer span.End()

	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	r.mu.RLock()
	tracker := r.tracker
	r.mu.RUnlock()
	if tracker != nil {
		handle := tracker.Track(call.Name)
		defer tracker.Done(handle)
	}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			tracing.RecordError(span, err)
			r.logger.Error("tool call panicked", "tool", call.Name, "call_id", call.ID, "panic", p)
			res = types.ToolCallResult{CallID: call.ID, Content: fmt.Sprintf("Error executing tool: %v", err), IsError: true}
		}
	}()

	start := time.Now()
	content, err := r.execute(ctx, call)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return types.ToolCallResult{CallID: call.ID, Content: fmt.Sprintf("Error executing tool: %v", err), IsError: true}
	}

	if content == "" {
		content = NoOutput
	}
	r.logger.Info("tool call completed", "tool", call.Name, "call_id", call.ID, "duration", time.Since(start))
	tracing.SetOK(span)
	return types.ToolCallResult{CallID: call.ID, Content: content}
}

func (r *Registry) execute(ctx context.Context, call types.ToolCallRequest) (string, error) {
	r.mu.RLock()
	localExec, isLocal := r.local[call.Name]
	remoteExec, isRemote := r.remoteMap[call.Name]
	validator := r.validator
	r.mu.RUnlock()

	switch {
	case isLocal:
		if err := validator.ValidateCall(call); err != nil {
			return "", err
		}
		return localExec.Execute(ctx, call.Arguments)
	case isRemote:
		return remoteExec.Execute(ctx, call.Arguments)
	case r.remote != nil:
		// not in the last listing; the server may still know it
		rt := &remoteTool{original: call.Name, remote: r.remote}
		return rt.Execute(ctx, call.Arguments)
	default:
		return "", fmt.Errorf("%w: %s", types.ErrToolNotFound, call.Name)
	}
}

// remoteTool forwards calls to the tool-serving process
type remoteTool struct {
	desc     types.ToolDescriptor
	original string
	remote   RemoteCatalog
}

func (t *remoteTool) Descriptor() types.ToolDescriptor { return t.desc }

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	result, err := t.remote.CallTool(ctx, t.original, args)
	if err != nil {
		return "", err
	}
	text := flattenContent(result)
	if result.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// sanitizeToolName maps a remote tool name onto the characters model
// endpoints accept in tool names
func sanitizeToolName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	if len(out) > maxToolNameLength {
		out = out[:maxToolNameLength]
	}
	return string(out)
}
