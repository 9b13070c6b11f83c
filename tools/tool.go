// Package tools holds the local tools offered to the model next to the remote catalogue
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mitchellh/mapstructure"

	"github.com/sammcj/actorglue/types"
)

// Validator is implemented by argument types that check themselves
type Validator interface {
	Validate() error
}

// Handler runs a tool with decoded arguments and returns its text output
type Handler[Req any] func(ctx context.Context, req Req) (string, error)

// Tool adapts a typed handler to the registry's executor interface.
// Arguments are decoded into Req with mapstructure tags.
type Tool[Req any] struct {
	spec    mcp.Tool
	handler Handler[Req]
}

// New creates a tool from its MCP spec and handler
func New[Req any](spec mcp.Tool, handler Handler[Req]) *Tool[Req] {
	return &Tool[Req]{spec: spec, handler: handler}
}

// Descriptor returns the name, description and JSON schema advertised to the model
func (t *Tool[Req]) Descriptor() types.ToolDescriptor {
	schema, err := json.Marshal(t.spec.InputSchema)
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return types.ToolDescriptor{
		Name:        t.spec.Name,
		Description: t.spec.Description,
		InputSchema: schema,
	}
}

// Execute decodes args, validates them and runs the handler
func (t *Tool[Req]) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	raw := map[string]any{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &raw); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	var req Req
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return "", err
	}
	if err := dec.Decode(raw); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return "", fmt.Errorf("%s validation failed: %w", t.spec.Name, err)
		}
	}

	return t.handler(ctx, req)
}
