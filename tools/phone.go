package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/retell"
)

// CallPlacer places phone calls
type CallPlacer interface {
	Call(ctx context.Context, req retell.CallRequest) (*retell.Outcome, error)
}

// PhoneCallArgs are the place_phone_call arguments
type PhoneCallArgs struct {
	ToNumber         string         `mapstructure:"to_number"`
	FromNumber       string         `mapstructure:"from_number"`
	AgentID          string         `mapstructure:"agent_id"`
	DynamicVariables map[string]any `mapstructure:"dynamic_variables"`
}

// NewPhoneCall creates the place_phone_call tool. from_number and agent_id
// fall back to the configured defaults.
func NewPhoneCall(p CallPlacer, defaults config.RetellConfig) *Tool[PhoneCallArgs] {
	spec := mcp.NewTool("place_phone_call",
		mcp.WithDescription("Place an outbound phone call handled by a Retell AI voice agent."),
		mcp.WithString("to_number", mcp.Required(), mcp.Description("Number to call in E.164 format, e.g. +12137774445")),
		mcp.WithString("from_number", mcp.Description("Number to call from; defaults to the configured number")),
		mcp.WithString("agent_id", mcp.Description("Retell agent id; defaults to the configured agent")),
		mcp.WithObject("dynamic_variables", mcp.Description("Values substituted into the agent prompt, e.g. {\"customer_name\": \"Sam\"}")),
	)

	return New(spec, func(ctx context.Context, args PhoneCallArgs) (string, error) {
		req := retell.CallRequest{
			FromNumber: config.FirstNonEmpty(args.FromNumber, defaults.FromNumber),
			ToNumber:   args.ToNumber,
			AgentID:    config.FirstNonEmpty(args.AgentID, defaults.AgentID),
		}
		if len(args.DynamicVariables) > 0 {
			req.DynamicVariables = make(map[string]string, len(args.DynamicVariables))
			for k, v := range args.DynamicVariables {
				req.DynamicVariables[k] = fmt.Sprint(v)
			}
		}

		out, err := p.Call(ctx, req)
		if err != nil {
			return "", err
		}
		return out.Summary(), nil
	})
}
