package llm

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/trace"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/tracing"
	"github.com/sammcj/actorglue/types"
)

// AnthropicProvider talks to the Anthropic Messages API
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropic creates a provider for the Anthropic Messages API
func NewAnthropic(cfg config.LLMConfig, logger *slog.Logger) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Chat sends the transcript and tool list and converts the reply
func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (*types.LLMResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	ctx, span := tracing.StartSpan(ctx, "llm.chat", trace.WithAttributes(
		tracing.StringAttr("llm.provider", p.Name()),
		tracing.StringAttr("llm.model", req.Model),
	))
	defer span.End()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens(req.MaxTokens)),
		Messages:  toAnthropicMessages(req.Turns),
		Tools:     toAnthropicTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, &types.LLMError{Provider: p.Name(), Message: "messages request failed", Err: err}
	}

	resp := fromAnthropicMessage(msg)
	p.logger.Debug("llm response",
		"provider", p.Name(),
		"stop_reason", resp.StopReason,
		"blocks", len(resp.Blocks),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens)
	tracing.SetOK(span)
	return resp, nil
}

// toAnthropicMessages maps turns onto user/assistant messages. Tool-result
// turns travel as user messages, and adjacent same-role turns are merged so
// a new query after an exhausted run still alternates.
func toAnthropicMessages(turns []types.Turn) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, t := range turns {
		role := anthropic.MessageParamRoleUser
		if t.Role == types.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		var blocks []anthropic.ContentBlockParamUnion
		for _, b := range t.Blocks {
			switch b.Kind {
			case types.BlockText:
				if b.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				}
			case types.BlockToolCall:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.CallID, rawArgs(b.Arguments), b.ToolName))
			case types.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.CallID, b.Text, b.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func toAnthropicTools(tools []types.ToolDescriptor) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: toAnthropicSchema(t.InputSchema),
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

// toAnthropicSchema keeps keywords beyond properties and required ($defs,
// additionalProperties, ...) as extra fields so remote schemas survive intact.
func toAnthropicSchema(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	var fields map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &fields)
	}

	param := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
	if props, ok := fields["properties"]; ok && props != nil {
		param.Properties = props
	}
	if req, ok := fields["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				param.Required = append(param.Required, name)
			}
		}
	}

	delete(fields, "type")
	delete(fields, "properties")
	delete(fields, "required")
	if len(fields) > 0 {
		param.ExtraFields = fields
	}
	return param
}

func fromAnthropicMessage(msg *anthropic.Message) *types.LLMResponse {
	resp := &types.LLMResponse{StopReason: types.StopReason(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Blocks = append(resp.Blocks, types.TextBlock(block.Text))
		case "tool_use":
			resp.Blocks = append(resp.Blocks, types.Block{
				Kind:      types.BlockToolCall,
				CallID:    block.ID,
				ToolName:  block.Name,
				Arguments: append(json.RawMessage(nil), block.Input...),
			})
		}
	}
	return resp
}

func rawArgs(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	return args
}

func maxTokens(n int) int {
	if n <= 0 {
		return 2048
	}
	return n
}
