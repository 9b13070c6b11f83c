package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/trace"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/tracing"
	"github.com/sammcj/actorglue/types"
)

// DefaultOpenAIEndpoint points at a local Ollama server's OpenAI-compatible API
const DefaultOpenAIEndpoint = "http://localhost:11434/v1"

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI-compatible provider. Ollama needs no key.
func NewOpenAI(cfg config.LLMConfig, logger *slog.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = config.FirstNonEmpty(cfg.Endpoint, DefaultOpenAIEndpoint)
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Chat sends the transcript and converts the first choice
func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (*types.LLMResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	ctx, span := tracing.StartSpan(ctx, "llm.chat", trace.WithAttributes(
		tracing.StringAttr("llm.provider", p.Name()),
		tracing.StringAttr("llm.model", req.Model),
	))
	defer span.End()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.System, req.Turns),
		Tools:     toOpenAITools(req.Tools),
		MaxTokens: maxTokens(req.MaxTokens),
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, &types.LLMError{Provider: p.Name(), Message: "chat completion failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &types.LLMError{Provider: p.Name(), Message: "response has no choices"}
	}

	out := fromOpenAIChoice(resp.Choices[0])
	p.logger.Debug("llm response",
		"provider", p.Name(),
		"stop_reason", out.StopReason,
		"blocks", len(out.Blocks),
		"total_tokens", resp.Usage.TotalTokens)
	tracing.SetOK(span)
	return out, nil
}

func toOpenAIMessages(system string, turns []types.Turn) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, t := range turns {
		switch t.Role {
		case types.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Text()})
		case types.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Text()}
			for _, call := range t.ToolCalls() {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(rawArgs(call.Arguments)),
					},
				})
			}
			messages = append(messages, msg)
		case types.RoleToolResult:
			// one tool message per result, in call order
			for _, b := range t.Blocks {
				if b.Kind != types.BlockToolResult {
					continue
				}
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.Text,
					ToolCallID: b.CallID,
				})
			}
		}
	}
	return messages
}

func toOpenAITools(tools []types.ToolDescriptor) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// fromOpenAIChoice treats any tool call as tool_use. Some local servers
// report finish_reason "stop" even when they return tool calls.
func fromOpenAIChoice(choice openai.ChatCompletionChoice) *types.LLMResponse {
	resp := &types.LLMResponse{StopReason: types.StopEndTurn}

	if text := cleanContent(choice.Message.Content); text != "" {
		resp.Blocks = append(resp.Blocks, types.TextBlock(text))
	}
	for _, call := range choice.Message.ToolCalls {
		resp.Blocks = append(resp.Blocks, types.Block{
			Kind:      types.BlockToolCall,
			CallID:    call.ID,
			ToolName:  call.Function.Name,
			Arguments: rawArgs(json.RawMessage(call.Function.Arguments)),
		})
	}
	if len(choice.Message.ToolCalls) > 0 || choice.FinishReason == openai.FinishReasonToolCalls {
		resp.StopReason = types.StopToolUse
	}
	return resp
}

// cleanContent strips chat-template markers some local models leak into content
func cleanContent(s string) string {
	for _, marker := range []string{"<|im_start|>", "<|im_end|>", "<|eot_id|>"} {
		s = strings.ReplaceAll(s, marker, "")
	}
	return strings.TrimSpace(s)
}
