// types/types.go
package types

import (
	"encoding/json"
	"strings"
)

// Role tags a turn in the conversation transcript
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// BlockKind identifies the payload carried by a Block
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolCall   BlockKind = "tool_call"
	BlockToolResult BlockKind = "tool_result"
)

// StopReason is the model's termination reason for a response
type StopReason string

const (
	StopToolUse StopReason = "tool_use"
	StopEndTurn StopReason = "end_turn"
)

// Block is one structured element of a turn's content
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text,omitempty"`

	// Set on tool_call and tool_result blocks
	CallID    string          `json:"call_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// TextBlock builds a text block
func TextBlock(text string) Block {
	return Block{Kind: BlockText, Text: text}
}

// Turn represents a message in the conversation
type Turn struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"blocks"`
}

// Text joins the turn's text blocks with newlines
func (t Turn) Text() string {
	var parts []string
	for _, b := range t.Blocks {
		if b.Kind == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCalls returns the tool-call requests carried by the turn, in order
func (t Turn) ToolCalls() []ToolCallRequest {
	var calls []ToolCallRequest
	for _, b := range t.Blocks {
		if b.Kind == BlockToolCall {
			calls = append(calls, ToolCallRequest{ID: b.CallID, Name: b.ToolName, Arguments: b.Arguments})
		}
	}
	return calls
}

// ToolDescriptor advertises a callable tool to the model
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCallRequest represents a tool invocation request from the LLM
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResult answers exactly one ToolCallRequest
type ToolCallResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Block converts the result into a tool_result block
func (r ToolCallResult) Block() Block {
	return Block{Kind: BlockToolResult, CallID: r.CallID, Text: r.Content, IsError: r.IsError}
}

// LLMResponse represents a response from the LLM
type LLMResponse struct {
	StopReason StopReason `json:"stop_reason"`
	Blocks     []Block    `json:"blocks"`
}

// Turn wraps the response as an assistant turn
func (r *LLMResponse) Turn() Turn {
	return Turn{Role: RoleAssistant, Blocks: r.Blocks}
}
