// Package models defines the shared data model for fieldhand: conversation
// messages, tool calls and results, provider responses, sessions, and
// progress events. These types cross package boundaries and are kept free of
// behavior beyond small conveniences.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single entry in a conversation transcript. The orchestration
// driver treats the transcript as append-only: messages are created once per
// round and never mutated after the next round begins.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      Role   `json:"role"`
	Content   string `json:"content,omitempty"`

	// ToolCalls carries tool execution requests emitted by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResults carries results of executed tools, associated to their
	// originating calls by ToolCallID.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToolCall is a request from the model to execute a named tool. ID uniquely
// identifies the call within its round; the provider adapter synthesizes one
// when the backend omits it so results can still be associated.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of one tool call. Errors are communicated with
// IsError=true rather than Go errors so the model can narrate failures.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Usage reports token consumption for one provider completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is the normalized result of one provider completion. Every
// backend's native tool-call representation (nested content blocks, flat
// call arrays) is translated into the uniform ToolCalls list by its adapter.
type LLMResponse struct {
	Content   string     `json:"content"`
	Model     string     `json:"model"`
	Usage     Usage      `json:"usage"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// HasToolCalls reports whether the response requests any tool executions.
func (r *LLMResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
