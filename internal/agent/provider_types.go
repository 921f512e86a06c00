package agent

import (
	"context"
	"encoding/json"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// LLMProvider defines the interface for language-model backends.
//
// Implementations handle the specifics of communicating with different LLM
// APIs (Anthropic, OpenAI, etc.) while presenting one completion contract to
// the driver. Each provider translates its native tool-call encoding into the
// uniform models.ToolCall shape at this boundary.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Multiple goroutines may
// call Complete() simultaneously for different turns.
//
// See Also:
//   - providers.AnthropicProvider for Anthropic Claude implementation
//   - providers.OpenAIProvider for OpenAI GPT implementation
type LLMProvider interface {
	// Complete sends a prompt and returns the full normalized response.
	Complete(ctx context.Context, req *CompletionRequest) (*models.LLMResponse, error)

	// Name returns the provider name.
	Name() string

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion request.
//
// This struct represents a complete request to an LLM provider, including
// the conversation history, system prompt, available tools, and generation
// parameters.
type CompletionRequest struct {
	// Model specifies which LLM model to use (e.g., "claude-sonnet-4-20250514", "gpt-4o").
	// If empty, the provider's default model is used.
	Model string `json:"model"`

	// System is the system prompt that sets the assistant's behavior.
	// This is handled separately from messages in most LLM APIs.
	System string `json:"system,omitempty"`

	// Messages contains the conversation history in chronological order.
	// Must include at least one message (typically the user's query).
	Messages []CompletionMessage `json:"messages"`

	// Tools defines available tools the LLM can request to execute.
	// If empty, tool calling is disabled for this request.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the maximum length of the generated response.
	// If 0 or negative, the provider's default is used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionMessage represents a single message in a conversation.
//
// Role values: "user", "assistant", "tool". Assistant messages may carry tool
// calls; tool messages carry the matching results.
type CompletionMessage struct {
	// Role indicates who sent the message: "user", "assistant", or "tool"
	Role string `json:"role"`

	// Content is the text content of the message (may be empty for tool-only messages)
	Content string `json:"content,omitempty"`

	// ToolCalls contains any tool execution requests from the assistant
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// ToolResults contains responses from executed tools
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// Tool defines the interface for executable tools.
//
// Tools ground the assistant's answers in external data: field boundaries,
// equipment telemetry, weather, market prices. The core never depends on what
// a handler does internally, only on its declared schema and result contract.
//
// Implementing a Tool:
//
//	type FieldList struct{ api *fieldAPI }
//
//	func (t *FieldList) Name() string        { return "getFields" }
//	func (t *FieldList) Description() string { return "Lists the user's fields" }
//	func (t *FieldList) Capability() string  { return "equipment" }
//
//	func (t *FieldList) Schema() json.RawMessage {
//	    return json.RawMessage(`{"type":"object","properties":{}}`)
//	}
//
//	func (t *FieldList) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
//	    fields, err := t.api.List(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &ToolResult{Content: format(fields)}, nil
//	}
type Tool interface {
	// Name returns the tool name for LLM function calling.
	// Must be a valid function name (alphanumeric, underscores).
	Name() string

	// Description returns a natural language description of what the tool does.
	// This helps the LLM decide when to use the tool.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	// The LLM uses this to construct valid tool call arguments.
	Schema() json.RawMessage

	// Capability returns the capability tag a session must have enabled for
	// this tool's calls to execute. An empty tag means unrestricted.
	Capability() string

	// Execute runs the tool with the given JSON parameters.
	// The params match the schema returned by Schema().
	// Returns the tool output or an error.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution.
//
// Results are merged back into the conversation so the LLM can narrate them.
// Errors are also communicated via ToolResult with IsError=true, allowing the
// model to explain failures instead of the round crashing.
type ToolResult struct {
	// Content is the tool's output (text, JSON, etc.)
	Content string `json:"content"`

	// IsError indicates this result represents an error condition
	IsError bool `json:"is_error,omitempty"`
}

// ProgressEmitter receives real-time step reports for a session. Delivery is
// at-most-once: emitting to a session with no registered channel is a no-op.
type ProgressEmitter interface {
	Emit(sessionID string, event models.ProgressEvent)
}

// AsJSON converts tool input to JSON if it is not already a json.RawMessage,
// []byte, or string.
func AsJSON(input any) json.RawMessage {
	switch v := input.(type) {
	case json.RawMessage:
		return v
	case []byte:
		return json.RawMessage(v)
	case string:
		return json.RawMessage(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return json.RawMessage("null")
		}
		return data
	}
}
