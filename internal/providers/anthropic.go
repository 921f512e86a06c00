package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/pkg/models"
)

const anthropicDefaultModel = "claude-sonnet-4-20250514"

// AnthropicProvider implements agent.LLMProvider for Anthropic's Claude API.
//
// The provider converts between the internal message format and Anthropic's
// content-block encoding: Claude returns a response as a sequence of nested
// blocks (text, tool_use), which are flattened here into content plus a
// uniform ToolCall list.
//
// Thread Safety:
// AnthropicProvider is safe for concurrent use across multiple goroutines.
type AnthropicProvider struct {
	client anthropic.Client

	// maxRetries is the number of retry attempts for transient transport
	// failures. Exponential backoff from retryDelay.
	maxRetries int
	retryDelay time.Duration

	defaultModel string
	logger       *slog.Logger
}

// AnthropicConfig holds configuration for creating an AnthropicProvider.
// All fields except APIKey are optional.
type AnthropicConfig struct {
	// APIKey is the Anthropic API authentication key (required).
	APIKey string

	// BaseURL overrides the default Anthropic API base URL.
	BaseURL string

	// MaxRetries sets retry attempts for transient failures. Default: 3
	MaxRetries int

	// RetryDelay sets the base delay between retries. Default: 1s
	RetryDelay time.Duration

	// DefaultModel is used when the request doesn't specify one.
	DefaultModel string

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewAnthropicProvider creates an Anthropic provider with the given
// configuration, applying defaults for optional fields.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}

	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = anthropicDefaultModel
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		maxRetries:   config.MaxRetries,
		retryDelay:   config.RetryDelay,
		defaultModel: config.DefaultModel,
		logger:       config.Logger,
	}, nil
}

// Name returns the provider identifier used for routing and logging.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// SupportsTools indicates whether this provider supports tool calling.
func (p *AnthropicProvider) SupportsTools() bool {
	return true
}

// Complete sends a completion request and returns the normalized response.
// Transient transport failures are retried with exponential backoff; the
// final error is wrapped as a *ProviderError.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*models.LLMResponse, error) {
	model := p.getModel(req.Model)

	params, err := p.buildParams(req, model)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, p.wrapError(ctx.Err(), model)
			}
		}

		message, err := p.client.Messages.New(ctx, *params)
		if err == nil {
			return p.normalizeResponse(message), nil
		}

		lastErr = p.wrapError(err, model)
		if !IsRetryable(lastErr) || ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("anthropic: max retries exceeded: %w", lastErr)
}

// buildParams converts the internal request into Anthropic MessageNewParams.
func (p *AnthropicProvider) buildParams(req *agent.CompletionRequest, model string) (*anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(p.getMaxTokens(req.MaxTokens)),
		Messages:  messages,
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	return params, nil
}

// normalizeResponse flattens Anthropic's content blocks into the uniform
// response shape. Malformed tool_use blocks are dropped with a logged
// warning rather than failing the whole response; a missing block ID gets a
// synthesized callId so result association still works.
func (p *AnthropicProvider) normalizeResponse(message *anthropic.Message) *models.LLMResponse {
	resp := &models.LLMResponse{
		Model: string(message.Model),
		Usage: models.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	var content strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(variant.Text)

		case anthropic.ToolUseBlock:
			input := json.RawMessage(variant.JSON.Input.Raw())
			if !json.Valid(input) {
				p.logger.Warn("dropping malformed tool_use block",
					"provider", "anthropic",
					"tool", variant.Name,
				)
				continue
			}
			id := variant.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:    id,
				Name:  variant.Name,
				Input: input,
			})
		}
	}
	resp.Content = content.String()

	return resp
}

// convertMessages converts internal messages to Anthropic's format. System
// messages are skipped (handled via params.System); user and tool roles both
// map to user messages, with tool results carried as content blocks.
func (p *AnthropicProvider) convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []anthropic.ContentBlockParamUnion

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}

		for _, toolResult := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(
				toolResult.ToolCallID,
				toolResult.Content,
				toolResult.IsError,
			))
		}

		for _, toolCall := range msg.ToolCalls {
			var input map[string]any
			if err := json.Unmarshal(toolCall.Input, &input); err != nil {
				return nil, fmt.Errorf("invalid tool call input for %s: %w", toolCall.Name, err)
			}
			content = append(content, anthropic.NewToolUseBlock(
				toolCall.ID,
				input,
				toolCall.Name,
			))
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

// convertTools converts internal tool definitions to Anthropic's format.
func (p *AnthropicProvider) convertTools(tools []agent.Tool) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam

	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name(), err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name())
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description())

		result = append(result, toolParam)
	}

	return result, nil
}

func (p *AnthropicProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *AnthropicProvider) getMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// wrapError converts SDK errors into structured ProviderErrors, extracting
// status, code and request ID from the API error payload when available.
func (p *AnthropicProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := &ProviderError{
			Provider: "anthropic",
			Model:    model,
			Cause:    err,
			Reason:   FailureUnknown,
		}
		providerErr = providerErr.WithStatus(apiErr.StatusCode)

		message := ""
		code := ""
		requestID := apiErr.RequestID

		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				message = payload.Error.Message
				code = payload.Error.Type
				if payload.RequestID != "" {
					requestID = payload.RequestID
				}
			}
		}

		if message != "" {
			providerErr = providerErr.WithMessage(message)
		} else if providerErr.Message == "" {
			providerErr.Message = "anthropic request failed"
		}
		if code != "" {
			providerErr = providerErr.WithCode(code)
		}
		if requestID != "" {
			providerErr = providerErr.WithRequestID(requestID)
		}
		return providerErr
	}

	return NewProviderError("anthropic", model, err)
}
