package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/pkg/models"
)

const openaiDefaultModel = openai.GPT4o

// OpenAIProvider implements agent.LLMProvider for OpenAI's chat completion
// API.
//
// OpenAI encodes tool calls as a flat array on the assistant message, in
// contrast to Anthropic's nested content blocks; this adapter translates
// that shape into the uniform ToolCall list so the driver never sees the
// difference.
//
// Thread Safety:
// OpenAIProvider is safe for concurrent use across multiple goroutines.
type OpenAIProvider struct {
	client *openai.Client

	maxRetries int
	retryDelay time.Duration

	defaultModel string
	logger       *slog.Logger
}

// OpenAIConfig holds configuration for creating an OpenAIProvider.
// All fields except APIKey are optional.
type OpenAIConfig struct {
	// APIKey is the OpenAI API authentication key (required).
	APIKey string

	// BaseURL overrides the default OpenAI API base URL, for proxies and
	// compatible backends.
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

// NewOpenAIProvider creates an OpenAI provider with the given configuration,
// applying defaults for optional fields.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = openaiDefaultModel
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		maxRetries:   config.MaxRetries,
		retryDelay:   config.RetryDelay,
		defaultModel: config.DefaultModel,
		logger:       config.Logger,
	}, nil
}

// Name returns the provider identifier used for routing and logging.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// SupportsTools indicates whether this provider supports tool calling.
func (p *OpenAIProvider) SupportsTools() bool {
	return true
}

// Complete sends a completion request and returns the normalized response.
// Transient transport failures are retried with exponential backoff; the
// final error is wrapped as a *ProviderError.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*models.LLMResponse, error) {
	model := p.getModel(req.Model)

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    p.convertMessages(req.Messages, req.System),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
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

		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			return p.normalizeResponse(&resp)
		}

		lastErr = p.wrapError(err, model)
		if !IsRetryable(lastErr) || ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("openai: max retries exceeded: %w", lastErr)
}

// normalizeResponse translates OpenAI's flat tool_calls array into the
// uniform response shape. Malformed call entries are dropped with a logged
// warning; a missing call ID gets a synthesized one so result association
// still works.
func (p *OpenAIProvider) normalizeResponse(resp *openai.ChatCompletionResponse) (*models.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, NewProviderError("openai", resp.Model, errors.New("response contained no choices"))
	}

	choice := resp.Choices[0].Message
	out := &models.LLMResponse{
		Content: choice.Content,
		Model:   resp.Model,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.ToolCalls {
		if tc.Function.Name == "" {
			p.logger.Warn("dropping malformed tool call",
				"provider", "openai",
				"tool_call_id", tc.ID,
			)
			continue
		}
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		if !json.Valid(args) {
			p.logger.Warn("dropping tool call with invalid arguments",
				"provider", "openai",
				"tool", tc.Function.Name,
			)
			continue
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:    id,
			Name:  tc.Function.Name,
			Input: args,
		})
	}

	return out, nil
}

// convertMessages converts internal messages to OpenAI's format. The system
// prompt is injected as the first message; each tool result becomes its own
// role="tool" message linked by ToolCallID.
func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Input),
						},
					}
				}
			}
			result = append(result, oaiMsg)

		case "tool":
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}

		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	return result
}

// convertTools converts internal tool definitions to OpenAI function
// definitions. A tool with an unparseable schema degrades to an empty object
// schema so one bad tool doesn't break function calling for the rest.
func (p *OpenAIProvider) convertTools(tools []agent.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))

	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			schemaMap = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}

		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schemaMap,
			},
		}
	}

	return result
}

func (p *OpenAIProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

// wrapError converts SDK errors into structured ProviderErrors.
func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := &ProviderError{
			Provider: "openai",
			Model:    model,
			Cause:    err,
			Reason:   FailureUnknown,
			Message:  apiErr.Message,
		}
		providerErr = providerErr.WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			providerErr = providerErr.WithCode(code)
		}
		return providerErr
	}

	return NewProviderError("openai", model, err)
}
