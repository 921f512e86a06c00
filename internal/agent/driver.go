package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// Sanitizer strips internal meta-commentary and leaked tool-invocation
// syntax from final narration.
type Sanitizer interface {
	Sanitize(text string) string
}

// Validator is the advisory cross-check of narration against tool results.
type Validator interface {
	Validate(userQuery, content string, results []models.ToolResult) models.ValidationResult
}

// DriverOptions configures an orchestration driver.
type DriverOptions struct {
	// Provider is the language-model backend. Required.
	Provider LLMProvider

	// Registry holds the tools the model may call. Required.
	Registry *ToolRegistry

	// Executor runs tool calls. If nil, one is built over Registry with
	// default configuration.
	Executor *Executor

	// Progress receives step events during the turn. Optional.
	Progress ProgressEmitter

	// Sanitizer cleans final narration. Optional.
	Sanitizer Sanitizer

	// Validator scores final narration against tool results. Optional.
	Validator Validator

	// Chain decides whether a dependent follow-up round gets tool calling
	// re-enabled. Defaults to DefaultChainPolicy.
	Chain ChainPolicy

	// MaxToolRounds bounds tool-enabled rounds per turn. Default: 2.
	MaxToolRounds int

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Driver is the per-turn orchestration state machine. One user turn moves
// through generation, capability filtering, concurrent tool execution,
// result merging, and regeneration until the model produces a terminal
// narrative. Rounds are strictly sequential: a round's merged results are
// fully incorporated into the conversation before the next round begins.
type Driver struct {
	provider  LLMProvider
	registry  *ToolRegistry
	executor  *Executor
	progress  ProgressEmitter
	sanitizer Sanitizer
	validator Validator
	chain     ChainPolicy
	maxRounds int
	logger    *slog.Logger
}

// NewDriver creates a driver from options.
func NewDriver(opts DriverOptions) (*Driver, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("driver: provider is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("driver: tool registry is required")
	}
	if opts.Executor == nil {
		opts.Executor = NewExecutor(opts.Registry, nil, nil)
	}
	if opts.Chain == nil {
		opts.Chain = DefaultChainPolicy
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		provider:  opts.Provider,
		registry:  opts.Registry,
		executor:  opts.Executor,
		progress:  opts.Progress,
		sanitizer: opts.Sanitizer,
		validator: opts.Validator,
		chain:     opts.Chain,
		maxRounds: opts.MaxToolRounds,
		logger:    opts.Logger,
	}, nil
}

// TurnRequest is one user turn entering the driver with its prior
// conversation history.
type TurnRequest struct {
	// Session carries the capability set used to filter tool calls.
	Session *models.Session

	// Messages is the ordered conversation history ending with the user's
	// latest message.
	Messages []CompletionMessage

	// UserQuery is the user's question for this turn. If empty, the content
	// of the last user message is used.
	UserQuery string

	// Model, System, MaxTokens and Temperature are passed to the provider.
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
}

// TurnResult is the completed outcome of one user turn.
type TurnResult struct {
	// Content is the final, sanitized narration.
	Content string

	// Model is the model that produced the final narration.
	Model string

	// Usage is the accumulated token usage across all rounds.
	Usage models.Usage

	// Messages holds the messages appended during the turn, ending with the
	// final assistant message, for the caller to persist.
	Messages []CompletionMessage

	// ToolResults holds every result gathered across the turn, keyed by call ID.
	ToolResults []models.ToolResult

	// ExecutedCalls holds the calls that passed filtering and ran.
	ExecutedCalls []models.ToolCall

	// DroppedCalls holds calls removed by capability filtering, kept for
	// audit and telemetry.
	DroppedCalls []models.ToolCall

	// Validation is the advisory confidence check, when a validator is set.
	Validation *models.ValidationResult

	// Rounds is the number of provider calls made.
	Rounds int
}

// RunTurn drives one user turn to completion.
//
// The turn starts with tool calling enabled. Each response carrying tool
// calls is capability-filtered, executed concurrently, and merged back into
// the conversation; the chain policy then decides whether the next round may
// call tools again. At most maxRounds tool-enabled provider calls are made
// per turn; once the bound is hit the final round runs with tools disabled,
// forcing a terminal narrative.
//
// A provider failure after tool results were gathered is returned as a
// *TurnError carrying those results, never silently dropped.
func (d *Driver) RunTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("turn: empty message history")
	}

	sessionID := ""
	var caps models.CapabilitySet
	if req.Session != nil {
		sessionID = req.Session.ID
		caps = req.Session.Capabilities
	}

	userQuery := req.UserQuery
	if userQuery == "" {
		userQuery = lastUserContent(req.Messages)
	}

	msgs := make([]CompletionMessage, len(req.Messages))
	copy(msgs, req.Messages)

	result := &TurnResult{}
	toolsEnabled := d.provider.SupportsTools()
	toolRounds := 0

	for {
		result.Rounds++
		phase := PhaseGenerating
		if result.Rounds > 1 {
			phase = PhaseRegenerating
		}
		d.emitStep(sessionID, "generating", fmt.Sprintf("round %d", result.Rounds))

		creq := &CompletionRequest{
			Model:       req.Model,
			System:      req.System,
			Messages:    msgs,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}
		if toolsEnabled {
			creq.Tools = d.registry.AsLLMTools()
			toolRounds++
		}

		resp, err := d.provider.Complete(ctx, creq)
		if err != nil {
			return nil, &TurnError{
				Phase:       phase,
				Round:       result.Rounds,
				ToolResults: result.ToolResults,
				Cause:       err,
			}
		}

		result.Model = resp.Model
		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens

		if !toolsEnabled || !resp.HasToolCalls() {
			return d.finish(sessionID, userQuery, resp.Content, msgs, req.Messages, result), nil
		}

		// FILTERING: drop calls whose capability is not enabled for this
		// session. The unfiltered set stays on the result for audit.
		filtered := FilterByCapability(d.registry, caps, resp.ToolCalls)
		if len(filtered.Dropped) > 0 {
			result.DroppedCalls = append(result.DroppedCalls, filtered.Dropped...)
			for _, call := range filtered.Dropped {
				d.logger.Warn("tool call dropped by capability filter",
					"session_id", sessionID,
					"tool", call.Name,
					"tool_call_id", call.ID,
				)
			}
		}
		result.ExecutedCalls = append(result.ExecutedCalls, filtered.Retained...)

		// EXECUTING: fan out retained calls, await together.
		for _, call := range filtered.Retained {
			d.emitStep(sessionID, "executing", call.Name)
		}
		execResults := d.executor.ExecuteAll(ctx, filtered.Retained)
		executed := ResultsToMessages(execResults)

		// MERGING: associate every call with a result by callId. Dropped
		// calls get a synthesized disabled-capability result so the model
		// can explain why the data is missing.
		toolResults := mergeRoundResults(resp.ToolCalls, filtered.Dropped, executed)
		result.ToolResults = append(result.ToolResults, toolResults...)

		msgs = append(msgs,
			CompletionMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls},
			CompletionMessage{Role: "tool", ToolResults: toolResults},
		)

		// Chained-tool heuristic: re-enable tools only when a dependent
		// follow-up call is expected and the round bound allows it.
		toolsEnabled = toolRounds < d.maxRounds && d.chain(filtered.Retained, executed, userQuery)
		if !toolsEnabled && toolRounds >= d.maxRounds {
			d.logger.Debug("tool round bound reached, forcing terminal narrative",
				"session_id", sessionID,
				"rounds", result.Rounds,
			)
		}
	}
}

// finish sanitizes and validates the terminal narration and assembles the
// turn result.
func (d *Driver) finish(sessionID, userQuery, content string, msgs, original []CompletionMessage, result *TurnResult) *TurnResult {
	d.emitStep(sessionID, "responding", "")

	if d.sanitizer != nil {
		content = d.sanitizer.Sanitize(content)
	}
	result.Content = content

	if d.validator != nil {
		v := d.validator.Validate(userQuery, content, result.ToolResults)
		result.Validation = &v
		d.logger.Debug("response validated",
			"session_id", sessionID,
			"confidence", v.Confidence,
			"notes", len(v.Notes),
		)
	}

	final := CompletionMessage{Role: "assistant", Content: content}
	result.Messages = append(msgs[len(original):], final)
	return result
}

func (d *Driver) emitStep(sessionID, step, message string) {
	if d.progress == nil || sessionID == "" {
		return
	}
	d.progress.Emit(sessionID, models.NewStepEvent(sessionID, step, message))
}

// mergeRoundResults builds the round's tool-result list in the order the
// calls were issued. Executed results are matched by callId; dropped calls
// get a synthesized error result.
func mergeRoundResults(all, dropped []models.ToolCall, executed []models.ToolResult) []models.ToolResult {
	byID := make(map[string]models.ToolResult, len(executed))
	for _, r := range executed {
		byID[r.ToolCallID] = r
	}
	droppedIDs := make(map[string]struct{}, len(dropped))
	for _, c := range dropped {
		droppedIDs[c.ID] = struct{}{}
	}

	merged := make([]models.ToolResult, 0, len(all))
	for _, call := range all {
		if r, ok := byID[call.ID]; ok {
			merged = append(merged, r)
			continue
		}
		if _, ok := droppedIDs[call.ID]; ok {
			merged = append(merged, models.ToolResult{
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("the %s capability is not enabled for this session", call.Name),
				IsError:    true,
			})
		}
	}
	return merged
}

func lastUserContent(msgs []CompletionMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
