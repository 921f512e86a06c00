package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// Common sentinel errors for orchestration operations
var (
	// ErrMaxToolRounds indicates the turn exceeded its tool-enabled round bound
	ErrMaxToolRounds = errors.New("max tool rounds exceeded")

	// ErrToolNotFound indicates a requested tool doesn't exist
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered indicates a tool name collision at registration
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrToolPanic indicates a tool panicked during execution
	ErrToolPanic = errors.New("tool panicked")

	// ErrRateLimited indicates the tool call was rejected by admission control
	ErrRateLimited = errors.New("rate limited")
)

// ToolErrorType categorizes tool execution errors for handling and telemetry.
type ToolErrorType string

const (
	// ToolErrorNotFound indicates the tool doesn't exist
	ToolErrorNotFound ToolErrorType = "not_found"

	// ToolErrorInvalidInput indicates the arguments failed schema validation
	ToolErrorInvalidInput ToolErrorType = "invalid_input"

	// ToolErrorRateLimit indicates the call was rejected by the rate limiter
	ToolErrorRateLimit ToolErrorType = "rate_limit"

	// ToolErrorExecution indicates a runtime error inside the handler
	ToolErrorExecution ToolErrorType = "execution"

	// ToolErrorPanic indicates the handler panicked
	ToolErrorPanic ToolErrorType = "panic"

	// ToolErrorUnknown indicates an unclassified error
	ToolErrorUnknown ToolErrorType = "unknown"
)

// ToolError represents a structured error from tool execution, tagged with the
// originating call so failures stay associated with their round.
type ToolError struct {
	// Type categorizes the error
	Type ToolErrorType

	// ToolName is the name of the tool that failed
	ToolName string

	// ToolCallID is the ID of the tool call that failed
	ToolCallID string

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))

	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError creates a ToolError with automatic classification inferred from
// the cause.
func NewToolError(toolName string, cause error) *ToolError {
	err := &ToolError{
		ToolName: toolName,
		Cause:    cause,
		Type:     ToolErrorUnknown,
	}

	if cause != nil {
		err.Message = cause.Error()
		err.Type = classifyToolError(cause)
	}

	return err
}

// WithType sets the error type.
func (e *ToolError) WithType(t ToolErrorType) *ToolError {
	e.Type = t
	return e
}

// WithToolCallID sets the tool call ID for correlating errors with specific calls.
func (e *ToolError) WithToolCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

// WithMessage sets a custom human-readable error message.
func (e *ToolError) WithMessage(msg string) *ToolError {
	e.Message = msg
	return e
}

// classifyToolError determines the error type from the error content.
func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}

	if errors.Is(err, ErrToolNotFound) {
		return ToolErrorNotFound
	}
	if errors.Is(err, ErrToolPanic) {
		return ToolErrorPanic
	}
	if errors.Is(err, ErrRateLimited) {
		return ToolErrorRateLimit
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return ToolErrorRateLimit
	}

	if strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "validation") ||
		strings.Contains(errStr, "required") ||
		strings.Contains(errStr, "missing") {
		return ToolErrorInvalidInput
	}

	return ToolErrorExecution
}

// IsToolError checks if an error is or wraps a ToolError.
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

// GetToolError extracts a ToolError from an error chain using errors.As.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// TurnError represents a failure partway through a turn. It carries whatever
// tool results were already gathered so the caller never loses work that
// completed before the failure.
type TurnError struct {
	// Phase is the driver phase where the error occurred
	Phase TurnPhase

	// Round is the round number where the error occurred (1-based)
	Round int

	// ToolResults holds results gathered before the failure
	ToolResults []models.ToolResult

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("turn failed at %s (round %d): %v", e.Phase, e.Round, e.Cause)
	}
	return fmt.Sprintf("turn failed at %s (round %d)", e.Phase, e.Round)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Cause
}

// TurnPhase represents a distinct phase in the orchestration state machine.
type TurnPhase string

const (
	// PhaseGenerating is the initial model completion phase
	PhaseGenerating TurnPhase = "generating"

	// PhaseFiltering is the capability filtering phase
	PhaseFiltering TurnPhase = "filtering"

	// PhaseExecuting is the tool execution phase
	PhaseExecuting TurnPhase = "executing"

	// PhaseMerging is the result merge phase
	PhaseMerging TurnPhase = "merging"

	// PhaseRegenerating is the follow-up completion phase after tool results
	PhaseRegenerating TurnPhase = "regenerating"
)
