package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fieldhand/fieldhand/internal/ratelimit"
	"github.com/fieldhand/fieldhand/pkg/models"
)

// ExecutorConfig configures the parallel tool executor behavior including
// concurrency limits and per-tool admission control.
type ExecutorConfig struct {
	// MaxConcurrency limits the number of parallel tool executions
	// Default: 5
	MaxConcurrency int

	// RateLimitMax is the number of calls each tool admits per window.
	// Zero disables admission control.
	// Default: 30
	RateLimitMax int

	// RateLimitWindow is the admission control window
	// Default: 1m
	RateLimitWindow time.Duration
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		MaxConcurrency:  5,
		RateLimitMax:    30,
		RateLimitWindow: time.Minute,
	}
}

// Executor manages parallel tool execution with panic recovery and
// backpressure handling. Every call is gated through the rate limiter before
// its handler runs; rejected calls become error results like any other
// failure so siblings are unaffected.
type Executor struct {
	registry *ToolRegistry
	limiter  *ratelimit.Limiter
	config   *ExecutorConfig

	// Semaphore for concurrency limiting
	sem chan struct{}

	// Metrics
	metrics *ExecutorMetrics
}

// ExecutorMetrics tracks executor counters: executions, failures, rejected
// admissions, and recovered panics.
type ExecutorMetrics struct {
	mu              sync.Mutex
	TotalExecutions int64
	TotalFailures   int64
	TotalRejected   int64
	TotalPanics     int64
}

// NewExecutor creates a parallel tool executor over the given registry.
// A nil limiter gets a fresh in-memory one; a nil config gets defaults.
func NewExecutor(registry *ToolRegistry, limiter *ratelimit.Limiter, config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(nil)
	}

	return &Executor{
		registry: registry,
		limiter:  limiter,
		config:   config,
		sem:      make(chan struct{}, config.MaxConcurrency),
		metrics:  &ExecutorMetrics{},
	}
}

// ExecutionResult holds the result of a single tool execution including
// timing information.
type ExecutionResult struct {
	ToolCallID string
	ToolName   string
	Result     *ToolResult
	Error      error
	Duration   time.Duration
}

// ExecuteAll executes multiple tool calls in parallel: all calls are
// dispatched before any is awaited, then awaited together. Results are
// returned in the same order as the input calls, so every entry stays keyed
// to its originating call regardless of completion order. One call's failure
// never cancels or blocks its siblings.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCall) []*ExecutionResult {
	if len(calls) == 0 {
		return nil
	}

	results := make([]*ExecutionResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc models.ToolCall) {
			defer wg.Done()
			results[idx] = e.Execute(ctx, tc)
		}(i, call)
	}

	wg.Wait()
	return results
}

// Execute executes a single tool call. Acquires a semaphore slot for
// backpressure, then an admission slot from the rate limiter, then runs the
// handler with panic recovery.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) *ExecutionResult {
	start := time.Now()
	result := &ExecutionResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}

	// Acquire semaphore for backpressure
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		result.Error = NewToolError(call.Name, ctx.Err()).WithToolCallID(call.ID)
		result.Duration = time.Since(start)
		e.record(result)
		return result
	}

	if e.config.RateLimitMax > 0 {
		decision := e.limiter.Allow("tool:"+call.Name, e.config.RateLimitMax, e.config.RateLimitWindow)
		if !decision.Allowed {
			result.Error = NewToolError(call.Name, ErrRateLimited).
				WithToolCallID(call.ID).
				WithMessage(fmt.Sprintf("rate limited until %s", decision.ResetAt.Format(time.RFC3339)))
			result.Duration = time.Since(start)
			e.record(result)
			return result
		}
	}

	res, err := e.executeRecovered(ctx, call)
	if err != nil {
		result.Error = err
	} else {
		result.Result = res
	}
	result.Duration = time.Since(start)
	e.record(result)
	return result
}

// executeRecovered runs the handler, converting a panic into a structured
// ToolError instead of taking down the process.
func (e *Executor) executeRecovered(ctx context.Context, call models.ToolCall) (res *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			res = nil
			err = NewToolError(call.Name, fmt.Errorf("%w: %v\n%s", ErrToolPanic, r, stack)).
				WithType(ToolErrorPanic).
				WithToolCallID(call.ID)
		}
	}()

	res, execErr := e.registry.Execute(ctx, call.Name, call.Input)
	if execErr != nil {
		return nil, NewToolError(call.Name, execErr).WithToolCallID(call.ID)
	}
	if res == nil {
		// A handler may return (nil, nil); the call still needs a keyed
		// result so every issued call resolves to exactly one entry.
		return nil, NewToolError(call.Name, errors.New("tool returned no result")).
			WithType(ToolErrorExecution).
			WithToolCallID(call.ID)
	}
	return res, nil
}

func (e *Executor) record(r *ExecutionResult) {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	e.metrics.TotalExecutions++
	if r.Error != nil {
		e.metrics.TotalFailures++
		if toolErr, ok := GetToolError(r.Error); ok {
			switch toolErr.Type {
			case ToolErrorRateLimit:
				e.metrics.TotalRejected++
			case ToolErrorPanic:
				e.metrics.TotalPanics++
			}
		}
	}
}

// Metrics returns a copy-safe snapshot of the executor metrics.
func (e *Executor) Metrics() *ExecutorMetricsSnapshot {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	return &ExecutorMetricsSnapshot{
		TotalExecutions: e.metrics.TotalExecutions,
		TotalFailures:   e.metrics.TotalFailures,
		TotalRejected:   e.metrics.TotalRejected,
		TotalPanics:     e.metrics.TotalPanics,
	}
}

// ExecutorMetricsSnapshot is a point-in-time copy of executor metrics.
type ExecutorMetricsSnapshot struct {
	TotalExecutions int64
	TotalFailures   int64
	TotalRejected   int64
	TotalPanics     int64
}

// ResultsToMessages converts execution results to tool result messages
// suitable for merging into conversation history. Failures become error
// results with the same callId association as successes.
func ResultsToMessages(results []*ExecutionResult) []models.ToolResult {
	toolResults := make([]models.ToolResult, len(results))

	for i, r := range results {
		if r.Error != nil {
			toolResults[i] = models.ToolResult{
				ToolCallID: r.ToolCallID,
				Content:    r.Error.Error(),
				IsError:    true,
			}
		} else if r.Result != nil {
			toolResults[i] = models.ToolResult{
				ToolCallID: r.ToolCallID,
				Content:    r.Result.Content,
				IsError:    r.Result.IsError,
			}
		} else {
			toolResults[i] = models.ToolResult{
				ToolCallID: r.ToolCallID,
				Content:    "tool returned no result",
				IsError:    true,
			}
		}
	}

	return toolResults
}

// AnyErrors returns true if any execution result contains an error.
func AnyErrors(results []*ExecutionResult) bool {
	for _, r := range results {
		if r.Error != nil {
			return true
		}
	}
	return false
}
