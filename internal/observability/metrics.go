// Package observability provides Prometheus metrics and structured logging
// for the orchestration engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects orchestration telemetry: turn outcomes, token
// consumption, capability filtering, and advisory validation scores.
type Metrics struct {
	// TurnCounter counts completed turns by outcome.
	// Labels: status (success|error)
	TurnCounter *prometheus.CounterVec

	// TurnRounds observes provider rounds per turn.
	TurnRounds prometheus.Histogram

	// LLMTokensUsed tracks token consumption.
	// Labels: model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolCallsDropped counts tool calls removed by capability filtering.
	// Labels: tool_name
	ToolCallsDropped *prometheus.CounterVec

	// ValidationConfidence observes advisory validation scores.
	ValidationConfidence prometheus.Histogram
}

// NewMetrics registers and returns the metric set on the default registry.
// Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldhand_turns_total",
				Help: "Total number of user turns by outcome",
			},
			[]string{"status"},
		),

		TurnRounds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fieldhand_turn_rounds",
				Help:    "Provider rounds taken per user turn",
				Buckets: []float64{1, 2, 3, 4},
			},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldhand_llm_tokens_total",
				Help: "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),

		ToolCallsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldhand_tool_calls_dropped_total",
				Help: "Tool calls removed by capability filtering",
			},
			[]string{"tool_name"},
		),

		ValidationConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fieldhand_validation_confidence",
				Help:    "Advisory validation confidence scores",
				Buckets: []float64{10, 30, 50, 70, 90, 100},
			},
		),
	}
}
