package agent

import "github.com/fieldhand/fieldhand/pkg/models"

// FilterResult is the outcome of capability filtering one round's tool calls.
// Retained calls execute; dropped calls are kept for audit and telemetry so
// filtered requests are never silently forgotten.
type FilterResult struct {
	Retained []models.ToolCall
	Dropped  []models.ToolCall
}

// FilterByCapability splits a round's tool calls by the session's capability
// set. A call is retained only when the tag its tool declares is enabled for
// the session; tools declaring no tag are unrestricted. Calls naming unknown
// tools are retained so the registry can produce its structured
// tool-not-found result for the model to narrate.
func FilterByCapability(registry *ToolRegistry, caps models.CapabilitySet, calls []models.ToolCall) FilterResult {
	result := FilterResult{
		Retained: make([]models.ToolCall, 0, len(calls)),
	}
	for _, call := range calls {
		if caps.Has(registry.Capability(call.Name)) {
			result.Retained = append(result.Retained, call)
		} else {
			result.Dropped = append(result.Dropped, call)
		}
	}
	return result
}
