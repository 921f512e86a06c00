package agent

import (
	"strings"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// ChainPolicy decides whether the round after a tool execution should run
// with tool calling re-enabled. It sees the calls that just executed, their
// results, and the user's original query, and returns true when a dependent
// follow-up call is expected (for example a boundary lookup that must be
// followed by a coordinate-based weather query). Returning false forces the
// next round to be a terminal narrative pass.
type ChainPolicy func(executed []models.ToolCall, results []models.ToolResult, userQuery string) bool

// boundaryTools are the spatial lookups whose coordinate output feeds
// location-dependent tools.
var boundaryTools = map[string]struct{}{
	"get_field_boundary": {},
	"getFieldBoundary":   {},
}

// weatherTerms are query words that indicate the user wants a quantity
// derived from coordinates.
var weatherTerms = []string{
	"weather",
	"rain",
	"rainfall",
	"precipitation",
	"temperature",
	"forecast",
	"wind",
	"humidity",
	"frost",
	"ndvi",
	"evapotranspiration",
	"growing degree",
}

// DefaultChainPolicy implements the one known two-hop chain: a field
// boundary lookup succeeded and produced coordinate data, and the user's
// question references a weather-derived term that depends on those
// coordinates. Deeper chains are not recognized; register a custom policy
// for new multi-hop patterns.
func DefaultChainPolicy(executed []models.ToolCall, results []models.ToolResult, userQuery string) bool {
	succeeded := make(map[string]bool, len(results))
	for _, r := range results {
		if !r.IsError {
			succeeded[r.ToolCallID] = true
		}
	}

	boundaryDone := false
	for _, call := range executed {
		if _, ok := boundaryTools[call.Name]; ok && succeeded[call.ID] {
			boundaryDone = true
			break
		}
	}
	if !boundaryDone {
		return false
	}

	query := strings.ToLower(userQuery)
	for _, term := range weatherTerms {
		if strings.Contains(query, term) {
			return true
		}
	}
	return false
}
