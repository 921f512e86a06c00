package farm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldhand/fieldhand/internal/agent"
)

// MarketTool returns a commodity spot quote.
type MarketTool struct {
	source MarketSource
}

// NewMarketTool creates the market-price tool.
func NewMarketTool(source MarketSource) *MarketTool {
	return &MarketTool{source: source}
}

func (t *MarketTool) Name() string {
	return "get_market_price"
}

func (t *MarketTool) Description() string {
	return "Get the current spot price for a crop (e.g. corn, soybeans, winter wheat)."
}

func (t *MarketTool) Capability() string {
	return "market"
}

func (t *MarketTool) Schema() json.RawMessage {
	return marshalSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"crop": map[string]interface{}{
				"type":        "string",
				"description": "Crop to quote.",
			},
		},
		"required": []string{"crop"},
	})
}

func (t *MarketTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Crop string `json:"crop"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	quote, err := t.source.Quote(ctx, input.Crop)
	if err != nil {
		return toolError(err.Error()), nil
	}

	payload, err := json.MarshalIndent(quote, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
