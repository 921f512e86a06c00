package farm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldhand/fieldhand/internal/agent"
)

// WeatherTool returns a short-range forecast for coordinates, typically those
// produced by a preceding boundary lookup.
type WeatherTool struct {
	source WeatherSource
}

// NewWeatherTool creates the weather tool.
func NewWeatherTool(source WeatherSource) *WeatherTool {
	return &WeatherTool{source: source}
}

func (t *WeatherTool) Name() string {
	return "get_weather"
}

func (t *WeatherTool) Description() string {
	return "Get the short-range weather forecast for a lat/lon coordinate pair."
}

func (t *WeatherTool) Capability() string {
	return "weather"
}

func (t *WeatherTool) Schema() json.RawMessage {
	return marshalSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"lat": map[string]interface{}{
				"type":        "number",
				"description": "Latitude in decimal degrees.",
				"minimum":     -90,
				"maximum":     90,
			},
			"lon": map[string]interface{}{
				"type":        "number",
				"description": "Longitude in decimal degrees.",
				"minimum":     -180,
				"maximum":     180,
			},
		},
		"required": []string{"lat", "lon"},
	})
}

func (t *WeatherTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	forecast, err := t.source.Forecast(ctx, input.Lat, input.Lon)
	if err != nil {
		return toolError(fmt.Sprintf("forecast: %v", err)), nil
	}

	payload, err := json.MarshalIndent(forecast, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
