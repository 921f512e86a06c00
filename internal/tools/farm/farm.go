// Package farm provides the built-in farm-data tools: field listing,
// boundary lookup, weather, equipment status, and market prices. Each tool
// declares the capability tag a session needs for its calls to run. The
// bundled dataset backs demos and tests; production deployments swap in real
// API clients behind the same interfaces.
package farm

import (
	"context"
	"encoding/json"

	"github.com/fieldhand/fieldhand/internal/agent"
)

// Field is one managed field with its centroid and current crop.
type Field struct {
	Name   string  `json:"name"`
	Crop   string  `json:"crop"`
	AreaHa float64 `json:"area_ha"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// FieldSource resolves the fields visible to a session.
type FieldSource interface {
	ListFields(ctx context.Context) ([]Field, error)
	GetField(ctx context.Context, name string) (*Field, error)
}

// Forecast is a short-range weather summary for a location.
type Forecast struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Summary     string  `json:"summary"`
	TempC       float64 `json:"temp_c"`
	RainMM      float64 `json:"rain_mm"`
	WindKPH     float64 `json:"wind_kph"`
	HumidityPct int     `json:"humidity_pct"`
}

// WeatherSource resolves a forecast for coordinates.
type WeatherSource interface {
	Forecast(ctx context.Context, lat, lon float64) (*Forecast, error)
}

// Equipment is one machine and its last reported state.
type Equipment struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Status   string  `json:"status"`
	FuelPct  int     `json:"fuel_pct"`
	HoursRun float64 `json:"hours_run"`
}

// EquipmentSource resolves equipment telemetry.
type EquipmentSource interface {
	ListEquipment(ctx context.Context) ([]Equipment, error)
}

// Quote is a commodity spot price.
type Quote struct {
	Crop     string  `json:"crop"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Unit     string  `json:"unit"`
}

// MarketSource resolves commodity quotes.
type MarketSource interface {
	Quote(ctx context.Context, crop string) (*Quote, error)
}

// RegisterAll registers every farm tool backed by the given dataset.
func RegisterAll(registry *agent.ToolRegistry, data *Dataset) error {
	tools := []agent.Tool{
		NewFieldsTool(data),
		NewBoundaryTool(data),
		NewWeatherTool(data),
		NewEquipmentTool(data),
		NewMarketTool(data),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

func marshalSchema(schema map[string]interface{}) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
