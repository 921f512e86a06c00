package farm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fieldhand/fieldhand/internal/agent"
)

func TestRegisterAll(t *testing.T) {
	registry := agent.NewToolRegistry()
	if err := RegisterAll(registry, NewDemoDataset()); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, name := range []string{"getFields", "get_field_boundary", "get_weather", "get_equipment_status", "get_market_price"} {
		if _, ok := registry.Get(name); !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestFieldsTool(t *testing.T) {
	tool := NewFieldsTool(NewDemoDataset())
	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "North Forty") || !strings.Contains(res.Content, "winter wheat") {
		t.Errorf("field listing incomplete: %s", res.Content)
	}
}

func TestBoundaryTool(t *testing.T) {
	tool := NewBoundaryTool(NewDemoDataset())

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"field_name":"north forty"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}

	var field Field
	if err := json.Unmarshal([]byte(res.Content), &field); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if field.Lat == 0 || field.Lon == 0 {
		t.Errorf("boundary missing coordinates: %+v", field)
	}
}

func TestBoundaryTool_UnknownField(t *testing.T) {
	tool := NewBoundaryTool(NewDemoDataset())
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"field_name":"nope"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for unknown field")
	}
}

func TestWeatherTool_PinnedForecast(t *testing.T) {
	data := NewDemoDataset()
	data.SetForecast(44.312, -96.771, Forecast{Summary: "heavy rain", RainMM: 18.4})

	tool := NewWeatherTool(data)
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"lat":44.312,"lon":-96.771}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(res.Content, "heavy rain") {
		t.Errorf("pinned forecast not returned: %s", res.Content)
	}
}

func TestMarketTool(t *testing.T) {
	tool := NewMarketTool(NewDemoDataset())
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"crop":"Corn"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "bushel") {
		t.Errorf("quote missing unit: %s", res.Content)
	}
}

func TestRegistryValidatesWeatherArgs(t *testing.T) {
	registry := agent.NewToolRegistry()
	if err := RegisterAll(registry, NewDemoDataset()); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Missing required lat/lon comes back as an error result, not an error.
	res, err := registry.Execute(context.Background(), "get_weather", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Error("expected validation error result")
	}
	if !strings.Contains(res.Content, "get_weather") {
		t.Errorf("error result should name the tool: %s", res.Content)
	}
}
