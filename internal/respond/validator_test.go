package respond

import (
	"testing"

	"github.com/fieldhand/fieldhand/pkg/models"
)

func TestValidate_NoToolResults(t *testing.T) {
	v := NewValidator()

	res := v.Validate("hello", "Hi there!", nil)
	if res.Confidence != 100 {
		t.Errorf("confidence = %d, want 100", res.Confidence)
	}
	if len(res.Notes) != 0 {
		t.Errorf("unexpected notes: %v", res.Notes)
	}
}

func TestValidate_NarrationReflectsResults(t *testing.T) {
	v := NewValidator()

	results := []models.ToolResult{
		{ToolCallID: "call-1", Content: `{"fields":["north","south","creek"],"count":3}`},
	}
	res := v.Validate("what fields do I have?", "You have 3 fields: north, south and creek.", results)
	if res.Confidence != 95 {
		t.Errorf("confidence = %d, want 95", res.Confidence)
	}
}

func TestValidate_ResultsIgnoredByNarration(t *testing.T) {
	v := NewValidator()

	results := []models.ToolResult{
		{ToolCallID: "call-1", Content: `{"rain_mm":12,"station":"ELKHORN"}`},
	}
	res := v.Validate("rain?", "The weather is generally fine this time of year.", results)
	if res.Confidence != 30 {
		t.Errorf("confidence = %d, want 30", res.Confidence)
	}
	if len(res.Notes) == 0 {
		t.Error("expected a note about unreflected results")
	}
}

func TestValidate_PartialReflection(t *testing.T) {
	v := NewValidator()

	results := []models.ToolResult{
		{ToolCallID: "call-1", Content: `{"count":3}`},
		{ToolCallID: "call-2", Content: `{"rain_mm":987654}`},
	}
	res := v.Validate("q", "You have 3 fields.", results)
	if res.Confidence != 70 {
		t.Errorf("confidence = %d, want 70", res.Confidence)
	}
}

func TestValidate_AllResultsFailed(t *testing.T) {
	v := NewValidator()

	results := []models.ToolResult{
		{ToolCallID: "call-1", Content: "upstream unavailable", IsError: true},
	}
	res := v.Validate("q", "I couldn't reach the field service.", results)
	if res.Confidence != 60 {
		t.Errorf("confidence = %d, want 60", res.Confidence)
	}
}

func TestValidate_ConfidenceBounded(t *testing.T) {
	if got := models.ClampConfidence(150); got != 100 {
		t.Errorf("clamp(150) = %d", got)
	}
	if got := models.ClampConfidence(-5); got != 0 {
		t.Errorf("clamp(-5) = %d", got)
	}
}
