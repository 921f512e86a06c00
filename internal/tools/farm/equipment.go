package farm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldhand/fieldhand/internal/agent"
)

// EquipmentTool reports last-known machine telemetry.
type EquipmentTool struct {
	source EquipmentSource
}

// NewEquipmentTool creates the equipment-status tool.
func NewEquipmentTool(source EquipmentSource) *EquipmentTool {
	return &EquipmentTool{source: source}
}

func (t *EquipmentTool) Name() string {
	return "get_equipment_status"
}

func (t *EquipmentTool) Description() string {
	return "List farm equipment with current status, fuel level, and engine hours. Takes no arguments."
}

func (t *EquipmentTool) Capability() string {
	return "equipment"
}

func (t *EquipmentTool) Schema() json.RawMessage {
	return marshalSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	})
}

func (t *EquipmentTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	equipment, err := t.source.ListEquipment(ctx)
	if err != nil {
		return toolError(fmt.Sprintf("list equipment: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"count":     len(equipment),
		"equipment": equipment,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
