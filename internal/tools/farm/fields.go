package farm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldhand/fieldhand/internal/agent"
)

// FieldsTool lists the fields visible to the session.
type FieldsTool struct {
	source FieldSource
}

// NewFieldsTool creates the field-listing tool.
func NewFieldsTool(source FieldSource) *FieldsTool {
	return &FieldsTool{source: source}
}

func (t *FieldsTool) Name() string {
	return "getFields"
}

func (t *FieldsTool) Description() string {
	return "List the user's fields with crop and area. Takes no arguments."
}

func (t *FieldsTool) Capability() string {
	return "fields"
}

func (t *FieldsTool) Schema() json.RawMessage {
	return marshalSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	})
}

func (t *FieldsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	fields, err := t.source.ListFields(ctx)
	if err != nil {
		return toolError(fmt.Sprintf("list fields: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"count":  len(fields),
		"fields": fields,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// BoundaryTool resolves a field's centroid coordinates and area. Its output
// feeds location-dependent follow-up tools like weather.
type BoundaryTool struct {
	source FieldSource
}

// NewBoundaryTool creates the boundary-lookup tool.
func NewBoundaryTool(source FieldSource) *BoundaryTool {
	return &BoundaryTool{source: source}
}

func (t *BoundaryTool) Name() string {
	return "get_field_boundary"
}

func (t *BoundaryTool) Description() string {
	return "Look up a field's boundary centroid (lat/lon) and area by field name."
}

func (t *BoundaryTool) Capability() string {
	return "fields"
}

func (t *BoundaryTool) Schema() json.RawMessage {
	return marshalSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"field_name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the field to look up.",
			},
		},
		"required": []string{"field_name"},
	})
}

func (t *BoundaryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		FieldName string `json:"field_name"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	field, err := t.source.GetField(ctx, input.FieldName)
	if err != nil {
		return toolError(err.Error()), nil
	}

	payload, err := json.MarshalIndent(field, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
