package models

import (
	"encoding/json"
	"testing"
)

func TestCapabilitySet_Has(t *testing.T) {
	set := NewCapabilitySet("equipment", "weather", "")

	if !set.Has("equipment") {
		t.Error("equipment should be enabled")
	}
	if !set.Has("weather") {
		t.Error("weather should be enabled")
	}
	if set.Has("imagery") {
		t.Error("imagery should not be enabled")
	}

	// Untagged tools are unrestricted.
	if !set.Has("") {
		t.Error("empty tag should always be allowed")
	}
}

func TestCapabilitySet_EnableDisable(t *testing.T) {
	set := NewCapabilitySet()

	set.Enable("market")
	if !set.Has("market") {
		t.Error("market should be enabled after Enable")
	}

	set.Disable("market")
	if set.Has("market") {
		t.Error("market should be disabled after Disable")
	}

	// Enabling the empty tag is a no-op.
	set.Enable("")
	if len(set.Tags()) != 0 {
		t.Errorf("got tags %v, want none", set.Tags())
	}
}

func TestLLMResponse_HasToolCalls(t *testing.T) {
	var nilResp *LLMResponse
	if nilResp.HasToolCalls() {
		t.Error("nil response should have no tool calls")
	}

	resp := &LLMResponse{Content: "hello"}
	if resp.HasToolCalls() {
		t.Error("response without tool calls should report false")
	}

	resp.ToolCalls = []ToolCall{{ID: "call-1", Name: "getFields"}}
	if !resp.HasToolCalls() {
		t.Error("response with tool calls should report true")
	}
}

func TestToolCall_JSONRoundTrip(t *testing.T) {
	call := ToolCall{
		ID:    "call-1",
		Name:  "get_field_boundary",
		Input: json.RawMessage(`{"field_id":"f-12"}`),
	}

	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ToolCall
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Name != call.Name || decoded.ID != call.ID {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
