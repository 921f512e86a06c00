package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// scriptedProvider returns canned responses in order and records every
// request it sees.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*models.LLMResponse
	errs      []error
	requests  []*CompletionRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req *CompletionRequest) (*models.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.requests)
	p.requests = append(p.requests, req)
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	if idx >= len(p.responses) {
		return nil, fmt.Errorf("scripted provider exhausted after %d calls", idx)
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) SupportsTools() bool { return true }

type fakeTool struct {
	name       string
	capability string
	schema     json.RawMessage
	execute    func(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

func (t *fakeTool) Name() string            { return t.name }
func (t *fakeTool) Description() string     { return "test tool " + t.name }
func (t *fakeTool) Capability() string      { return t.capability }
func (t *fakeTool) Schema() json.RawMessage { return t.schema }

func (t *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	if t.execute != nil {
		return t.execute(ctx, params)
	}
	return &ToolResult{Content: "ok"}, nil
}

func emptySchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func textResponse(content string) *models.LLMResponse {
	return &models.LLMResponse{
		Content: content,
		Model:   "test-model",
		Usage:   models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func toolResponse(calls ...models.ToolCall) *models.LLMResponse {
	resp := textResponse("")
	resp.ToolCalls = calls
	return resp
}

func testSession(tags ...string) *models.Session {
	return &models.Session{
		ID:           "sess-1",
		Capabilities: models.NewCapabilitySet(tags...),
	}
}

func newTestDriver(t *testing.T, provider LLMProvider, tools ...Tool) (*Driver, *ToolRegistry) {
	t.Helper()
	registry := NewToolRegistry()
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name(), err)
		}
	}
	driver, err := NewDriver(DriverOptions{Provider: provider, Registry: registry})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return driver, registry
}

func userTurn(query string) []CompletionMessage {
	return []CompletionMessage{{Role: "user", Content: query}}
}

func TestDriver_NoToolCalls_SingleProviderCall(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		textResponse("You have no fields registered yet."),
	}}
	driver, _ := newTestDriver(t, provider)

	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession(),
		Messages: userTurn("what fields do I have?"),
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}

	if len(provider.requests) != 1 {
		t.Errorf("provider calls = %d, want 1", len(provider.requests))
	}
	if result.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", result.Rounds)
	}
	if result.Content != "You have no fields registered yet." {
		t.Errorf("unexpected content %q", result.Content)
	}
	if len(result.Messages) != 1 || result.Messages[0].Role != "assistant" {
		t.Errorf("expected a single final assistant message, got %+v", result.Messages)
	}
}

func TestDriver_ToolRound_NarratesResults(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		toolResponse(models.ToolCall{ID: "call-1", Name: "getFields", Input: json.RawMessage(`{}`)}),
		textResponse("You have 3 fields."),
	}}
	fields := &fakeTool{
		name:       "getFields",
		capability: "equipment",
		schema:     emptySchema(),
		execute: func(context.Context, json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: `["north", "south", "creek"]`}, nil
		},
	}
	driver, _ := newTestDriver(t, provider, fields)

	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("what fields do I have?"),
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}

	if result.Rounds != 2 {
		t.Fatalf("rounds = %d, want 2", result.Rounds)
	}
	if len(result.ToolResults) != 1 {
		t.Fatalf("tool results = %d, want 1", len(result.ToolResults))
	}
	if result.ToolResults[0].ToolCallID != "call-1" {
		t.Errorf("result keyed to %q, want call-1", result.ToolResults[0].ToolCallID)
	}
	if result.ToolResults[0].IsError {
		t.Errorf("unexpected error result: %s", result.ToolResults[0].Content)
	}

	// Second round is a terminal narrative pass: getFields is not a
	// chain precursor so tools must be disabled.
	if len(provider.requests[0].Tools) == 0 {
		t.Error("first round should offer tools")
	}
	if len(provider.requests[1].Tools) != 0 {
		t.Error("second round should have tools disabled")
	}

	// The merged conversation carries the call and its result.
	second := provider.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("second round history length = %d, want 3", len(second))
	}
	if len(second[1].ToolCalls) != 1 || len(second[2].ToolResults) != 1 {
		t.Error("merged history missing tool call or result")
	}
}

func TestDriver_ChainedBoundaryThenWeather(t *testing.T) {
	boundaryCall := models.ToolCall{ID: "call-1", Name: "get_field_boundary", Input: json.RawMessage(`{"field_id":"f-12"}`)}
	weatherCall := models.ToolCall{ID: "call-2", Name: "get_weather", Input: json.RawMessage(`{"lat":41.2,"lon":-95.9}`)}

	provider := &scriptedProvider{responses: []*models.LLMResponse{
		toolResponse(boundaryCall),
		toolResponse(weatherCall),
		textResponse("Field X got 12mm of rain this week."),
	}}

	boundary := &fakeTool{
		name:       "get_field_boundary",
		capability: "equipment",
		schema:     json.RawMessage(`{"type":"object","properties":{"field_id":{"type":"string"}},"required":["field_id"]}`),
		execute: func(context.Context, json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: `{"centroid":{"lat":41.2,"lon":-95.9}}`}, nil
		},
	}
	weather := &fakeTool{
		name:       "get_weather",
		capability: "weather",
		schema:     json.RawMessage(`{"type":"object","properties":{"lat":{"type":"number"},"lon":{"type":"number"}},"required":["lat","lon"]}`),
		execute: func(context.Context, json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: `{"rain_mm":12}`}, nil
		},
	}
	driver, _ := newTestDriver(t, provider, boundary, weather)

	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment", "weather"),
		Messages: userTurn("how much rain did field X get this week?"),
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}

	if result.Rounds != 3 {
		t.Fatalf("rounds = %d, want 3", result.Rounds)
	}
	if len(result.ToolResults) != 2 {
		t.Fatalf("tool results = %d, want 2", len(result.ToolResults))
	}

	// Boundary success plus weather term in the query re-enables tools for
	// round 2; the bound then forces round 3 to be terminal.
	if len(provider.requests[1].Tools) == 0 {
		t.Error("second round should have tools re-enabled for the dependent call")
	}
	if len(provider.requests[2].Tools) != 0 {
		t.Error("third round should have tools disabled")
	}
}

func TestDriver_ToolEnabledRoundBound(t *testing.T) {
	boundaryCall := func(id string) models.ToolCall {
		return models.ToolCall{ID: id, Name: "get_field_boundary", Input: json.RawMessage(`{"field_id":"f-12"}`)}
	}
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		toolResponse(boundaryCall("call-1")),
		toolResponse(boundaryCall("call-2")),
		textResponse("done"),
	}}
	boundary := &fakeTool{
		name:       "get_field_boundary",
		capability: "equipment",
		schema:     emptySchema(),
		execute: func(context.Context, json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: `{"centroid":{"lat":1,"lon":2}}`}, nil
		},
	}

	registry := NewToolRegistry()
	if err := registry.Register(boundary); err != nil {
		t.Fatal(err)
	}
	driver, err := NewDriver(DriverOptions{
		Provider: provider,
		Registry: registry,
		// Always chain, so only the round bound stops the loop.
		Chain: func([]models.ToolCall, []models.ToolResult, string) bool { return true },
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("weather for field X"),
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}

	toolEnabled := 0
	for _, req := range provider.requests {
		if len(req.Tools) > 0 {
			toolEnabled++
		}
	}
	if toolEnabled != 2 {
		t.Errorf("tool-enabled rounds = %d, want 2", toolEnabled)
	}
	if result.Rounds != 3 {
		t.Errorf("rounds = %d, want 3", result.Rounds)
	}
}

func TestDriver_CapabilityFilterDropsCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		toolResponse(
			models.ToolCall{ID: "call-1", Name: "getFields", Input: json.RawMessage(`{}`)},
			models.ToolCall{ID: "call-2", Name: "get_imagery", Input: json.RawMessage(`{}`)},
		),
		textResponse("You have 3 fields; imagery is not available."),
	}}
	executed := false
	fields := &fakeTool{name: "getFields", capability: "equipment", schema: emptySchema()}
	imagery := &fakeTool{
		name:       "get_imagery",
		capability: "imagery",
		schema:     emptySchema(),
		execute: func(context.Context, json.RawMessage) (*ToolResult, error) {
			executed = true
			return &ToolResult{Content: "image"}, nil
		},
	}
	driver, _ := newTestDriver(t, provider, fields, imagery)

	// Session has equipment but not imagery.
	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("show me my fields and their imagery"),
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}

	if executed {
		t.Error("dropped tool must not execute")
	}
	if len(result.DroppedCalls) != 1 || result.DroppedCalls[0].Name != "get_imagery" {
		t.Errorf("dropped calls = %+v, want get_imagery", result.DroppedCalls)
	}
	if len(result.ExecutedCalls) != 1 || result.ExecutedCalls[0].Name != "getFields" {
		t.Errorf("executed calls = %+v, want getFields", result.ExecutedCalls)
	}

	// Both calls still get a result: the dropped one is a synthesized
	// error the model can narrate.
	if len(result.ToolResults) != 2 {
		t.Fatalf("tool results = %d, want 2", len(result.ToolResults))
	}
	dropped := result.ToolResults[1]
	if dropped.ToolCallID != "call-2" || !dropped.IsError {
		t.Errorf("dropped call result = %+v, want error keyed to call-2", dropped)
	}
	if !strings.Contains(dropped.Content, "not enabled") {
		t.Errorf("dropped result content = %q", dropped.Content)
	}
}

func TestDriver_ProviderErrorKeepsGatheredResults(t *testing.T) {
	providerErr := errors.New("upstream 500")
	provider := &scriptedProvider{
		responses: []*models.LLMResponse{
			toolResponse(models.ToolCall{ID: "call-1", Name: "getFields", Input: json.RawMessage(`{}`)}),
			nil,
		},
		errs: []error{nil, providerErr},
	}
	fields := &fakeTool{name: "getFields", capability: "equipment", schema: emptySchema()}
	driver, _ := newTestDriver(t, provider, fields)

	_, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("what fields do I have?"),
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var turnErr *TurnError
	if !errors.As(err, &turnErr) {
		t.Fatalf("error type %T, want *TurnError", err)
	}
	if turnErr.Phase != PhaseRegenerating {
		t.Errorf("phase = %s, want %s", turnErr.Phase, PhaseRegenerating)
	}
	if len(turnErr.ToolResults) != 1 {
		t.Errorf("tool results carried = %d, want 1", len(turnErr.ToolResults))
	}
	if !errors.Is(err, providerErr) {
		t.Error("cause should unwrap to the provider error")
	}
}

func TestDriver_MissingArgsNarratedNotRaised(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		// Model omits the required field_id.
		toolResponse(models.ToolCall{ID: "call-1", Name: "get_field_boundary", Input: json.RawMessage(`{}`)}),
		textResponse("I could not look up the boundary without knowing which field."),
	}}
	boundary := &fakeTool{
		name:       "get_field_boundary",
		capability: "equipment",
		schema:     json.RawMessage(`{"type":"object","properties":{"field_id":{"type":"string"}},"required":["field_id"]}`),
	}
	driver, _ := newTestDriver(t, provider, boundary)

	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("boundary please"),
	})
	if err != nil {
		t.Fatalf("validation failure must not abort the turn: %v", err)
	}

	if len(result.ToolResults) != 1 || !result.ToolResults[0].IsError {
		t.Fatalf("expected one error result, got %+v", result.ToolResults)
	}
	if !strings.Contains(result.ToolResults[0].Content, "field_id") {
		t.Errorf("error result should name the missing key: %q", result.ToolResults[0].Content)
	}
	if result.Content == "" {
		t.Error("turn should still complete with a narrated explanation")
	}
}

func TestDriver_NilToolResultBecomesErrorResult(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		toolResponse(models.ToolCall{ID: "call-1", Name: "getFields", Input: json.RawMessage(`{}`)}),
		textResponse("I could not read your field list just now."),
	}}
	fields := &fakeTool{
		name:       "getFields",
		capability: "equipment",
		schema:     emptySchema(),
		execute: func(context.Context, json.RawMessage) (*ToolResult, error) {
			return nil, nil
		},
	}
	driver, _ := newTestDriver(t, provider, fields)

	result, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("what fields do I have?"),
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}

	// A handler returning (nil, nil) must still yield a result keyed to its
	// call; otherwise the merged history carries a call with no result.
	if len(result.ToolResults) != 1 {
		t.Fatalf("tool results = %d, want 1", len(result.ToolResults))
	}
	got := result.ToolResults[0]
	if got.ToolCallID != "call-1" {
		t.Errorf("result keyed to %q, want call-1", got.ToolCallID)
	}
	if !got.IsError {
		t.Error("nil result should surface as an error result")
	}
	if !strings.Contains(got.Content, "no result") {
		t.Errorf("error result content = %q", got.Content)
	}

	second := provider.requests[1].Messages
	if len(second) != 3 || len(second[2].ToolResults) != 1 {
		t.Fatalf("merged history should carry the call's result, got %+v", second)
	}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (e *recordingEmitter) Emit(_ string, ev models.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) steps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps := make([]string, len(e.events))
	for i, ev := range e.events {
		steps[i] = ev.Step
	}
	return steps
}

func TestDriver_EmitsProgressSteps(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.LLMResponse{
		toolResponse(models.ToolCall{ID: "call-1", Name: "getFields", Input: json.RawMessage(`{}`)}),
		textResponse("done"),
	}}
	fields := &fakeTool{name: "getFields", capability: "equipment", schema: emptySchema()}

	registry := NewToolRegistry()
	if err := registry.Register(fields); err != nil {
		t.Fatal(err)
	}
	emitter := &recordingEmitter{}
	driver, err := NewDriver(DriverOptions{Provider: provider, Registry: registry, Progress: emitter})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := driver.RunTurn(context.Background(), &TurnRequest{
		Session:  testSession("equipment"),
		Messages: userTurn("fields?"),
	}); err != nil {
		t.Fatalf("run turn: %v", err)
	}

	want := []string{"generating", "executing", "generating", "responding"}
	got := emitter.steps()
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}
