package gateway

import (
	"errors"
	"net/http"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/pkg/models"
)

// ChatRequest is one user turn submitted over HTTP.
type ChatRequest struct {
	// SessionKey identifies the conversation; a new session is created on
	// first use of a key.
	SessionKey string `json:"session_key"`

	// Message is the user's message text.
	Message string `json:"message"`

	// Capabilities enables additional capability tags on the session before
	// the turn runs. Tags accumulate; they are never removed here.
	Capabilities []string `json:"capabilities,omitempty"`

	// Model overrides the configured model for this turn.
	Model string `json:"model,omitempty"`
}

// ChatResponse is the completed turn.
type ChatResponse struct {
	SessionID  string                   `json:"session_id"`
	Content    string                   `json:"content"`
	Model      string                   `json:"model"`
	Usage      models.Usage             `json:"usage"`
	Rounds     int                      `json:"rounds"`
	ToolsUsed  []string                 `json:"tools_used,omitempty"`
	Dropped    []string                 `json:"dropped_tools,omitempty"`
	Validation *models.ValidationResult `json:"validation,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionKey == "" {
		writeError(w, http.StatusBadRequest, "session_key is required")
		return
	}

	ctx := r.Context()

	session, err := s.opts.Sessions.GetOrCreate(ctx, req.SessionKey)
	if err != nil {
		s.logger.Error("session lookup failed", "session_key", req.SessionKey, "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	if len(req.Capabilities) > 0 {
		if session.Capabilities == nil {
			session.Capabilities = models.NewCapabilitySet()
		}
		for _, tag := range req.Capabilities {
			session.Capabilities.Enable(tag)
		}
		if err := s.opts.Sessions.Update(ctx, session); err != nil {
			s.logger.Error("session update failed", "session_id", session.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "session update failed")
			return
		}
	}

	history, err := s.opts.Sessions.GetHistory(ctx, session.ID, s.opts.HistoryLimit)
	if err != nil {
		s.logger.Error("history load failed", "session_id", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "history load failed")
		return
	}

	userMsg := &models.Message{Role: models.RoleUser, Content: req.Message}
	if err := s.opts.Sessions.AppendMessage(ctx, session.ID, userMsg); err != nil {
		s.logger.Error("append user message failed", "session_id", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "message persist failed")
		return
	}

	msgs := historyToCompletion(history)
	msgs = append(msgs, agent.CompletionMessage{Role: string(models.RoleUser), Content: req.Message})

	model := req.Model
	if model == "" {
		model = s.opts.Model
	}

	result, err := s.opts.Driver.RunTurn(ctx, &agent.TurnRequest{
		Session:     session,
		Messages:    msgs,
		UserQuery:   req.Message,
		Model:       model,
		System:      s.opts.System,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		var turnErr *agent.TurnError
		if errors.As(err, &turnErr) {
			s.logger.Error("turn failed",
				"session_id", session.ID,
				"phase", turnErr.Phase,
				"round", turnErr.Round,
				"gathered_results", len(turnErr.ToolResults),
				"error", turnErr.Cause,
			)
		} else {
			s.logger.Error("turn failed", "session_id", session.ID, "error", err)
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.TurnCounter.WithLabelValues("error").Inc()
		}
		writeError(w, http.StatusBadGateway, "turn failed: "+err.Error())
		return
	}

	s.recordTurn(result)

	for _, m := range result.Messages {
		if err := s.opts.Sessions.AppendMessage(ctx, session.ID, completionToMessage(m)); err != nil {
			s.logger.Error("append turn message failed", "session_id", session.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "message persist failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:  session.ID,
		Content:    result.Content,
		Model:      result.Model,
		Usage:      result.Usage,
		Rounds:     result.Rounds,
		ToolsUsed:  callNames(result.ExecutedCalls),
		Dropped:    callNames(result.DroppedCalls),
		Validation: result.Validation,
	})
}

func (s *Server) recordTurn(result *agent.TurnResult) {
	m := s.opts.Metrics
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues("success").Inc()
	m.TurnRounds.Observe(float64(result.Rounds))
	m.LLMTokensUsed.WithLabelValues(result.Model, "prompt").Add(float64(result.Usage.PromptTokens))
	m.LLMTokensUsed.WithLabelValues(result.Model, "completion").Add(float64(result.Usage.CompletionTokens))
	for _, call := range result.DroppedCalls {
		m.ToolCallsDropped.WithLabelValues(call.Name).Inc()
	}
	if result.Validation != nil {
		m.ValidationConfidence.Observe(float64(result.Validation.Confidence))
	}
}

func historyToCompletion(history []*models.Message) []agent.CompletionMessage {
	msgs := make([]agent.CompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, agent.CompletionMessage{
			Role:        string(m.Role),
			Content:     m.Content,
			ToolCalls:   m.ToolCalls,
			ToolResults: m.ToolResults,
		})
	}
	return msgs
}

func completionToMessage(m agent.CompletionMessage) *models.Message {
	return &models.Message{
		Role:        models.Role(m.Role),
		Content:     m.Content,
		ToolCalls:   m.ToolCalls,
		ToolResults: m.ToolResults,
	}
}

func callNames(calls []models.ToolCall) []string {
	if len(calls) == 0 {
		return nil
	}
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	return names
}
