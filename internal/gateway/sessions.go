package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fieldhand/fieldhand/internal/sessions"
	"github.com/fieldhand/fieldhand/pkg/models"
)

// sessionView is the wire shape of a session; capabilities come out as a
// plain tag list.
type sessionView struct {
	ID           string   `json:"id"`
	Key          string   `json:"key"`
	Title        string   `json:"title,omitempty"`
	Capabilities []string `json:"capabilities"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toSessionView(s *models.Session) sessionView {
	tags := s.Capabilities.Tags()
	if tags == nil {
		tags = []string{}
	}
	return sessionView{
		ID:           s.ID,
		Key:          s.Key,
		Title:        s.Title,
		Capabilities: tags,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := s.opts.Sessions.List(r.Context(), sessions.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("session list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session list failed")
		return
	}

	views := make([]sessionView, 0, len(list))
	for _, sess := range list {
		views = append(views, toSessionView(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// handleSessionByID serves GET /v1/sessions/{id}, DELETE /v1/sessions/{id},
// and GET /v1/sessions/{id}/history.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "session id required")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		sess, err := s.opts.Sessions.Get(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionView(sess))

	case sub == "" && r.Method == http.MethodDelete:
		if err := s.opts.Sessions.Delete(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	case sub == "history" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		history, err := s.opts.Sessions.GetHistory(r.Context(), id, limit)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": history})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sessions.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Error("session store error", "error", err)
	writeError(w, http.StatusInternalServerError, "session store error")
}
