package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/heronai/heron/internal/conversation"
)

// sessionHandler exposes conversation CRUD. Limits and offsets are passed
// through raw; the store clamps them to its own bounds.
type sessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

// sessionResponse is the wire form of a session. The conversation types
// carry no JSON tags, so the handler owns the encoding.
type sessionResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(s *conversation.Session) sessionResponse {
	return sessionResponse{
		ID:           s.ID.String(),
		Title:        s.Title,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	// An empty body starts an untitled session.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	sess, err := h.store.CreateSession(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "session_create_failed", "could not create session")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, toSessionResponse(sess))
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	sessions, err := h.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "session_list_failed", "could not list sessions")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"sessions": out,
		"count":    len(out),
	})
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r, h.logger)
	if !ok {
		return
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "session_not_found", "session does not exist")
			return
		}
		h.logger.Error("loading session", "session", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "session_load_failed", "could not load session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toSessionResponse(sess))
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r, h.logger)
	if !ok {
		return
	}

	msgs, err := h.store.Messages(r.Context(), id, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "session_not_found", "session does not exist")
			return
		}
		h.logger.Error("listing messages", "session", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "message_list_failed", "could not list messages")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID.String(),
			Role:      m.Role,
			Content:   m.Content,
			Seq:       m.Seq,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"session_id": id.String(),
		"messages":   out,
		"count":      len(out),
	})
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "session_not_found", "session does not exist")
			return
		}
		h.logger.Error("deleting session", "session", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "session_delete_failed", "could not delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathSessionID parses the {id} path segment, answering 400 itself when the
// value is not a UUID.
func pathSessionID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_session_id", "session id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter, zero when absent or malformed.
// Zero lets the store substitute its defaults.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
