package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/heronai/heron/internal/conversation"
	"github.com/heronai/heron/internal/pipeline"
)

// maxChatBody bounds chat request bodies.
const maxChatBody = 1 << 20

// chatHandler answers questions through the pipeline and records the
// resulting exchange.
type chatHandler struct {
	runner   QueryRunner
	sessions SessionStore
	window   int
	logger   *slog.Logger
}

// chatRequest is the POST /api/v1/chat body. SessionID may be empty to
// start a new conversation.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// chatResponse mirrors the pipeline result plus the session the exchange
// was recorded in.
type chatResponse struct {
	Answer                 string  `json:"answer"`
	SessionID              string  `json:"session_id"`
	QueryType              string  `json:"query_type"`
	Temperature            float32 `json:"temperature"`
	RetrievedEvidenceCount int     `json:"retrieved_evidence_count"`
	WebSearchUsed          bool    `json:"web_search_used"`
	AnsweredFromMemory     bool    `json:"answered_from_memory"`
	Status                 string  `json:"status"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_message", "message is required")
		return
	}

	sess, ok := h.resolveSession(w, r, req.SessionID)
	if !ok {
		return
	}

	ctx := r.Context()

	convCtx := ""
	exchanges, err := h.sessions.RecentExchanges(ctx, sess.ID, h.window)
	if err != nil {
		// A history outage degrades to a context-free answer.
		h.logger.Warn("loading conversation context", "session", sess.ID, "error", err)
	} else {
		convCtx = conversation.FormatContext(exchanges)
	}

	res := h.runner.Run(ctx, pipeline.Request{
		UserQuery:           message,
		ConversationContext: convCtx,
		SessionScope:        sess.ID.String(),
	})

	if res.Status == pipeline.StatusSuccess {
		if err := h.sessions.AddExchange(ctx, sess.ID, message, res.FinalAnswer); err != nil {
			// The answer still reaches the client; only history is lost.
			h.logger.Error("persisting exchange", "session", sess.ID, "error", err)
		}
	}

	writeJSON(w, h.logger, http.StatusOK, chatResponse{
		Answer:                 res.FinalAnswer,
		SessionID:              sess.ID.String(),
		QueryType:              string(res.QueryType),
		Temperature:            res.SamplingTemperature,
		RetrievedEvidenceCount: res.RetrievedEvidence,
		WebSearchUsed:          res.WebSearchUsed,
		AnsweredFromMemory:     res.AnsweredFromMemory,
		Status:                 string(res.Status),
	})
}

// resolveSession loads the addressed session, or creates a fresh one when
// the request names none.
func (h *chatHandler) resolveSession(w http.ResponseWriter, r *http.Request, raw string) (*conversation.Session, bool) {
	ctx := r.Context()

	if strings.TrimSpace(raw) == "" {
		sess, err := h.sessions.CreateSession(ctx, "")
		if err != nil {
			h.logger.Error("creating session", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "session_create_failed", "could not create session")
			return nil, false
		}
		return sess, true
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
		return nil, false
	}

	sess, err := h.sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "session_not_found", "session does not exist")
			return nil, false
		}
		h.logger.Error("loading session", "session", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "session_load_failed", "could not load session")
		return nil, false
	}
	return sess, true
}
