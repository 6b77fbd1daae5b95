package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// maxDocumentBody bounds document upload bodies.
const maxDocumentBody = 10 << 20

// documentHandler ingests uploaded text into the index and removes it
// again by source.
type documentHandler struct {
	ingestor Ingestor
	store    DocumentStore
	logger   *slog.Logger
}

// uploadRequest is the POST /api/v1/documents body. Source defaults to a
// generated upload ID; SessionID scopes the material to one conversation.
type uploadRequest struct {
	Content   string `json:"content"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_content", "content is required")
		return
	}

	// The documents table stores session_id as a UUID, so reject anything
	// that would fail at insert time.
	if req.SessionID != "" {
		if _, err := uuid.Parse(req.SessionID); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
			return
		}
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "upload:" + uuid.NewString()
	}

	n, err := h.ingestor.Text(r.Context(), req.Content, req.Title, source, req.SessionID)
	if err != nil {
		h.logger.Error("ingesting document", "source", source, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "ingest_failed", "could not ingest document")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, map[string]any{
		"source": source,
		"chunks": n,
	})
}

func (h *documentHandler) deleteSource(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_source", "source query parameter is required")
		return
	}

	n, err := h.store.DeleteSource(r.Context(), source)
	if err != nil {
		h.logger.Error("deleting documents", "source", source, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "delete_failed", "could not delete documents")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"source":  source,
		"deleted": n,
	})
}
