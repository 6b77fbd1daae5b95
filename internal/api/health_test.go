package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heronai/heron/internal/log"
)

func TestHealth_AlwaysOK(t *testing.T) {
	rec := httptest.NewRecorder()
	health(log.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestReadiness_NoPool(t *testing.T) {
	rec := httptest.NewRecorder()
	readiness(nil, log.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d", rec.Code, http.StatusOK)
	}
}
