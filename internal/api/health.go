package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is the liveness probe for container orchestrators.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// readiness reports whether the server can reach its database. With no
// pool configured it degrades to a plain liveness answer.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness probe failed", "error", err)
			writeError(w, logger, http.StatusServiceUnavailable, "database_unavailable", "database is not reachable")
			return
		}

		stat := pool.Stat()
		writeJSON(w, logger, http.StatusOK, map[string]any{
			"status": "ok",
			"database": map[string]int32{
				"total_conns": stat.TotalConns(),
				"idle_conns":  stat.IdleConns(),
				"max_conns":   stat.MaxConns(),
			},
		})
	}
}
