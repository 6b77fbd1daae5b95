// Package api provides the JSON REST API server for heron.
//
// # Architecture
//
// Routing uses net/http method patterns with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux so they stay fast and unthrottled.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — liveness, returns {"status":"ok"}
//   - GET /ready  — readiness, pings the database pool
//
// Chat:
//   - POST /api/v1/chat — run one question through the answer pipeline.
//     An omitted session_id starts a new session; the response always
//     carries the session the exchange was recorded in.
//
// Session CRUD:
//   - POST   /api/v1/sessions                — create a session
//   - GET    /api/v1/sessions                — list sessions, most recent first
//   - GET    /api/v1/sessions/{id}           — get one session
//   - GET    /api/v1/sessions/{id}/messages  — get a session's messages
//   - DELETE /api/v1/sessions/{id}           — delete a session and its messages
//
// Documents:
//   - POST   /api/v1/documents — ingest raw text or markdown into the index
//   - DELETE /api/v1/documents?source=... — remove everything from one source
//
// # Error Handling
//
// Errors use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Codes are stable machine-readable strings; messages are for humans.
// Responses are buffered before headers are written so an encoding
// failure can still produce a proper 500.
//
// # Dependencies
//
// Handlers consume narrow interfaces (QueryRunner, SessionStore,
// Ingestor, DocumentStore) so tests can stub collaborators without a
// database or model provider.
package api
