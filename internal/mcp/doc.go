// Package mcp implements heron's Model Context Protocol server.
//
// The server exposes the answer pipeline and the document index as MCP
// tools over a stdio transport, so MCP clients (Genkit CLI, editors,
// agent frameworks) can query an indexed corpus without going through
// the HTTP API:
//
//   - ask: run a question through the full answer pipeline
//   - search_documents: raw semantic lookup against the document index
//
// Handlers are inline in the net/http.Handler manner: each tool builds
// its CallToolResult directly, with no conversion layer in between.
// Input schemas are inferred from the input structs with jsonschema-go.
//
// Two error channels exist. Infrastructure failures (the index is
// unreachable, marshaling breaks) surface as protocol errors from the
// handler. Everything a client can act on, including degraded pipeline
// runs and input validation, comes back as a result with IsError set so
// the calling model can read it and adjust.
//
// Logs go to stderr; stdout belongs to the JSON-RPC stream.
package mcp
