// Package controller holds the HTTP middlewares and debug handlers shared by
// the scan engine's API server.
//
// Middlewares:
//   - WithCORS: permissive CORS headers plus OPTIONS preflight handling.
//   - WithLogger: request-scoped logger with a request ID, access logging on
//     completion. The wrapped writer forwards Flush so server-sent event
//     streams keep working through it.
//
// Handlers:
//   - PprofMux: net/http/pprof endpoints for mounting under a debug prefix.
package controller
