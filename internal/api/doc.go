// Package api hosts the HTTP server, middleware, and request dispatch.
// Operational routes are served directly:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//
// Every other request falls through to the Dispatcher, which resolves it
// against the routing table and invokes the handler registered for the target.
package api
