// Package cmd defines the coreapi command line.
//
// Architecture overview:
//   - Routing: internal/routing compiles the ordered rule list from internal/core once at start-up. Each request is
//     resolved by method and path; the first matching rule wins and its single capture, if any, is bound as a param.
//   - Dispatch: internal/api serves /healthz, /readyz and /metrics directly and hands every other request to the
//     Dispatcher, which invokes the handler registered for the matched target.
//   - Persistence: internal/database.Accessor caches one connection from the configured provider (MongoDB by
//     default, Postgres JSONB tables optionally). It connects lazily, reconnects after Invalidate, a failed health
//     check or a query that lost its connection, and never retries on its own.
//   - Assets: static files come from a local directory or a GCS bucket.
//   - Configuration & plumbing: Viper populates config from env (COREAPI_*) and an optional file; zap provides
//     structured logging; Prometheus metrics are exported on /metrics; dispatches are traced with OpenTelemetry.
//
// Commands:
//   - coreapi serve                       run the HTTP service
//   - coreapi routes [METHOD PATH]        print the rule table, or resolve one request against it
//   - coreapi user add --username --password
//     seed an account in the users collection
package cmd
