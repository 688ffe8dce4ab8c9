// Package gateway orchestrates the zero-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the zero-gateway server.
// It wires the access-control stack together — failure ledger, session
// store, panic switch, connection authorizer — and runs the gRPC and HTTP
// servers behind it.
//
// # HTTP API
//
// Routes registered in api.go:
//
//   - GET /health - Liveness check (unauthenticated, observable in lockdown)
//   - GET /api/state - Lockdown state and live session count
//   - GET /api/devices - Paired devices (no fingerprints)
//   - POST /api/panic - Activate emergency lockdown
//   - GET / - Control UI; answers with the caller's authorized identity
//
// Everything except /health goes through authz.Middleware: /api/* as kind
// "api" (bearer token only), / as kind "control-ui" (session cookie or
// bearer token, minting a session on login).
//
// # gRPC
//
// Device connections use gRPC with the authz unary and stream interceptors
// installed; the standard health service is registered behind them.
//
// # Lockdown
//
// The gateway registers an activation watcher on the panic switch. When
// lockdown activates — over the API or out-of-band via zero-admin against
// the shared database — every tracked TCP connection is severed (conns.go),
// sessions are revoked by the switch, and the authorizer refuses all new
// connections until an operator resets with the reset key.
//
// # Maintenance
//
// A background sweep runs every minute: it adopts out-of-band panic state
// changes from the database and drops expired ledger records and sessions
// so idle state does not accumulate.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx)   // blocks until ctx is canceled, then shuts down
package gateway
