// Package store provides persistence for zero-gateway.
//
// Two concerns live here:
//
//   - The device trust store: paired device identities, keyed by the
//     opaque fingerprint a device presents at connection time. Pairing and
//     revocation are managed through the admin CLI; the connection
//     authorizer only reads.
//
//   - Durable panic state: a single-row table backing the emergency
//     lockdown switch, so a process crash or restart cannot clear an
//     active lockdown.
//
// The SQLite implementation uses modernc.org/sqlite (pure Go, no cgo)
// with WAL mode, and creates its schema on first open.
package store
