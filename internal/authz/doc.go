// Package authz decides whether an inbound connection may talk to the
// gateway at all.
//
// # Decision procedure
//
// Every attempt runs the same ordered checks:
//
//  1. Emergency lockdown (panic mode) denies everything first.
//  2. Brute-force blocks deny known offenders next.
//  3. Only then are credentials resolved, per connection kind:
//
//     - control-ui: a valid session cookie, else a bearer token (which
//       also mints a fresh session cookie for the browser).
//     - api: bearer token only.
//     - device: a paired device-identity proof, skippable by a valid
//       bearer token under any posture, or by the shared secret only when
//       the relaxed posture is explicitly enabled.
//
// Failures feed back into the brute-force ledger and incur the tarpit
// delay; successes clear the caller's slate.
//
// # Surfaces
//
// The same Authorizer backs the HTTP middleware (browser and API
// requests) and the gRPC interceptors (device connections). Both attach
// an Identity to the request context for downstream handlers, in the
// WithIdentity/FromContext pattern.
//
// Denials are opaque: callers see a coarse reason code (system-locked,
// rate-limited, invalid-credentials) and nothing about lockout timing or
// which credential field failed.
package authz
