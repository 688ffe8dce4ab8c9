// Package guard implements brute-force defense for the gateway.
//
// # Ledger
//
// The Ledger tracks authentication failures per client identifier
// (typically a source IP). Crossing the configured threshold within the
// sliding failure window issues a lockout whose duration doubles with each
// repeat offense, capped at a maximum. Memory is bounded two independent
// ways: idle records are garbage-collected after a retention period, and a
// hard capacity limit evicts the least-recently-failed client first.
//
// # Protector
//
// The Protector wraps the Ledger with the policy the connection authorizer
// consumes: IsBlocked for the hard block, and RecordFailure which also
// holds the calling connection for an exponentially escalating "tarpit"
// delay. The delay suspends only the offending caller's goroutine and is
// cancellable via context so connection teardown does not leak a timer.
//
// Malformed client identifiers are never rejected; they are normalized to
// a shared sentinel key so defense still applies to anonymized callers.
package guard
