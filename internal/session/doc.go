// Package session issues and validates opaque browser session tokens.
//
// Tokens carry 256 bits of entropy from crypto/rand and are stored by
// exact value; there is no derivation or signing involved, so possession
// of the token is the whole credential. Sessions are long-lived (one year
// by default) to support persistent browser sessions, and are revocable
// individually (logout) or wholesale (panic activation).
//
// Cookie construction is fixed policy: Path=/, HttpOnly, SameSite=Strict,
// Max-Age matching the session lifetime, and Secure only when the caller
// confirmed TLS. Raw token values must never appear in logs; use
// Fingerprint for a short non-reversible identifier.
package session
