// ABOUTME: In-memory session store for browser control-UI clients
// ABOUTME: Issues crypto-random opaque tokens with a fixed lifetime policy

package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultLifetime matches the gateway's persistent-browser-session policy
// (Max-Age=31536000, one year).
const DefaultLifetime = 365 * 24 * time.Hour

// tokenBytes is the entropy per token. 32 bytes is double the 128-bit floor.
const tokenBytes = 32

// ErrTokenGeneration is returned when the system entropy source fails.
var ErrTokenGeneration = errors.New("generating session token")

// Session is an issued browser session. The token is the only credential;
// it is never logged raw (use Fingerprint for diagnostics).
type Session struct {
	Token     string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store issues and validates opaque session tokens. All methods are safe
// for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	lifetime time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a session store. A non-positive lifetime falls back to
// the one-year default.
func NewStore(lifetime time.Duration) *Store {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Store{
		sessions: make(map[string]*Session),
		lifetime: lifetime,
		logger:   slog.Default().With("component", "session"),
		now:      time.Now,
	}
}

// Lifetime returns the configured session lifetime.
func (s *Store) Lifetime() time.Duration {
	return s.lifetime
}

// Issue mints a new session for the given scope. Tokens are drawn from
// crypto/rand; a collision with a live token is retried, so no two valid
// sessions ever share a token.
func (s *Store) Issue(scope string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var token string
	for {
		t, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
		}
		if _, exists := s.sessions[t]; !exists {
			token = t
			break
		}
	}

	now := s.now()
	sess := &Session{
		Token:     token,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.lifetime),
	}
	s.sessions[token] = sess

	s.logger.Info("session issued",
		"token_fp", Fingerprint(token),
		"scope", scope,
		"expires_at", sess.ExpiresAt)
	return sess, nil
}

// Validate looks up a session by exact token match. Returns nil for an
// unknown, revoked, or expired token. Expired entries are dropped lazily.
func (s *Store) Validate(token string) *Session {
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, token)
		return nil
	}
	return sess
}

// Revoke invalidates a session immediately. Unknown tokens are a no-op.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; ok {
		delete(s.sessions, token)
		s.logger.Info("session revoked", "token_fp", Fingerprint(token))
	}
}

// RevokeAll invalidates every live session and returns how many were
// dropped. Used on panic activation: once this returns, no concurrent
// Validate can succeed with a previously issued token.
func (s *Store) RevokeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	if n > 0 {
		s.logger.Warn("all sessions revoked", "count", n)
	}
	return n
}

// Sweep drops expired sessions and returns how many were removed. Called
// periodically by the server so abandoned sessions do not accumulate.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Fingerprint returns a short non-reversible identifier for a token, safe
// for logs and debug output.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:8]
}

// generateToken returns a fresh URL-safe random token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
