// ABOUTME: Process-wide emergency lockdown switch with durable state
// ABOUTME: Activation revokes all sessions; reset requires a higher-bar authorization

package panicmode

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Errors returned by Reset. Neither alters the panic state.
var (
	// ErrNotAuthorized is returned when the reset key is absent or wrong.
	ErrNotAuthorized = errors.New("panic reset not authorized")

	// ErrResetDisabled is returned when no reset key hash is configured.
	// With no higher-bar credential available, reset is impossible and the
	// system stays locked down.
	ErrResetDisabled = errors.New("panic reset disabled: no reset key configured")
)

// dummyHash keeps Reset timing constant when no key hash is configured,
// mirroring the login path's defense against credential probing.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// State is the persisted panic state. A single process-wide value.
type State struct {
	Active      bool      `json:"active"`
	ActivatedAt time.Time `json:"activated_at,omitzero"`
	Reason      string    `json:"reason,omitempty"`
}

// StateStore persists panic state so a crash or restart cannot clear it.
type StateStore interface {
	// LoadPanicState returns the stored state and whether any state was
	// stored at all.
	LoadPanicState() (State, bool, error)

	// SavePanicState durably replaces the stored state.
	SavePanicState(State) error
}

// SessionRevoker invalidates live sessions on activation.
type SessionRevoker interface {
	RevokeAll() int
}

// Switch is the emergency lockdown switch. It is an explicitly injected
// handle, not a package singleton, so tests run isolated instances.
// All methods are safe for concurrent use; state transitions are
// linearized under one mutex, so concurrent activations collapse to a
// single effective transition and a reset never races past an activate.
type Switch struct {
	mu       sync.Mutex
	state    State
	store    StateStore
	sessions SessionRevoker
	keyHash  []byte
	watchers []func(reason string)
	logger   *slog.Logger
}

// Options configures a Switch.
type Options struct {
	// Store persists panic state. Required.
	Store StateStore

	// Sessions is revoked wholesale on activation. Optional.
	Sessions SessionRevoker

	// ResetKeyHash is the bcrypt hash of the operator reset key. Empty
	// means reset is impossible.
	ResetKeyHash string
}

// New loads the persisted state and returns the switch. If the state
// cannot be read reliably the switch comes up locked: open-by-default on
// uncertainty is the greater risk.
func New(opts Options) (*Switch, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("panicmode: state store is required")
	}

	s := &Switch{
		store:    opts.Store,
		sessions: opts.Sessions,
		keyHash:  []byte(opts.ResetKeyHash),
		logger:   slog.Default().With("component", "panic"),
	}

	state, found, err := opts.Store.LoadPanicState()
	switch {
	case err != nil:
		s.state = State{Active: true, ActivatedAt: time.Now().UTC(), Reason: "panic state unreadable"}
		s.logger.Error("panic state unreadable, failing closed", "error", err)
	case found:
		s.state = state
		if state.Active {
			s.logger.Warn("starting in panic mode",
				"activated_at", state.ActivatedAt,
				"reason", state.Reason)
		}
	}
	return s, nil
}

// IsActive reports whether the system is locked down.
func (s *Switch) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Active
}

// Current returns a copy of the current state.
func (s *Switch) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate locks the system down, persists the state, revokes all live
// sessions, and notifies activation watchers. Activating while already
// locked is idempotent and keeps the earliest activation timestamp. By the
// time Activate returns, no previously issued session can validate.
//
// A persistence failure is returned to the caller but the in-memory state
// is locked regardless: failing to persist must not leave the gate open.
func (s *Switch) Activate(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Active {
		return nil
	}

	state := State{Active: true, ActivatedAt: time.Now().UTC(), Reason: reason}
	persistErr := s.store.SavePanicState(state)
	s.lockDownLocked(state)

	if persistErr != nil {
		return fmt.Errorf("persisting panic state: %w", persistErr)
	}
	return nil
}

// Reset clears the lockdown, but only when the caller presents the
// operator reset key. This is deliberately a higher bar than connection
// auth: panic mode exists to survive compromised ordinary credentials.
// On any failure the system stays locked down.
func (s *Switch) Reset(resetKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.keyHash) == 0 {
		// Burn the comparison anyway so a missing config is not
		// distinguishable by timing.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(resetKey))
		return ErrResetDisabled
	}
	if resetKey == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(resetKey))
		return ErrNotAuthorized
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(resetKey)); err != nil {
		return ErrNotAuthorized
	}

	if !s.state.Active {
		return nil
	}

	s.state = State{}
	if err := s.store.SavePanicState(s.state); err != nil {
		// Re-lock: a reset that did not persist would resurrect on restart
		// anyway, and a half-applied reset is worse than none.
		s.state = State{Active: true, ActivatedAt: time.Now().UTC(), Reason: "reset persistence failed"}
		return fmt.Errorf("persisting panic reset: %w", err)
	}

	s.logger.Warn("panic mode reset by operator")
	return nil
}

// Sync reloads the persisted state and adopts it, so a server picks up
// transitions made out-of-band by the operator CLI against the shared
// database. Adopting an activation revokes sessions and notifies watchers
// exactly like Activate; adopting a reset clears the lockdown without the
// key, since the key was already checked by whoever persisted the reset.
// An unreadable state locks down, same as New.
func (s *Switch) Sync() {
	state, found, err := s.store.LoadPanicState()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		if !s.state.Active {
			s.lockDownLocked(State{Active: true, ActivatedAt: time.Now().UTC(), Reason: "panic state unreadable"})
			s.logger.Error("panic state unreadable, failing closed", "error", err)
		}
	case !found:
		// Nothing persisted yet; nothing to adopt.
	case state.Active && !s.state.Active:
		s.lockDownLocked(state)
		s.logger.Error("adopted out-of-band panic activation",
			"activated_at", state.ActivatedAt,
			"reason", state.Reason)
	case !state.Active && s.state.Active:
		s.state = State{}
		s.logger.Warn("adopted out-of-band panic reset")
	}
}

// lockDownLocked applies an activation: sets the state, revokes sessions,
// and notifies watchers. Caller holds s.mu.
func (s *Switch) lockDownLocked(state State) {
	s.state = state
	revoked := 0
	if s.sessions != nil {
		revoked = s.sessions.RevokeAll()
	}
	s.logger.Error("panic mode activated",
		"reason", state.Reason,
		"sessions_revoked", revoked)
	for _, w := range s.watchers {
		w(state.Reason)
	}
}

// OnActivate registers a callback invoked (under the switch lock) when the
// system transitions into lockdown. The server uses this to sever live
// privileged connections. Callbacks must not call back into the switch.
func (s *Switch) OnActivate(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}
