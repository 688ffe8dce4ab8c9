// ABOUTME: Connection authorization decision procedure for all inbound callers
// ABOUTME: Reconciles sessions, bearer tokens, shared secret, and device identity

package authz

import (
	"context"
	"log/slog"

	"github.com/2389/zero-gateway/internal/guard"
	"github.com/2389/zero-gateway/internal/panicmode"
	"github.com/2389/zero-gateway/internal/session"
	"github.com/2389/zero-gateway/internal/store"
)

// ConnectionKind classifies an inbound connection.
type ConnectionKind string

const (
	KindControlUI ConnectionKind = "control-ui"
	KindAPI       ConnectionKind = "api"
	KindDevice    ConnectionKind = "device"
)

// Method identifies which credential satisfied authorization.
type Method string

const (
	MethodSession Method = "session"
	MethodToken   Method = "token"
	MethodShared  Method = "shared-secret"
	MethodDevice  Method = "device"
)

// DenyReason is the coarse reason code surfaced to a denied caller. Nothing
// finer-grained (remaining lockout time, which field was wrong) ever leaves
// this package.
type DenyReason string

const (
	DenySystemLocked       DenyReason = "system-locked"
	DenyRateLimited        DenyReason = "rate-limited"
	DenyInvalidCredentials DenyReason = "invalid-credentials"
)

// Credentials is the ephemeral bundle extracted from one connection
// attempt. It is never persisted.
type Credentials struct {
	// Token is a bearer token from the authorization header, query
	// parameter, or handshake payload.
	Token string

	// SharedAuth is the presence flag for the pre-shared secret; the
	// transport verifies the secret itself before setting this.
	SharedAuth bool

	// DeviceProof is the opaque paired-device identity proof.
	DeviceProof string

	// SessionToken is the browser session cookie value, if any.
	SessionToken string

	// SourceAddr identifies the caller for brute-force bookkeeping,
	// typically the source IP.
	SourceAddr string

	// Kind classifies the connection.
	Kind ConnectionKind
}

// Posture is the security posture the decision procedure runs under.
// Which credential kinds each connection kind accepts is fixed policy
// (see Authorize); the posture holds the operator-tunable part.
type Posture struct {
	// AllowInsecureControlUI relaxes device authorization: when set, a
	// presented shared secret is enough for a device connection to skip
	// the paired-identity check. Off by default; the shared secret is a
	// weaker credential than per-device pairing.
	AllowInsecureControlUI bool
}

// Verdict is the outcome of one authorization decision. Never stored.
type Verdict struct {
	Allowed bool
	Method  Method
	Reason  DenyReason

	// Identity names who was authorized: the token principal, the paired
	// device name, or the session scope.
	Identity string

	// Session is set when a fresh browser session was minted as part of a
	// successful control-ui login; the transport serializes it into the
	// session cookie.
	Session *session.Session
}

// TokenVerifier validates bearer tokens, returning the principal they
// identify.
type TokenVerifier interface {
	Verify(tokenString string) (principalID string, err error)
}

// DeviceTrust looks up paired devices by their presented identity proof.
type DeviceTrust interface {
	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*store.Device, error)
}

// Authorizer decides, per connection attempt, whether the caller may talk
// to the gateway at all. Safe for concurrent use.
type Authorizer struct {
	panic    *panicmode.Switch
	guard    *guard.Protector
	sessions *session.Store
	tokens   TokenVerifier
	devices  DeviceTrust
	logger   *slog.Logger
}

// New creates an Authorizer over the given collaborators.
func New(panicSwitch *panicmode.Switch, protector *guard.Protector, sessions *session.Store, tokens TokenVerifier, devices DeviceTrust) *Authorizer {
	return &Authorizer{
		panic:    panicSwitch,
		guard:    protector,
		sessions: sessions,
		tokens:   tokens,
		devices:  devices,
		logger:   slog.Default().With("component", "authz"),
	}
}

// Authorize runs the decision procedure. The ordering is load-bearing:
// the panic and rate-limit checks come before any credential is examined,
// so a locked-down or blocked caller can never probe the credential
// comparison logic. A failed resolution records the failure (incurring the
// tarpit delay on the calling connection) before the denial is returned.
func (a *Authorizer) Authorize(ctx context.Context, creds Credentials, posture Posture) Verdict {
	clientID := guard.NormalizeClientID(creds.SourceAddr)

	if a.panic.IsActive() {
		a.logger.Warn("connection denied: system locked",
			"client", clientID, "kind", string(creds.Kind))
		return Verdict{Reason: DenySystemLocked}
	}

	if a.guard.IsBlocked(clientID) {
		a.logger.Warn("connection denied: rate limited",
			"client", clientID, "kind", string(creds.Kind))
		return Verdict{Reason: DenyRateLimited}
	}

	verdict, ok := a.resolve(ctx, creds, posture)
	if !ok {
		_ = a.guard.RecordFailure(ctx, clientID)
		a.logger.Warn("connection denied: invalid credentials",
			"client", clientID, "kind", string(creds.Kind))
		return Verdict{Reason: DenyInvalidCredentials}
	}

	a.guard.RecordSuccess(clientID)
	a.logger.Info("connection authorized",
		"client", clientID,
		"kind", string(creds.Kind),
		"method", string(verdict.Method))
	return verdict
}

// resolve evaluates the applicable auth modes for the connection kind.
func (a *Authorizer) resolve(ctx context.Context, creds Credentials, posture Posture) (Verdict, bool) {
	switch creds.Kind {
	case KindControlUI:
		// A valid session cookie wins; otherwise a bearer token logs the
		// browser in and mints a fresh session for the caller to set.
		if sess := a.sessions.Validate(creds.SessionToken); sess != nil {
			return Verdict{Allowed: true, Method: MethodSession, Identity: sess.Scope}, true
		}
		if principal, ok := a.verifyToken(creds.Token); ok {
			sess, err := a.sessions.Issue(string(KindControlUI))
			if err != nil {
				a.logger.Error("session issuance failed", "error", err)
				return Verdict{}, false
			}
			return Verdict{Allowed: true, Method: MethodToken, Identity: principal, Session: sess}, true
		}
		return Verdict{}, false

	case KindAPI:
		if principal, ok := a.verifyToken(creds.Token); ok {
			return Verdict{Allowed: true, Method: MethodToken, Identity: principal}, true
		}
		return Verdict{}, false

	case KindDevice:
		// A bearer token may skip the paired-identity check under either
		// posture: tokens are narrow-scoped and revocable. The shared
		// secret may only skip it in the explicitly relaxed posture,
		// since every holder of the one secret looks alike.
		if principal, ok := a.verifyToken(creds.Token); ok {
			return Verdict{Allowed: true, Method: MethodToken, Identity: principal}, true
		}
		if posture.AllowInsecureControlUI && creds.SharedAuth {
			return Verdict{Allowed: true, Method: MethodShared}, true
		}
		if name, ok := a.verifyDevice(ctx, creds.DeviceProof); ok {
			return Verdict{Allowed: true, Method: MethodDevice, Identity: name}, true
		}
		return Verdict{}, false

	default:
		return Verdict{}, false
	}
}

// verifyToken checks a bearer token, tolerating absence.
func (a *Authorizer) verifyToken(token string) (string, bool) {
	if token == "" || a.tokens == nil {
		return "", false
	}
	principal, err := a.tokens.Verify(token)
	if err != nil {
		return "", false
	}
	return principal, true
}

// verifyDevice checks a device identity proof against the trust store.
func (a *Authorizer) verifyDevice(ctx context.Context, proof string) (string, bool) {
	if proof == "" || a.devices == nil {
		return "", false
	}
	device, err := a.devices.GetDeviceByFingerprint(ctx, proof)
	if err != nil || device.Revoked() {
		return "", false
	}
	return device.Name, true
}
