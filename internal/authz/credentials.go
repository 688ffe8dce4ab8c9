// ABOUTME: Credential extraction from HTTP requests and connection handshakes
// ABOUTME: Bearer header/query param, session cookie, and TLS confirmation

package authz

import (
	"net"
	"net/http"
	"strings"

	"github.com/2389/zero-gateway/internal/session"
)

// HandshakePayload is the auth portion of a WebSocket/device connection
// handshake.
type HandshakePayload struct {
	Token          string `json:"token,omitempty"`
	SharedAuth     bool   `json:"sharedAuth,omitempty"`
	DeviceIdentity string `json:"deviceIdentity,omitempty"`
}

// CredentialsFromRequest extracts the credential bundle from an HTTP
// request. The bearer token may arrive in the Authorization header or the
// token query parameter; browser requests additionally carry the session
// cookie.
func CredentialsFromRequest(r *http.Request, kind ConnectionKind) Credentials {
	creds := Credentials{
		SourceAddr: remoteHost(r.RemoteAddr),
		Kind:       kind,
	}

	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		creds.Token = token
	} else if token := r.URL.Query().Get("token"); token != "" {
		creds.Token = token
	}

	if cookie, err := r.Cookie(session.CookieName); err == nil {
		creds.SessionToken = cookie.Value
	}

	return creds
}

// CredentialsFromHandshake extracts the credential bundle from a device
// connection handshake payload.
func CredentialsFromHandshake(payload HandshakePayload, remoteAddr string) Credentials {
	return Credentials{
		Token:       payload.Token,
		SharedAuth:  payload.SharedAuth,
		DeviceProof: payload.DeviceIdentity,
		SourceAddr:  remoteHost(remoteAddr),
		Kind:        KindDevice,
	}
}

// TLSConfirmed reports whether the request is known to be carried over
// TLS, either directly or via a trusted reverse proxy's forwarded-proto
// header. The Secure cookie attribute is set only when this holds.
func TLSConfirmed(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// bearerToken extracts a bearer token from an Authorization header value.
// Returns "" when the header is missing or not a bearer scheme.
func bearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// remoteHost strips the port from a remote address, falling back to the
// raw value when it does not parse as host:port.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
