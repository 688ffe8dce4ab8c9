// ABOUTME: HTTP middleware gating requests through the connection authorizer
// ABOUTME: Maps verdicts to status codes and sets the session cookie on login

package authz

import (
	"net/http"

	"github.com/2389/zero-gateway/internal/session"
)

// Middleware creates an HTTP middleware that authorizes every request as
// the given connection kind. Denials are reported as an opaque JSON error
// with the coarse reason code and nothing else. A successful control-ui
// bearer login sets the freshly minted session cookie on the response.
func Middleware(authorizer *Authorizer, posture Posture, kind ConnectionKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := CredentialsFromRequest(r, kind)
			verdict := authorizer.Authorize(r.Context(), creds, posture)
			if !verdict.Allowed {
				writeDenial(w, verdict.Reason)
				return
			}

			if verdict.Session != nil {
				http.SetCookie(w, session.Cookie(verdict.Session, TLSConfirmed(r)))
			}

			id := &Identity{
				Principal: verdict.Identity,
				Kind:      kind,
				Method:    verdict.Method,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// writeDenial sends the opaque denial response for a reason code.
func writeDenial(w http.ResponseWriter, reason DenyReason) {
	status := http.StatusUnauthorized
	switch reason {
	case DenySystemLocked:
		status = http.StatusServiceUnavailable
	case DenyRateLimited:
		status = http.StatusTooManyRequests
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + string(reason) + `"}`))
}
