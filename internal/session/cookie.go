// ABOUTME: Session cookie construction with the gateway's fixed attribute policy
// ABOUTME: Path=/, HttpOnly, SameSite=Strict, Secure only when TLS is confirmed

package session

import (
	"net/http"
	"time"
)

// CookieName is the well-known session cookie key for this deployment.
const CookieName = "zero_auth"

// Cookie builds the session cookie for an issued session. HttpOnly and
// SameSite=Strict are fixed policy, not configuration: weakening either is
// a security regression. Secure is set only when the caller has confirmed
// the connection is over TLS (directly or via a trusted proxy signal),
// since a Secure cookie on a plain-HTTP deployment would never be sent back.
func Cookie(sess *Session, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(time.Until(sess.ExpiresAt) / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie builds an expired cookie that removes the session cookie on
// the client, used by logout.
func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
