// ABOUTME: Tests for the gateway HTTP surface behind the authorizer
// ABOUTME: Covers liveness during lockdown, API gating, and panic activation

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/zero-gateway/internal/authz"
	"github.com/2389/zero-gateway/internal/config"
	"github.com/2389/zero-gateway/internal/session"
	"github.com/2389/zero-gateway/internal/store"
)

const testJWTSecret = "gateway-test-signing-secret"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			GRPCAddr: "127.0.0.1:0",
			HTTPAddr: "127.0.0.1:0",
		},
		Database: config.DatabaseConfig{
			Path: filepath.Join(t.TempDir(), "gateway.db"),
		},
		Auth: config.AuthConfig{JWTSecret: testJWTSecret},
		Lockout: config.LockoutConfig{
			Threshold: 3,
			Window:    time.Minute,
			BaseDelay: time.Millisecond,
			MaxDelay:  2 * time.Millisecond,
		},
	}
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := New(testConfig(t), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.store.Close() })
	return gw
}

func bearerToken(t *testing.T, principal string) string {
	t.Helper()
	token, err := authz.NewJWTVerifier([]byte(testJWTSecret)).Generate(principal, time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(gw *Gateway, method, path, token, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.RemoteAddr = "192.0.2.77:4000"
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(w, r)
	return w
}

func TestHealth_OpenWithoutAuth(t *testing.T) {
	gw := newTestGateway(t)

	w := doRequest(gw, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHealth_ObservableDuringLockdown(t *testing.T) {
	gw := newTestGateway(t)
	require.NoError(t, gw.panicSw.Activate("drill"))

	w := doRequest(gw, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIState_RequiresToken(t *testing.T) {
	gw := newTestGateway(t)

	w := doRequest(gw, "GET", "/api/state", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(gw, "GET", "/api/state", bearerToken(t, "admin"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.PanicActive)
	assert.Zero(t, resp.LiveSessions)
}

func TestAPIDevices_ListsWithoutFingerprints(t *testing.T) {
	gw := newTestGateway(t)
	require.NoError(t, gw.store.PairDevice(context.Background(), &store.Device{
		ID:          "dev-1",
		Name:        "workstation",
		Fingerprint: "fp-secret",
		PairedAt:    time.Now().UTC(),
	}))

	w := doRequest(gw, "GET", "/api/devices", bearerToken(t, "admin"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var devices []deviceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "workstation", devices[0].Name)
	assert.False(t, devices[0].Revoked)
	assert.NotContains(t, w.Body.String(), "fp-secret")
}

func TestAPIPanic_LocksTheGateway(t *testing.T) {
	gw := newTestGateway(t)
	token := bearerToken(t, "admin")

	w := doRequest(gw, "POST", "/api/panic", token, `{"reason":"credential leak"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gw.panicSw.IsActive())

	// The same valid token is now refused everywhere, the panic route
	// included.
	w = doRequest(gw, "GET", "/api/state", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"system-locked"}`, w.Body.String())

	w = doRequest(gw, "POST", "/api/panic", token, `{"reason":"again"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestControlUI_BearerLoginSetsCookieAndReportsIdentity(t *testing.T) {
	gw := newTestGateway(t)

	w := doRequest(gw, "GET", "/", bearerToken(t, "admin"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp identityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp.Principal)
	assert.Equal(t, string(authz.MethodToken), resp.Method)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)

	// The cookie alone authenticates the next request.
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.77:4001"
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookies[0].Value})
	w2 := httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(w2, r)
	require.Equal(t, http.StatusOK, w2.Code)

	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, string(authz.MethodSession), resp.Method)
}

func TestAPI_RepeatedFailuresLockTheClientOut(t *testing.T) {
	gw := newTestGateway(t)

	for i := 0; i < 3; i++ {
		w := doRequest(gw, "GET", "/api/state", "wrong-token", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := doRequest(gw, "GET", "/api/state", bearerToken(t, "admin"), "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate-limited"}`, w.Body.String())
}
