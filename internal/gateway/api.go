// ABOUTME: HTTP API and control-UI routes for the gateway
// ABOUTME: Every route except liveness sits behind the connection authorizer

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/2389/zero-gateway/internal/authz"
)

// buildMux assembles the HTTP routes. The liveness probe is the only
// unauthenticated surface; the API and the control UI each go through the
// authorizer with their own connection kind.
func (g *Gateway) buildMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", g.handleHealth)

	api := authz.Middleware(g.authorizer, g.posture, authz.KindAPI)
	mux.Handle("/api/state", api(http.HandlerFunc(g.handleState)))
	mux.Handle("/api/devices", api(http.HandlerFunc(g.handleDevices)))
	mux.Handle("/api/panic", api(http.HandlerFunc(g.handlePanic)))

	ui := authz.Middleware(g.authorizer, g.posture, authz.KindControlUI)
	mux.Handle("/", ui(http.HandlerFunc(g.handleHome)))

	return mux
}

// handleHealth returns 200 OK if the server is alive. Deliberately outside
// the authorizer: liveness must stay observable during lockdown.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type stateResponse struct {
	PanicActive  bool   `json:"panic_active"`
	ActivatedAt  string `json:"activated_at,omitempty"`
	LiveSessions int    `json:"live_sessions"`
}

// handleState reports the gateway's access-control state. The panic reason
// is not exposed here: callers get the fact of the lockdown, operators get
// the detail from the CLI.
func (g *Gateway) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := g.panicSw.Current()
	resp := stateResponse{
		PanicActive:  state.Active,
		LiveSessions: g.sessions.Len(),
	}
	if state.Active {
		resp.ActivatedAt = state.ActivatedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

type deviceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PairedAt string `json:"paired_at"`
	Revoked  bool   `json:"revoked"`
}

// handleDevices lists paired devices. Fingerprints are credentials and are
// never returned over the API.
func (g *Gateway) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := g.store.ListDevices(r.Context())
	if err != nil {
		g.logger.Error("listing devices", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, deviceResponse{
			ID:       d.ID,
			Name:     d.Name,
			PairedAt: d.PairedAt.Format(time.RFC3339),
			Revoked:  d.Revoked(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type panicRequest struct {
	Reason string `json:"reason"`
}

// handlePanic activates emergency lockdown. There is deliberately no HTTP
// reset: once active, the authorizer refuses this route along with every
// other, and recovery goes through the operator CLI with the reset key.
func (g *Gateway) handlePanic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req panicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id := authz.FromContext(r.Context())
	principal := ""
	if id != nil {
		principal = id.Principal
	}
	g.logger.Error("panic activation requested over API",
		"principal", principal,
		"reason", req.Reason)

	if err := g.panicSw.Activate(req.Reason); err != nil {
		// The in-memory lockdown holds even when persistence fails; the
		// caller still needs to know durability is compromised.
		g.logger.Error("panic activation persistence failed", "error", err)
		http.Error(w, "lockdown active but not persisted", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

type identityResponse struct {
	Principal string `json:"principal"`
	Method    string `json:"method"`
}

// handleHome answers the control UI with the caller's authorized identity.
func (g *Gateway) handleHome(w http.ResponseWriter, r *http.Request) {
	id := authz.FromContext(r.Context())
	if id == nil {
		// Unreachable behind the middleware, but do not answer as if
		// authorized.
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		Principal: id.Principal,
		Method:    string(id.Method),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
