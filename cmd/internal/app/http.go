package app

import (
	"net/http"
	"time"

	"pinggo/cmd/internal/auth"
)

// handler assembles the full route tree and middleware chain.
//
// Layout:
//   - /healthz, /readyz, /metrics, /ws: unauthenticated surface
//   - /api/...: behind bearer-token auth
func (a *App) handler() http.Handler {
	root := http.NewServeMux()

	root.HandleFunc("GET /healthz", a.handleHealthz)
	root.HandleFunc("GET /readyz", a.handleReadyz)
	root.Handle("GET /metrics", a.metrics.Handler())

	// The gateway performs its own origin and token checks; the websocket
	// handshake cannot carry an Authorization header from browsers.
	root.HandleFunc("GET /ws", a.gateway.HandleWS)

	api := http.NewServeMux()
	a.chatAPI.Register(api)
	if a.socialAPI != nil {
		a.socialAPI.Register(api)
	}
	root.Handle("/api/", auth.RequireUser(a.log, a.verifier, a.cfg.AuthDevInsecure, api))

	var h http.Handler = root
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log, a.metrics)
	return h
}

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// handleReadyz reports readiness. With PINGGO_READINESS_REQUIRE_DB set, a
// missing or unreachable database makes the instance not ready.
func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB {
		if a.pool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
			a.log.Warn("readyz.db.fail", "err", err)
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
