package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type ctxKey int

const userIDKey ctxKey = 0

// WithUser returns a context carrying the authenticated user ID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the authenticated user ID from a request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RequireUser guards an API route behind provider-token verification.
//
// When devInsecure is true and no verifier is configured, the X-User-ID
// header is trusted instead. That mode exists for local work only and must
// never be enabled where the process is reachable from untrusted clients.
func RequireUser(log *slog.Logger, verifier *Verifier, devInsecure bool, next http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil {
			if !devInsecure {
				writeAuthError(w, http.StatusServiceUnavailable, "auth_unconfigured", "identity verification not configured")
				return
			}
			uid := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if uid == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "missing X-User-ID (dev mode)")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		uid, err := verifier.VerifyToken(token)
		if err != nil {
			log.Info("auth.token.reject", "err", err, "remote", r.RemoteAddr)
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
