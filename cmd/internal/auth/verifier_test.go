package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-long-enough"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestVerifyToken(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(testSecret, "pinggo-idp")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	now := time.Now()

	cases := []struct {
		name    string
		token   string
		wantUID string
		wantErr bool
	}{
		{
			name:    "valid sub claim",
			token:   signToken(t, jwt.MapClaims{"sub": "u1", "iss": "pinggo-idp", "exp": now.Add(time.Hour).Unix()}),
			wantUID: "u1",
		},
		{
			name:    "user_id fallback claim",
			token:   signToken(t, jwt.MapClaims{"user_id": "u2", "iss": "pinggo-idp", "exp": now.Add(time.Hour).Unix()}),
			wantUID: "u2",
		},
		{
			name:    "expired",
			token:   signToken(t, jwt.MapClaims{"sub": "u1", "iss": "pinggo-idp", "exp": now.Add(-time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   signToken(t, jwt.MapClaims{"sub": "u1", "iss": "other", "exp": now.Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "missing subject",
			token:   signToken(t, jwt.MapClaims{"iss": "pinggo-idp", "exp": now.Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not-a-token",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			uid, err := v.VerifyToken(tc.token)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("VerifyToken()=nil error, want error")
				}
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("error not wrapped as ErrInvalidToken: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyToken(): %v", err)
			}
			if uid != tc.wantUID {
				t.Fatalf("VerifyToken()=%q want=%q", uid, tc.wantUID)
			}
		})
	}
}

func TestVerifyTokenRejectsWrongAlg(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	// alg=none must never pass.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := v.VerifyToken(s); err == nil {
		t.Fatalf("alg=none token accepted")
	}
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := NewVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	var gotUID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	h := RequireUser(log, v, false, next)

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"sub": "u9", "exp": time.Now().Add(time.Hour).Unix()})
		req := httptest.NewRequest(http.MethodGet, "/api/messages/u2", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Fatalf("status=%d want 204", rr.Code)
		}
		if gotUID != "u9" {
			t.Fatalf("context user=%q want u9", gotUID)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/messages/u2", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status=%d want 401", rr.Code)
		}
	})

	t.Run("dev insecure header", func(t *testing.T) {
		devH := RequireUser(log, nil, true, next)
		req := httptest.NewRequest(http.MethodGet, "/api/messages/u2", nil)
		req.Header.Set("X-User-ID", "dev-user")
		rr := httptest.NewRecorder()
		devH.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("status=%d want 204", rr.Code)
		}
		if gotUID != "dev-user" {
			t.Fatalf("context user=%q want dev-user", gotUID)
		}
	})

	t.Run("unconfigured verifier without dev mode", func(t *testing.T) {
		strictH := RequireUser(log, nil, false, next)
		req := httptest.NewRequest(http.MethodGet, "/api/messages/u2", nil)
		rr := httptest.NewRecorder()
		strictH.ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d want 503", rr.Code)
		}
	})
}
