// Package auth delegates identity to the external provider: it verifies
// provider-issued bearer tokens and exposes the stable user ID they carry.
// Session issuing, registration, and credential handling all stay with the
// provider; nothing in this process ever sees a password.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier validates provider-issued HS256 JWTs with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier constructs a Verifier. issuer is optional; when set, the token's
// iss claim must match.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: empty secret")
	}
	return &Verifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}, nil
}

// VerifyToken checks the token signature and expiry and returns the stable
// user ID from the sub claim (user_id is accepted as a fallback claim name).
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	if v == nil {
		return "", errors.New("auth: nil verifier")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	if v.issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != v.issuer {
			return "", fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
		}
	}

	if sub, err := claims.GetSubject(); err == nil && strings.TrimSpace(sub) != "" {
		return strings.TrimSpace(sub), nil
	}
	if uid, ok := claims["user_id"].(string); ok && strings.TrimSpace(uid) != "" {
		return strings.TrimSpace(uid), nil
	}
	return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
}
