package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth checks bearer tokens on stream and command requests
type TokenAuth struct {
	token string
}

// NewTokenAuth creates a token checker. An empty token disables checking.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// Enabled reports whether requests must carry a token
func (a *TokenAuth) Enabled() bool {
	return a.token != ""
}

// Verify compares a presented token against the configured one
func (a *TokenAuth) Verify(presented string) bool {
	if !a.Enabled() {
		return true
	}
	// Use constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(a.token), []byte(presented)) == 1
}

// Middleware rejects requests without a valid Authorization header
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Verify(bearerToken(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ssegate"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
