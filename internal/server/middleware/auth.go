// Package middleware provides HTTP middleware for authorization.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jonathan/job-intel/internal/logging"
)

// APIKeyHeader carries the shared secret as an alternative to a bearer token.
const APIKeyHeader = "X-API-Key"

// SharedSecret admits requests presenting secret either as
// "Authorization: Bearer <secret>" (prefix matched case-insensitively) or
// in the X-API-Key header. An empty secret disables the check. OPTIONS
// requests always pass so preflights succeed.
func SharedSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || Authorized(r, secret) {
				next.ServeHTTP(w, r)
				return
			}
			logging.C(r.Context()).Warn().Str("path", r.URL.Path).Msg("rejected unauthorized request")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
		})
	}
}

// Authorized reports whether r presents secret.
func Authorized(r *http.Request, secret string) bool {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok && equal(token, secret) {
		return true
	}
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" && equal(key, secret) {
		return true
	}
	return false
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
