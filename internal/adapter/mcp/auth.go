package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// headerAPIKey is accepted next to Authorization for MCP clients that cannot
// set bearer tokens.
const headerAPIKey = "X-API-Key"

// AuthMiddleware guards an agent's MCP endpoint with a shared key, sent as
// a Bearer token, a bare Authorization value or an X-API-Key header. An
// empty apiKey disables the check.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(headerAPIKey)
		if got == "" {
			got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if got == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			http.Error(w, "invalid api key", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
