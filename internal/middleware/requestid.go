// Package middleware provides HTTP middleware for agentmesh.
package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/agentmesh/internal/logger"
)

// HeaderRequestID carries the request id across agent hops.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID is HTTP middleware that extracts X-Request-ID from the request
// header or generates a new one. The ID is stored in the context and set
// on the response header. Oversized or multi-line ids are replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
			id = generateID()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Agent tags every request context with the serving agent's name.
func Agent(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithAgent(r.Context(), name)))
		})
	}
}

// PropagateRequestID is an http.RoundTripper that forwards the request id
// stored in the outbound request's context.
type PropagateRequestID struct {
	Next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (p PropagateRequestID) RoundTrip(req *http.Request) (*http.Response, error) {
	next := p.Next
	if next == nil {
		next = http.DefaultTransport
	}
	id := logger.RequestID(req.Context())
	if id == "" || req.Header.Get(HeaderRequestID) != "" {
		return next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set(HeaderRequestID, id)
	return next.RoundTrip(req)
}

// generateID returns a random UUID without dashes (32 hex chars).
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
