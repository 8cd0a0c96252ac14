package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/middleware"
	"github.com/Strob0t/agentmesh/internal/port/a2a"
)

// HealthCheck reports the state of one dependency: "ok" or a short reason.
type HealthCheck func() string

// AgentRoutes is everything one agent service exposes over HTTP.
type AgentRoutes struct {
	Name   string
	A2A    *a2a.Handler
	Events http.HandlerFunc       // WebSocket event feed, optional
	MCP    http.Handler           // MCP endpoint, optional
	Checks map[string]HealthCheck // extra /health entries, optional
}

// NewAgentRouter builds the router of one agent service.
func NewAgentRouter(rt AgentRoutes) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Agent(rt.Name))
	r.Use(Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(otel.HTTPMiddleware(rt.Name))
	r.NotFound(NotFound)

	r.Get("/health", healthHandler(rt.Name, rt.Checks))
	if rt.Events != nil {
		r.Get("/ws", rt.Events)
	}
	if rt.MCP != nil {
		r.Handle("/mcp", rt.MCP)
	}
	if rt.A2A != nil {
		rt.A2A.MountRoutes(r)
	}
	return r
}

type healthStatus struct {
	Status string            `json:"status"`
	Agent  string            `json:"agent"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler answers 200 while the service runs. A failing dependency
// marks the service degraded but never unhealthy: agents keep serving
// without their optional sinks.
func healthHandler(name string, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := healthStatus{Status: "ok", Agent: name}
		if len(checks) > 0 {
			st.Checks = make(map[string]string, len(checks))
			for k, check := range checks {
				v := check()
				st.Checks[k] = v
				if v != "ok" {
					st.Status = "degraded"
				}
			}
		}
		writeJSON(w, r, http.StatusOK, st)
	}
}

// NotFound answers unknown routes with a JSON error.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "not found")
}
