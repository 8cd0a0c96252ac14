package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"

	"github.com/Strob0t/agentmesh/internal/adapter/a2aclient"
	cfhttp "github.com/Strob0t/agentmesh/internal/adapter/http"
	"github.com/Strob0t/agentmesh/internal/adapter/litellm"
	cfmcp "github.com/Strob0t/agentmesh/internal/adapter/mcp"
	cfnats "github.com/Strob0t/agentmesh/internal/adapter/nats"
	"github.com/Strob0t/agentmesh/internal/adapter/natskv"
	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/adapter/records"
	"github.com/Strob0t/agentmesh/internal/adapter/ristretto"
	"github.com/Strob0t/agentmesh/internal/adapter/tiered"
	"github.com/Strob0t/agentmesh/internal/adapter/ws"
	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/domain/agent"
	"github.com/Strob0t/agentmesh/internal/port/a2a"
	"github.com/Strob0t/agentmesh/internal/port/broadcast"
	"github.com/Strob0t/agentmesh/internal/port/cache"
	"github.com/Strob0t/agentmesh/internal/port/reasoning"
	"github.com/Strob0t/agentmesh/internal/resilience"
	"github.com/Strob0t/agentmesh/internal/service"
)

// app holds the process-wide collaborators shared by every agent service.
type app struct {
	cfg        *config.Config
	shutdown   otel.ShutdownFunc
	metrics    *otel.Metrics
	hub        *ws.Hub
	queue      *cfnats.Queue // nil without NATS
	events     broadcast.Broadcaster
	l1         *ristretto.Cache
	records    *records.Client
	llm        *litellm.Client
	registry   *service.RegistryService
	delegation *service.DelegationService
	supervisor *service.Supervisor
	execPool   *resilience.Pool
}

// newApp wires the infrastructure. extra, when set, observes every event
// next to the WebSocket hub and NATS.
func newApp(ctx context.Context, cfg *config.Config, extra broadcast.Broadcaster) (*app, error) {
	a := &app{cfg: cfg}

	// --- Observability ---
	shutdown, err := otel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	a.shutdown = shutdown
	metrics, err := otel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	a.metrics = metrics

	// --- Events ---
	a.hub = ws.NewHub()
	sinks := broadcast.Multi{a.hub, extra}
	if cfg.NATS.URL != "" {
		q, err := cfnats.Connect(ctx, cfg.NATS)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.queue = q
		sinks = append(sinks, q)
	}
	a.events = sinks

	// --- Record store ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("record cache: %w", err)
	}
	a.l1 = l1
	var l2 cache.Cache
	if a.queue != nil {
		kv, err := natskv.Open(ctx, a.queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			slog.Warn("l2 record cache disabled", "error", err)
		} else {
			l2 = kv
		}
	}
	a.records = records.NewClient(cfg.Records, tiered.New(l1, l2, cfg.Cache.L1TTL), cfg.Cache.L2TTL)

	// --- Reasoning ---
	a.llm = litellm.NewClient(cfg.LLM)
	a.llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	a.llm.SetMetrics(metrics)
	a.execPool = resilience.NewPool(cfg.Execution.MaxConcurrent, cfg.Execution.SlotTimeout)

	// --- Delegation ---
	client := a2aclient.NewClient(cfg.Delegation, cfg.Breaker, a2aclient.WithTransportWrapper(otel.HTTPTransport))
	a.registry = service.NewRegistryService(client, cfg.Delegation.ListParallel)
	a.delegation = service.NewDelegationService(a.registry, client)
	a.delegation.SetMetrics(metrics)

	a.supervisor = service.NewSupervisor(cfg.Server)
	a.supervisor.SetBroadcaster(a.events)
	return a, nil
}

// advertisedHost is the host other agents use to reach ours.
func (a *app) advertisedHost() string {
	switch a.cfg.Server.Host {
	case "", "0.0.0.0", "::":
		return "localhost"
	}
	return a.cfg.Server.Host
}

func (a *app) agentURL(port int) string {
	return "http://" + net.JoinHostPort(a.advertisedHost(), strconv.Itoa(port))
}

// registerDirectory registers every local agent that does not itself
// delegate, plus the configured remotes.
func (a *app) registerDirectory() {
	for i := range a.cfg.Agents {
		ag := &a.cfg.Agents[i]
		if slices.Contains(ag.Tools, config.ToolsDelegation) {
			continue
		}
		if _, err := a.registry.Register(a.agentURL(ag.Port)); err != nil {
			slog.Warn("agent not registered", "agent", ag.Name, "error", err)
		}
	}
	for _, r := range a.cfg.Remotes {
		if _, err := a.registry.Register(r); err != nil {
			slog.Warn("remote not registered", "url", r, "error", err)
		}
	}
}

// startAgents launches one service per configured agent and waits until
// each is serving or has failed. A failed agent is logged; the rest run on.
func (a *app) startAgents(ctx context.Context) error {
	a.registerDirectory()

	handles := make([]*service.ServiceHandle, 0, len(a.cfg.Agents))
	for i := range a.cfg.Agents {
		ag := a.cfg.Agents[i]
		handles = append(handles, a.supervisor.Start(ag.Name, a.handlerFactory(&ag), ag.Port))
	}

	alive := 0
	for _, h := range handles {
		if err := h.WaitReady(ctx); err != nil {
			slog.Error("agent failed to start", "agent", h.Name(), "error", err)
			continue
		}
		alive++
	}
	if alive == 0 {
		return fmt.Errorf("no agent could be started")
	}
	return nil
}

// allStopped is closed once every started service has exited.
func (a *app) allStopped() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for _, h := range a.supervisor.Handles() {
			<-h.Done()
		}
		close(ch)
	}()
	return ch
}

func (a *app) handlerFactory(ag *config.Agent) service.HandlerFactory {
	return func(port int) (http.Handler, error) {
		toolset, err := a.toolset(ag)
		if err != nil {
			return nil, err
		}
		capability, err := a.capability(ag, toolset)
		if err != nil {
			return nil, err
		}

		d := descriptorFor(ag, a.agentURL(port))
		exec := service.NewExecutionService(ag, capability, a.execPool)
		exec.SetBroadcaster(a.events)
		exec.SetMetrics(a.metrics)

		routes := cfhttp.AgentRoutes{
			Name:   ag.Name,
			A2A:    a2a.NewHandler(a2a.BuildAgentCard(&d), exec),
			Events: a.hub.HandleWS,
			Checks: a.checks(ag),
		}
		if len(toolset) > 0 {
			mcpSrv := cfmcp.NewServer(
				cfmcp.ServerConfig{Name: ag.Name, Version: ag.Version},
				cfmcp.ServerDeps{Tools: toolset, Agents: a.registry},
			)
			routes.MCP = cfmcp.AuthMiddleware(a.cfg.Server.MCPAPIKey, mcpSrv.Handler())
		}
		return cfhttp.NewAgentRouter(routes), nil
	}
}

func (a *app) toolset(ag *config.Agent) (reasoning.Toolset, error) {
	var ts reasoning.Toolset
	for _, name := range ag.Tools {
		switch name {
		case config.ToolsDelegation:
			ts = append(ts, service.DelegationTools(a.delegation)...)
		case config.ToolsRecords:
			ts = append(ts, a.records.Tools()...)
		default:
			return nil, fmt.Errorf("agent %q: unknown tool set %q", ag.Name, name)
		}
	}
	return ts, nil
}

func (a *app) capability(ag *config.Agent, ts reasoning.Toolset) (reasoning.Capability, error) {
	switch ag.Capability {
	case config.CapabilityEcho:
		return reasoning.Echo{}, nil
	case config.CapabilityLLM, "":
		return litellm.NewAgent(a.llm, ag.SystemPrompt, ts), nil
	default:
		return nil, fmt.Errorf("agent %q: unknown capability %q", ag.Name, ag.Capability)
	}
}

func (a *app) checks(ag *config.Agent) map[string]cfhttp.HealthCheck {
	checks := map[string]cfhttp.HealthCheck{}
	if a.queue != nil {
		checks["nats"] = a.queue.Health
	}
	if slices.Contains(ag.Tools, config.ToolsDelegation) {
		checks["directory"] = func() string {
			if len(a.registry.URLs()) == 0 {
				return "no agents registered"
			}
			return "ok"
		}
	}
	return checks
}

func (a *app) close() {
	if a.queue != nil {
		if err := a.queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}
	if a.l1 != nil {
		a.l1.Close()
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}
}

// descriptorFor builds the card descriptor of a local agent served at url.
func descriptorFor(ag *config.Agent, url string) agent.Descriptor {
	skills := make([]agent.Skill, 0, len(ag.Skills))
	for _, s := range ag.Skills {
		skills = append(skills, agent.Skill(s))
	}
	return agent.Descriptor{
		URL:         url,
		Name:        ag.Name,
		Description: ag.Description,
		Version:     ag.Version,
		Streaming:   true,
		Skills:      skills,
	}
}
