package service_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/agentmesh/internal/adapter/a2aclient"
	cfhttp "github.com/Strob0t/agentmesh/internal/adapter/http"
	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/domain"
	"github.com/Strob0t/agentmesh/internal/domain/agent"
	"github.com/Strob0t/agentmesh/internal/domain/task"
	"github.com/Strob0t/agentmesh/internal/port/a2a"
	"github.com/Strob0t/agentmesh/internal/port/reasoning"
	"github.com/Strob0t/agentmesh/internal/service"
)

func e2eConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Delegation.Timeout = 5 * time.Second
	cfg.Delegation.ConnectTimeout = time.Second
	return &cfg
}

// startAgent runs one agent with the given capability on a free port and
// returns its base URL.
func startAgent(t *testing.T, sup *service.Supervisor, name string, capability reasoning.Capability) string {
	t.Helper()
	a := &config.Agent{Name: name, StatusMessage: "Working on it", ArtifactName: "response", Version: "1.0.0"}
	h := sup.Start(name, func(port int) (http.Handler, error) {
		d := agent.Descriptor{
			URL:     "http://127.0.0.1:" + strconv.Itoa(port),
			Name:    name,
			Version: a.Version,
		}
		exec := service.NewExecutionService(a, capability, nil)
		return cfhttp.NewAgentRouter(cfhttp.AgentRoutes{
			Name: name,
			A2A:  a2a.NewHandler(a2a.BuildAgentCard(&d), exec),
		}), nil
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.WaitReady(ctx); err != nil {
		t.Fatalf("start %s: %v", name, err)
	}
	return "http://" + h.Addr()
}

func newDelegation(cfg *config.Config) *service.DelegationService {
	client := a2aclient.NewClient(cfg.Delegation, cfg.Breaker)
	reg := service.NewRegistryService(client, cfg.Delegation.ListParallel)
	return service.NewDelegationService(reg, client)
}

func TestEndToEndEchoDelegation(t *testing.T) {
	cfg := e2eConfig()
	sup := service.NewSupervisor(cfg.Server)
	url := startAgent(t, sup, "Echo Agent", reasoning.Echo{})

	d := newDelegation(cfg)
	if _, err := d.Registry().Register(url); err != nil {
		t.Fatal(err)
	}

	agents := d.Registry().List(context.Background())
	if agents[url].Name != "Echo Agent" {
		t.Fatalf("echo agent not discovered: %+v", agents)
	}

	res, err := d.Delegate(context.Background(), url, "ping")
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if res.Status != "completed" {
		t.Fatalf("status = %q", res.Status)
	}
	if len(res.Artifacts) == 0 || len(res.Artifacts[0].Parts) == 0 || *res.Artifacts[0].Parts[0].Text != "ping" {
		t.Fatalf("unexpected artifacts: %+v", res.Artifacts)
	}
	if res.TaskID() == "" || res.Outcome != task.OutcomeReported {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEndToEndUnreachableAgent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	url := "http://" + ln.Addr().String()
	_ = ln.Close()

	d := newDelegation(e2eConfig())
	if _, err := d.Registry().Register(url); err != nil {
		t.Fatal(err)
	}

	if got := d.Registry().List(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty listing, got %+v", got)
	}
	_, err = d.Delegate(context.Background(), url, "ping")
	if !errors.Is(err, domain.ErrUnreachableAgent) {
		t.Fatalf("expected ErrUnreachableAgent, got %v", err)
	}
}

func TestEndToEndCapabilityFailure(t *testing.T) {
	cfg := e2eConfig()
	sup := service.NewSupervisor(cfg.Server)
	url := startAgent(t, sup, "Broken Agent", reasoning.CapabilityFunc(func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	}))

	d := newDelegation(cfg)
	res, err := d.Delegate(context.Background(), url, "ping")
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if res.Status != "failed" || res.Outcome != task.OutcomeRemoteFailed {
		t.Fatalf("expected remote failure, got %+v", res)
	}
	if !strings.Contains(res.Message, "boom") {
		t.Fatalf("status message %q does not mention boom", res.Message)
	}
	if err := res.Err(url); !errors.Is(err, domain.ErrDelegationFailure) {
		t.Fatalf("expected ErrDelegationFailure, got %v", err)
	}
}

func TestEndToEndOrchestratorTools(t *testing.T) {
	cfg := e2eConfig()
	sup := service.NewSupervisor(cfg.Server)
	echoURL := startAgent(t, sup, "Echo Agent", reasoning.Echo{})

	d := newDelegation(cfg)
	_, _ = d.Registry().Register(echoURL)
	tools := service.DelegationTools(d)

	// The orchestrator's capability calls create_task on the echo agent.
	orchestrator := reasoning.CapabilityFunc(func(ctx context.Context, query string) (string, error) {
		create, _ := tools.Lookup(service.ToolCreateTask)
		return create.Call(ctx, map[string]string{"agent_url": echoURL, "message": query})
	})
	orchURL := startAgent(t, sup, "Orchestration Agent", orchestrator)

	res, err := d.Delegate(context.Background(), orchURL, "relay me")
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if res.Status != "completed" || !strings.Contains(res.Text(), `"relay me"`) {
		t.Fatalf("unexpected relayed result: %+v (%s)", res, res.Text())
	}
	alive := 0
	for _, h := range sup.Handles() {
		if h.IsAlive() {
			alive++
		}
	}
	if alive != 2 {
		t.Fatalf("expected 2 live services, got %d", alive)
	}
}
