package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/logger"
	"github.com/Strob0t/agentmesh/internal/port/broadcast"
	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

// HandlerFactory builds an agent's HTTP handler once its listener is bound.
// port is the port actually bound, which differs from the requested one
// when that was 0.
type HandlerFactory func(port int) (http.Handler, error)

// Agent liveness labels published on agents.status.
const (
	ServiceAlive   = "alive"
	ServiceStopped = "stopped"
)

// ServiceHandle tracks one running agent service. There is no stop method:
// services end with the process.
type ServiceHandle struct {
	name  string
	port  int
	ready chan struct{}
	done  chan struct{}
	alive atomic.Bool

	mu   sync.Mutex
	addr string
	err  error
}

// Name returns the agent name.
func (h *ServiceHandle) Name() string { return h.name }

// IsAlive reports whether the service is accepting connections.
func (h *ServiceHandle) IsAlive() bool { return h.alive.Load() }

// Ready is closed once the listener is bound and serving.
func (h *ServiceHandle) Ready() <-chan struct{} { return h.ready }

// Done is closed when the service goroutine has exited.
func (h *ServiceHandle) Done() <-chan struct{} { return h.done }

// Addr returns the bound address, or "" before Ready.
func (h *ServiceHandle) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Err returns the error that ended the service, if any.
func (h *ServiceHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// WaitReady blocks until the service is serving, has failed, or ctx ends.
func (h *ServiceHandle) WaitReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-h.done:
		if err := h.Err(); err != nil {
			return err
		}
		return fmt.Errorf("agent %q exited before becoming ready", h.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *ServiceHandle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// Supervisor starts agent services, one goroutine each, and keeps their
// handles. A failing service is logged and never takes its siblings down.
type Supervisor struct {
	host              string
	readHeaderTimeout time.Duration
	idleTimeout       time.Duration
	hub               broadcast.Broadcaster

	mu      sync.Mutex
	handles []*ServiceHandle
}

// NewSupervisor creates a Supervisor binding services on srv.Host.
func NewSupervisor(srv config.Server) *Supervisor {
	return &Supervisor{
		host:              srv.Host,
		readHeaderTimeout: srv.ReadHeaderTimeout,
		idleTimeout:       srv.IdleTimeout,
	}
}

// SetBroadcaster attaches observers of service liveness changes.
func (s *Supervisor) SetBroadcaster(b broadcast.Broadcaster) {
	s.hub = b
}

// Start launches the agent service on its own goroutine and returns at once.
func (s *Supervisor) Start(name string, factory HandlerFactory, port int) *ServiceHandle {
	h := &ServiceHandle{
		name:  name,
		port:  port,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	go s.serve(h, factory)
	return h
}

// Handles returns every service started so far, in start order.
func (s *Supervisor) Handles() []*ServiceHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ServiceHandle(nil), s.handles...)
}

func (s *Supervisor) serve(h *ServiceHandle, factory HandlerFactory) {
	ctx := logger.WithAgent(context.Background(), h.name)
	log := slog.With("agent", h.name)

	var ln net.Listener
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			if ln != nil {
				_ = ln.Close()
			}
			h.alive.Store(false)
			h.setErr(fmt.Errorf("agent %q panicked: %v", h.name, r))
			log.Error("agent service panicked", "panic", r, "stack", string(debug.Stack()))
			s.publishStatus(ctx, h, ServiceStopped, h.Err())
		}
	}()

	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(h.port)))
	if err != nil {
		h.setErr(fmt.Errorf("listen: %w", err))
		log.Error("agent service failed to start", "port", h.port, "error", err)
		s.publishStatus(ctx, h, ServiceStopped, h.Err())
		return
	}

	bound := ln.Addr().(*net.TCPAddr).Port
	handler, err := factory(bound)
	if err != nil {
		_ = ln.Close()
		h.setErr(fmt.Errorf("build handler: %w", err))
		log.Error("agent service failed to start", "port", bound, "error", err)
		s.publishStatus(ctx, h, ServiceStopped, h.Err())
		return
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
		IdleTimeout:       s.idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	h.mu.Lock()
	h.addr = ln.Addr().String()
	h.mu.Unlock()
	h.alive.Store(true)
	close(h.ready)
	log.Info("agent service started", "addr", h.Addr())
	s.publishStatus(ctx, h, ServiceAlive, nil)

	err = srv.Serve(ln)
	h.alive.Store(false)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.setErr(err)
		log.Error("agent service stopped", "error", err)
	}
	s.publishStatus(ctx, h, ServiceStopped, h.Err())
}

func (s *Supervisor) publishStatus(ctx context.Context, h *ServiceHandle, status string, err error) {
	if s.hub == nil {
		return
	}
	p := messagequeue.AgentStatusPayload{
		Agent:  h.name,
		URL:    "http://" + h.Addr(),
		Status: status,
	}
	if err != nil {
		p.Error = err.Error()
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventAgentStatus, p)
}
