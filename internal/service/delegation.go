package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/domain"
	"github.com/Strob0t/agentmesh/internal/domain/agent"
	"github.com/Strob0t/agentmesh/internal/domain/task"
)

// TaskSender creates a task on a remote agent.
type TaskSender interface {
	SendMessage(ctx context.Context, baseURL, text string) (*task.Result, error)
}

// DelegationService hands work to remote agents.
type DelegationService struct {
	registry *RegistryService
	sender   TaskSender
	metrics  *otel.Metrics
}

// NewDelegationService creates a DelegationService.
func NewDelegationService(registry *RegistryService, sender TaskSender) *DelegationService {
	return &DelegationService{registry: registry, sender: sender}
}

// SetMetrics attaches metric instruments.
func (s *DelegationService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// Registry returns the registry delegations resolve against.
func (s *DelegationService) Registry() *RegistryService {
	return s.registry
}

// Delegate resolves the agent at url and creates a task carrying message.
//
// An invalid url and transport failures while resolving the card or
// creating the task are returned as *domain.DelegationError. Once the remote replied, Delegate
// returns a result even if the reply could not be parsed; inspect
// Result.Outcome to tell remote failures from local parse failures.
func (s *DelegationService) Delegate(ctx context.Context, url, message string) (res *task.Result, err error) {
	u, err := agent.NormalizeURL(url)
	if err != nil {
		var cause error
		if err != domain.ErrInvalidURL { //nolint:errorlint // only a detailed error adds a cause
			cause = err
		}
		return nil, domain.NewDelegationError("delegate", url, domain.ErrInvalidURL, cause)
	}

	ctx, span := otel.StartDelegationSpan(ctx, u)
	defer func() {
		s.metrics.Delegated(ctx, u, err)
		otel.EndSpan(span, err)
	}()

	d, err := s.registry.Resolve(ctx, u)
	if err != nil {
		return nil, err
	}

	res, err = s.sender.SendMessage(ctx, u, message)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task delegated",
		"agent", d.Name,
		"url", u,
		"task_id", res.TaskID(),
		"status", res.Status,
		"outcome", res.Outcome,
	)
	return res, nil
}
