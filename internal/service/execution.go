package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/domain"
	"github.com/Strob0t/agentmesh/internal/domain/task"
	"github.com/Strob0t/agentmesh/internal/logger"
	"github.com/Strob0t/agentmesh/internal/port/a2a"
	"github.com/Strob0t/agentmesh/internal/port/broadcast"
	"github.com/Strob0t/agentmesh/internal/port/reasoning"
	"github.com/Strob0t/agentmesh/internal/resilience"
)

// ExecutionService drives inbound tasks for one agent through
// submitted -> working -> completed|failed, publishing one event per step.
type ExecutionService struct {
	agentName     string
	statusMessage string
	artifactName  string
	capability    reasoning.Capability
	pool          *resilience.Pool
	hub           broadcast.Broadcaster
	metrics       *otel.Metrics
}

var _ a2a.Executor = (*ExecutionService)(nil)

// NewExecutionService creates the engine for agent a. pool bounds how many
// reasoning calls run at once; nil means unbounded.
func NewExecutionService(a *config.Agent, capability reasoning.Capability, pool *resilience.Pool) *ExecutionService {
	artifact := a.ArtifactName
	if artifact == "" {
		artifact = "response"
	}
	return &ExecutionService{
		agentName:     a.Name,
		statusMessage: a.StatusMessage,
		artifactName:  artifact,
		capability:    capability,
		pool:          pool,
	}
}

// SetBroadcaster attaches live observers of task events.
func (s *ExecutionService) SetBroadcaster(b broadcast.Broadcaster) {
	s.hub = b
}

// SetMetrics attaches metric instruments.
func (s *ExecutionService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// Execute runs one task to a terminal state. Every failure, including a
// panic in the capability, ends the task as failed; nothing escapes.
func (s *ExecutionService) Execute(ctx context.Context, rc a2a.RequestContext, pub a2a.Publisher) {
	rec := task.NewRecord(rc.TaskID, rc.ContextID)
	ctx = logger.WithTaskID(logger.WithAgent(ctx, s.agentName), rec.ID)
	ctx, span := otel.StartTaskSpan(ctx, s.agentName, rec.ID, rec.ContextID)
	out := &eventFanout{agent: s.agentName, pub: pub, hub: s.hub}
	start := time.Now()

	s.metrics.TaskStarted(ctx, s.agentName)
	out.publish(ctx, rec.AnnounceEvent())

	if err := rec.Start(s.statusMessage); err != nil {
		slog.ErrorContext(ctx, "task start rejected", "error", err)
	}
	out.publish(ctx, rec.StatusEvent())

	text, err := s.run(ctx, rc.UserInput())
	if err != nil {
		slog.WarnContext(ctx, "task failed", "error", err)
		if ferr := rec.Fail("Error: " + err.Error()); ferr != nil {
			slog.ErrorContext(ctx, "task fail rejected", "error", ferr)
		}
	} else {
		artifact := task.Artifact{Name: s.artifactName, Parts: []task.Part{task.TextPart(text)}}
		if cerr := rec.Complete(artifact, ""); cerr != nil {
			slog.ErrorContext(ctx, "task complete rejected", "error", cerr)
		}
		slog.InfoContext(ctx, "task completed", "duration", time.Since(start))
	}
	out.publish(ctx, rec.StatusEvent())

	s.metrics.TaskFinished(ctx, s.agentName, rec.State == task.StateFailed, time.Since(start))
	otel.EndSpan(span, err)
}

// Cancel is accepted and ignored: an in-flight reasoning call cannot be
// interrupted. The JSON-RPC layer reports tasks as not cancelable.
func (s *ExecutionService) Cancel(ctx context.Context, taskID string) error {
	slog.InfoContext(ctx, "task cancel requested but not supported", "agent", s.agentName, "task_id", taskID)
	return nil
}

func (s *ExecutionService) run(ctx context.Context, input string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "reasoning capability panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic: %v", domain.ErrCapability, r)
		}
	}()

	release, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire execution slot: %w", err)
	}
	defer release()

	out, err = s.capability.Run(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCapability, err)
	}
	return out, nil
}
