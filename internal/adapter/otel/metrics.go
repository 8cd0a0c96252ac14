package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentmesh"

// Metrics holds all agentmesh metric instruments.
// A nil *Metrics records nothing.
type Metrics struct {
	TasksStarted     metric.Int64Counter
	TasksCompleted   metric.Int64Counter
	TasksFailed      metric.Int64Counter
	TaskDuration     metric.Float64Histogram
	Delegations      metric.Int64Counter
	DelegationErrors metric.Int64Counter
	ToolCalls        metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksStarted, err = meter.Int64Counter("agentmesh.tasks.started",
		metric.WithDescription("Number of inbound tasks started"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("agentmesh.tasks.completed",
		metric.WithDescription("Number of inbound tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("agentmesh.tasks.failed",
		metric.WithDescription("Number of inbound tasks failed"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("agentmesh.task.duration_seconds",
		metric.WithDescription("Task execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.Delegations, err = meter.Int64Counter("agentmesh.delegations",
		metric.WithDescription("Number of outbound delegations"))
	if err != nil {
		return nil, err
	}

	m.DelegationErrors, err = meter.Int64Counter("agentmesh.delegations.errors",
		metric.WithDescription("Number of outbound delegations that failed in transport"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("agentmesh.toolcalls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// TaskStarted counts a task entering execution.
func (m *Metrics) TaskStarted(ctx context.Context, agentName string) {
	if m == nil {
		return
	}
	m.TasksStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentName)))
}

// TaskFinished counts a terminal task and records its duration.
func (m *Metrics) TaskFinished(ctx context.Context, agentName string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agentName))
	if failed {
		m.TasksFailed.Add(ctx, 1, attrs)
	} else {
		m.TasksCompleted.Add(ctx, 1, attrs)
	}
	m.TaskDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// Delegated counts one outbound delegation.
func (m *Metrics) Delegated(ctx context.Context, agentURL string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent.url", agentURL))
	m.Delegations.Add(ctx, 1, attrs)
	if err != nil {
		m.DelegationErrors.Add(ctx, 1, attrs)
	}
}

// ToolCalled counts one tool call.
func (m *Metrics) ToolCalled(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}
