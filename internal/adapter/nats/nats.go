// Package nats implements the message queue port using NATS JetStream.
// Task and agent events are published on the stream for subscribers
// outside the process; the same connection backs the L2 record cache.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/logger"
	"github.com/Strob0t/agentmesh/internal/port/broadcast"
	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

const (
	headerRequestID  = "X-Request-ID"
	headerRetryCount = "Retry-Count"
	maxRetries       = 3
	dlqPrefix        = "dlq."
	maxPendingAsync  = 256
)

var _ messagequeue.Queue = (*Queue)(nil)
var _ broadcast.Broadcaster = (*Queue)(nil)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// holding the task and agent subjects exists.
func Connect(ctx context.Context, cfg config.NATS) (*Queue, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("agentmesh"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(maxPendingAsync),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			slog.Warn("nats async publish failed", "subject", msg.Subject, "error", err)
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{"tasks.>", "agents.>", dlqPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", cfg.URL, "stream", cfg.Stream)
	return &Queue{nc: nc, js: js, stream: cfg.Stream}, nil
}

// JetStream exposes the JetStream context for adapters sharing the
// connection, such as the KV cache.
func (q *Queue) JetStream() jetstream.JetStream {
	return q.js
}

// Publish sends a message to the given subject and waits for the stream ack.
// The request id in ctx travels as a header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.PublishMsg(ctx, newMsg(ctx, subject, data)); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on subject, which may be a
// wildcard. Only messages published after the call are delivered.
//
// Messages that fail schema validation go straight to "dlq."+subject. A
// handler error republishes the message with an incremented Retry-Count
// header; after maxRetries attempts it is moved to the DLQ as well.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	hdrs := msg.Headers()
	ctx := context.Background()
	if id := hdrs.Get(headerRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}

	if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
		slog.WarnContext(ctx, "invalid message", "subject", msg.Subject(), "error", err)
		q.moveToDLQ(ctx, msg)
		return
	}

	if err := handler(ctx, msg.Subject(), msg.Data()); err != nil {
		n := retryCount(hdrs)
		slog.ErrorContext(ctx, "message handler failed", "subject", msg.Subject(), "retry", n, "error", err)
		if n >= maxRetries {
			q.moveToDLQ(ctx, msg)
			return
		}
		retry := newMsg(ctx, msg.Subject(), msg.Data())
		retry.Header.Set(headerRetryCount, strconv.Itoa(n+1))
		if _, pubErr := q.js.PublishMsg(ctx, retry); pubErr != nil {
			slog.ErrorContext(ctx, "nats retry publish failed", "error", pubErr)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
			}
			return
		}
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.ErrorContext(ctx, "nats ack failed", "error", ackErr)
	}
}

func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg) {
	dlq := newMsg(ctx, DLQSubject(msg.Subject()), msg.Data())
	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.ErrorContext(ctx, "nats dlq publish failed", "subject", dlq.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.ErrorContext(ctx, "nats ack failed", "error", err)
	}
}

// BroadcastEvent implements broadcast.Broadcaster. Events are published
// asynchronously on the subject matching their payload; failures are
// logged by the async error handler.
func (q *Queue) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	var subject string
	switch p := payload.(type) {
	case messagequeue.TaskEventPayload:
		subject = messagequeue.TaskEventSubject(p.Agent)
	case messagequeue.AgentStatusPayload:
		subject = messagequeue.AgentStatusSubject(p.Agent)
	default:
		slog.DebugContext(ctx, "event not published to nats", "type", eventType)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "marshal event", "type", eventType, "error", err)
		return
	}
	if _, err := q.js.PublishMsgAsync(newMsg(ctx, subject, data)); err != nil {
		slog.WarnContext(ctx, "nats event publish failed", "subject", subject, "error", err)
	}
}

// KeyValue creates or updates a KV bucket whose entries expire after ttl.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Health reports "ok" while connected.
func (q *Queue) Health() string {
	if q.IsConnected() {
		return "ok"
	}
	return "disconnected"
}

// IsConnected reports whether the connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// Drain waits for pending async publishes, then drains subscriptions and
// closes the connection.
func (q *Queue) Drain() error {
	select {
	case <-q.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		slog.Warn("nats async publishes still pending at drain", "pending", q.js.PublishAsyncPending())
	}
	return q.nc.Drain()
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// DLQSubject is where undeliverable messages from subject end up. The
// prefix keeps them out of wildcard subscriptions on the original subject.
func DLQSubject(subject string) string {
	return dlqPrefix + subject
}

func newMsg(ctx context.Context, subject string, data []byte) *nats.Msg {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	return msg
}

func retryCount(h nats.Header) int {
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
