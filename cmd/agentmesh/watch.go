package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	cfnats "github.com/Strob0t/agentmesh/internal/adapter/nats"
	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

func runWatch(args []string) error {
	cfg, flags, flush, err := loadConfig(args, true)
	if err != nil {
		return err
	}
	defer flush()

	if cfg.NATS.URL == "" {
		return errors.New("watch needs a NATS server: set --nats-url or NATS_URL")
	}
	agentName := ""
	if flags.Agent != nil {
		agentName = *flags.Agent
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	q, err := cfnats.Connect(ctx, cfg.NATS)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = q.Drain() }()

	stop, err := watch(ctx, q, agentName, os.Stdout)
	if err != nil {
		return err
	}
	defer stop()

	<-ctx.Done()
	return nil
}

// watchSubjects returns the task and liveness subjects of one agent, or of
// every agent when agentName is empty.
func watchSubjects(agentName string) []string {
	if agentName == "" {
		return []string{
			messagequeue.SubjectTaskEvents + ".>",
			messagequeue.SubjectAgentStatus + ".>",
		}
	}
	return []string{
		messagequeue.TaskEventSubject(agentName),
		messagequeue.AgentStatusSubject(agentName),
	}
}

// watch subscribes to the event subjects and prints every event to out.
// The returned func ends all subscriptions.
func watch(ctx context.Context, q messagequeue.Queue, agentName string, out io.Writer) (func(), error) {
	handler := eventPrinter(&lockedWriter{w: out})

	var stops []func()
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, subject := range watchSubjects(agentName) {
		stop, err := q.Subscribe(ctx, subject, handler)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		stops = append(stops, stop)
	}
	return stopAll, nil
}

// eventPrinter renders each event as one line. A decode or write error is
// returned so the queue retries the message.
func eventPrinter(out io.Writer) messagequeue.Handler {
	return func(_ context.Context, subject string, data []byte) error {
		var line string
		switch {
		case strings.HasPrefix(subject, messagequeue.SubjectTaskEvents+"."):
			var ev messagequeue.TaskEventPayload
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("decode task event: %w", err)
			}
			line = fmt.Sprintf("%s  task %s  %s", ev.Agent, ev.TaskID, ev.State)
			if ev.Message != "" {
				line += "  " + ev.Message
			}
			if ev.Final {
				line += "  (final)"
			}
		case strings.HasPrefix(subject, messagequeue.SubjectAgentStatus+"."):
			var st messagequeue.AgentStatusPayload
			if err := json.Unmarshal(data, &st); err != nil {
				return fmt.Errorf("decode agent status: %w", err)
			}
			line = fmt.Sprintf("%s  %s  %s", st.Agent, st.Status, st.URL)
			if st.Error != "" {
				line += "  " + st.Error
			}
		default:
			return nil
		}
		_, err := fmt.Fprintln(out, line)
		return err
	}
}

// lockedWriter serializes writes from concurrent consumers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
