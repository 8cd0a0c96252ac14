package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/Strob0t/agentmesh/internal/domain/task"
	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

const chatPrompt = "you> "

// lineReader yields one line of user input per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct{ s *bufio.Scanner }

func (r scannerReader) ReadLine() (string, error) {
	if r.s.Scan() {
		return r.s.Text(), nil
	}
	if err := r.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// progressPrinter shows the intermediate status of every task while the
// user waits for the orchestrator.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressPrinter) setWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
}

// BroadcastEvent implements broadcast.Broadcaster.
func (p *progressPrinter) BroadcastEvent(_ context.Context, _ string, payload any) {
	ev, ok := payload.(messagequeue.TaskEventPayload)
	if !ok || ev.Final || ev.Message == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w != nil {
		fmt.Fprintf(p.w, "  [%s] %s\r\n", ev.Agent, ev.Message)
	}
}

func runChat(args []string) error {
	cfg, _, flush, err := loadConfig(args, true)
	if err != nil {
		return err
	}
	defer flush()

	orch, ok := cfg.Agent(cfg.Server.Orchestrator)
	if !ok {
		return fmt.Errorf("orchestrator %q is not a configured agent", cfg.Server.Orchestrator)
	}

	ctx := context.Background()
	progress := &progressPrinter{}
	a, err := newApp(ctx, cfg, progress)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.startAgents(ctx); err != nil {
		return err
	}
	orchURL := a.agentURL(orch.Port)
	send := func(ctx context.Context, line string) (*task.Result, error) {
		return a.delegation.Delegate(ctx, orchURL, line)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		progress.setWriter(os.Stdout)
		return chatLoop(ctx, scannerReader{bufio.NewScanner(os.Stdin)}, os.Stdout, send)
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, chatPrompt)
	progress.setWriter(t)
	fmt.Fprintf(t, "Talking to %s at %s. Type exit or press Ctrl-D to leave.\r\n", orch.Name, orchURL)
	return chatLoop(ctx, t, t, send)
}

// chatLoop sends every non-empty line to the orchestrator and prints the
// outcome until the input ends or the user types exit.
func chatLoop(ctx context.Context, in lineReader, out io.Writer, send func(context.Context, string) (*task.Result, error)) error {
	for {
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := send(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\r\n", err)
			continue
		}
		fmt.Fprint(out, formatResult(res))
	}
}

func formatResult(res *task.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", res.Status)
	if res.Outcome != task.OutcomeReported || res.Status == "failed" {
		if res.Message != "" {
			fmt.Fprintf(&b, " %s", res.Message)
		}
		if res.Outcome == task.OutcomeParseError {
			b.WriteString(" (reply could not be parsed)")
		}
	}
	b.WriteString("\r\n")
	if text := res.Text(); text != "" {
		for _, l := range strings.Split(text, "\n") {
			b.WriteString(l)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
