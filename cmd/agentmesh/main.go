package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/logger"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args)
	case "chat":
		return runChat(args)
	case "agents":
		return runAgents(args)
	case "watch":
		return runWatch(args)
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: agentmesh [command] [options]

Commands:
  serve    Start every configured agent and wait for a signal (default)
  chat     Start the agents and talk to the orchestrator interactively
  agents   List the registered agents that answer their card
  watch    Print task and liveness events published on NATS
  help     Show this help message

Options:
  -c, --config     path to the YAML config file (default agentmesh.yaml)
  -l, --log-level  debug, info, warn or error
      --host       listen host for every agent
      --nats-url   NATS server URL (enables event fan-out and the L2 cache)
      --remotes    comma separated remote agent URLs
      --agent      watch only this agent's events
`)
}

// loadConfig parses flags, loads the config and installs the logger. The
// returned func flushes the logger. With logToStderr, stdout is left to the
// command's own output.
func loadConfig(args []string, logToStderr bool) (*config.Config, config.CLIFlags, func(), error) {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return nil, flags, nil, err
	}
	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return nil, flags, nil, fmt.Errorf("config: %w", err)
	}

	out := os.Stdout
	if logToStderr {
		out = os.Stderr
	}
	log, closer := logger.NewWithWriter(cfg.Logging, out)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", path,
		"agents", len(cfg.Agents),
		"remotes", len(cfg.Remotes),
		"log_level", cfg.Logging.Level,
	)
	return cfg, flags, closer.Close, nil
}

func runServe(args []string) error {
	cfg, _, flush, err := loadConfig(args, false)
	if err != nil {
		return err
	}
	defer flush()

	ctx := context.Background()
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.startAgents(ctx); err != nil {
		return err
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
		slog.Info("shutting down")
	case <-a.allStopped():
		return errors.New("every agent service stopped")
	}
	return nil
}

func runAgents(args []string) error {
	cfg, _, flush, err := loadConfig(args, false)
	if err != nil {
		return err
	}
	defer flush()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Delegation.Timeout+5*time.Second)
	defer cancel()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()

	a.registerDirectory()
	return printAgents(os.Stdout, a.registry.List(ctx))
}
