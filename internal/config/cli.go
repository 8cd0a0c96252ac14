package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// CLIFlags holds command-line overrides. Nil fields were not set.
type CLIFlags struct {
	ConfigPath *string
	Host       *string
	LogLevel   *string
	NatsURL    *string
	Remotes    *string
	Agent      *string // event filter of the watch command
}

// ParseFlags parses args into CLIFlags. Only flags present in args are non-nil.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("agentmesh", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath, host, logLevel, natsURL, remotes, agentName string
	)
	fs.StringVar(&configPath, "config", "", "path to the YAML config file")
	fs.StringVar(&configPath, "c", "", "shorthand for --config")
	fs.StringVar(&host, "host", "", "listen host for every agent")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&logLevel, "l", "", "shorthand for --log-level")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")
	fs.StringVar(&remotes, "remotes", "", "comma separated remote agent URLs")
	fs.StringVar(&agentName, "agent", "", "only watch events of this agent")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "host":
			flags.Host = &host
		case "log-level", "l":
			flags.LogLevel = &logLevel
		case "nats-url":
			flags.NatsURL = &natsURL
		case "remotes":
			flags.Remotes = &remotes
		case "agent":
			flags.Agent = &agentName
		}
	})
	return flags, nil
}

// LoadWithCLI loads the config with CLI flags applied last:
// defaults < YAML < .env < ENV < CLI. It returns the YAML path used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil && *flags.ConfigPath != "" {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}
	if err := loadDotenv(DotenvFile, DotenvLocalFile); err != nil {
		return nil, "", fmt.Errorf("config dotenv: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Host != nil {
		cfg.Server.Host = *flags.Host
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.Remotes != nil {
		var out []string
		for _, r := range strings.Split(*flags.Remotes, ",") {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
		cfg.Remotes = out
	}
}
