package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentmesh.yaml"

// Dotenv files read before the environment overlay. The local file wins.
const (
	DotenvFile      = ".env"
	DotenvLocalFile = ".env.local"
)

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// YAML and .env files are optional; missing files are not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < .env < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg, _, err := LoadWithCLI(CLIFlags{ConfigPath: &yamlPath})
	return cfg, err
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotenv populates the process environment from base and local.
// base never overrides variables already set; local overrides everything.
func loadDotenv(base, local string) error {
	if err := godotenv.Load(base); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", base, err)
	}
	if err := godotenv.Overload(local); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", local, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Host, "AGENTMESH_HOST")
	setString(&cfg.Server.Orchestrator, "AGENTMESH_ORCHESTRATOR")
	setString(&cfg.Server.MCPAPIKey, "AGENTMESH_MCP_API_KEY")
	setList(&cfg.Remotes, "AGENTMESH_REMOTES")

	// Delegation
	setDuration(&cfg.Delegation.Timeout, "AGENTMESH_DELEGATION_TIMEOUT")
	setDuration(&cfg.Delegation.ConnectTimeout, "AGENTMESH_DELEGATION_CONNECT_TIMEOUT")
	setDuration(&cfg.Delegation.WriteTimeout, "AGENTMESH_DELEGATION_WRITE_TIMEOUT")
	setDuration(&cfg.Delegation.PoolTimeout, "AGENTMESH_DELEGATION_POOL_TIMEOUT")
	setInt(&cfg.Delegation.MaxConns, "AGENTMESH_DELEGATION_MAX_CONNS")
	setInt(&cfg.Delegation.ListParallel, "AGENTMESH_DELEGATION_LIST_PARALLEL")

	setInt(&cfg.Breaker.MaxFailures, "AGENTMESH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTMESH_BREAKER_TIMEOUT")

	setInt(&cfg.Execution.MaxConcurrent, "AGENTMESH_EXEC_MAX_CONCURRENT")
	setDuration(&cfg.Execution.SlotTimeout, "AGENTMESH_EXEC_SLOT_TIMEOUT")

	// LLM
	setString(&cfg.LLM.URL, "AGENTMESH_LLM_URL")
	setString(&cfg.LLM.APIKey, "OPEN_ROUTER_API_KEY")
	setString(&cfg.LLM.APIKey, "AGENTMESH_LLM_API_KEY")
	setString(&cfg.LLM.Model, "AGENTMESH_LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "AGENTMESH_LLM_TIMEOUT")
	setInt(&cfg.LLM.MaxToolRounds, "AGENTMESH_LLM_MAX_TOOL_ROUNDS")
	setFloat64(&cfg.LLM.Temperature, "AGENTMESH_LLM_TEMPERATURE")

	// Records
	setString(&cfg.Records.URL, "FHIR_BASE_URL")
	setString(&cfg.Records.Version, "FHIR_VERSION")
	setDuration(&cfg.Records.Timeout, "AGENTMESH_RECORDS_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "AGENTMESH_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "AGENTMESH_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "AGENTMESH_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "AGENTMESH_CACHE_L2_TTL")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "AGENTMESH_NATS_STREAM")

	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "AGENTMESH_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRatio, "AGENTMESH_OTEL_SAMPLE_RATIO")

	setString(&cfg.Logging.Level, "AGENTMESH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTMESH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "AGENTMESH_LOG_ASYNC")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if cfg.Delegation.Timeout <= 0 {
		return errors.New("delegation.timeout must be > 0")
	}
	if cfg.Delegation.MaxConns < 1 {
		return errors.New("delegation.max_conns must be >= 1")
	}
	if cfg.Delegation.ListParallel < 1 {
		return errors.New("delegation.list_parallel must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Execution.MaxConcurrent < 1 {
		return errors.New("execution.max_concurrent must be >= 1")
	}
	if cfg.LLM.MaxToolRounds < 1 {
		return errors.New("llm.max_tool_rounds must be >= 1")
	}

	names := make(map[string]bool, len(cfg.Agents))
	ports := make(map[int]string, len(cfg.Agents))
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		if a.Name == "" {
			return fmt.Errorf("agents[%d].name is required", i)
		}
		if names[a.Name] {
			return fmt.Errorf("agents[%d]: duplicate name %q", i, a.Name)
		}
		names[a.Name] = true
		if a.Port < 0 || a.Port > 65535 {
			return fmt.Errorf("agent %q: port %d out of range", a.Name, a.Port)
		}
		if a.Port != 0 {
			if other, ok := ports[a.Port]; ok {
				return fmt.Errorf("agent %q: port %d already used by %q", a.Name, a.Port, other)
			}
			ports[a.Port] = a.Name
		}
		switch a.Capability {
		case CapabilityLLM, CapabilityEcho:
		case "":
			a.Capability = CapabilityLLM
		default:
			return fmt.Errorf("agent %q: unknown capability %q", a.Name, a.Capability)
		}
		for _, ts := range a.Tools {
			if ts != ToolsDelegation && ts != ToolsRecords {
				return fmt.Errorf("agent %q: unknown tool set %q", a.Name, ts)
			}
		}
		if a.ArtifactName == "" {
			a.ArtifactName = "response"
		}
		if a.Version == "" {
			a.Version = "1.0.0"
		}
	}
	return nil
}

// Agent returns the agent definition with the given name.
func (c *Config) Agent(name string) (Agent, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma separated value, dropping empty items.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
