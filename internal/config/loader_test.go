package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Delegation.Timeout != 120*time.Second {
		t.Errorf("expected delegation timeout 120s, got %v", cfg.Delegation.Timeout)
	}
	if cfg.Delegation.ConnectTimeout != 10*time.Second || cfg.Delegation.WriteTimeout != 10*time.Second {
		t.Errorf("unexpected connect/write timeouts %v/%v", cfg.Delegation.ConnectTimeout, cfg.Delegation.WriteTimeout)
	}
	if cfg.Delegation.PoolTimeout != 5*time.Second {
		t.Errorf("expected pool timeout 5s, got %v", cfg.Delegation.PoolTimeout)
	}
	if cfg.LLM.Model != "google/gemini-2.5-flash" {
		t.Errorf("unexpected default model %s", cfg.LLM.Model)
	}
	if len(cfg.Agents) != 3 {
		t.Fatalf("expected 3 default agents, got %d", len(cfg.Agents))
	}
}

func TestDefaultAgentPorts(t *testing.T) {
	cfg := Defaults()
	want := map[string]int{
		"Triage Agent":        10020,
		"FHIR Agent":          10028,
		"Orchestration Agent": 10024,
	}
	for name, port := range want {
		a, ok := cfg.Agent(name)
		if !ok {
			t.Fatalf("agent %q missing", name)
		}
		if a.Port != port {
			t.Errorf("agent %q: expected port %d, got %d", name, port, a.Port)
		}
	}
	orch, _ := cfg.Agent(cfg.Server.Orchestrator)
	if len(orch.Tools) != 1 || orch.Tools[0] != ToolsDelegation {
		t.Errorf("orchestrator should carry the delegation tools, got %v", orch.Tools)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  host: "0.0.0.0"
agents:
  - name: "Echo"
    port: 9001
    capability: "echo"
    status_message: "Echoing..."
remotes:
  - "localhost:9002"
delegation:
  max_conns: 4
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Name != "Echo" || cfg.Agents[0].Capability != CapabilityEcho {
		t.Errorf("expected a single echo agent, got %+v", cfg.Agents)
	}
	if len(cfg.Remotes) != 1 || cfg.Remotes[0] != "localhost:9002" {
		t.Errorf("unexpected remotes %v", cfg.Remotes)
	}
	if cfg.Delegation.MaxConns != 4 {
		t.Errorf("expected max_conns 4, got %d", cfg.Delegation.MaxConns)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Delegation.Timeout != 120*time.Second {
		t.Errorf("expected default delegation timeout, got %v", cfg.Delegation.Timeout)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("AGENTMESH_HOST", "0.0.0.0")
	t.Setenv("AGENTMESH_REMOTES", "localhost:9001, ,http://localhost:9002/")
	t.Setenv("OPEN_ROUTER_API_KEY", "sk-test")
	t.Setenv("FHIR_BASE_URL", "http://fhir:8080/fhir")
	t.Setenv("AGENTMESH_LOG_LEVEL", "warn")
	t.Setenv("AGENTMESH_BREAKER_TIMEOUT", "1m")
	t.Setenv("AGENTMESH_DELEGATION_TIMEOUT", "30s")

	loadEnv(&cfg)

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if len(cfg.Remotes) != 2 || cfg.Remotes[1] != "http://localhost:9002/" {
		t.Errorf("unexpected remotes %v", cfg.Remotes)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected api key from OPEN_ROUTER_API_KEY, got %q", cfg.LLM.APIKey)
	}
	if cfg.Records.URL != "http://fhir:8080/fhir" {
		t.Errorf("expected records url from FHIR_BASE_URL, got %s", cfg.Records.URL)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Delegation.Timeout != 30*time.Second {
		t.Errorf("expected delegation timeout 30s, got %v", cfg.Delegation.Timeout)
	}
}

func TestEnvOverrideIgnoresMalformed(t *testing.T) {
	cfg := Defaults()
	t.Setenv("AGENTMESH_DELEGATION_MAX_CONNS", "many")
	t.Setenv("AGENTMESH_DELEGATION_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Delegation.MaxConns != 32 {
		t.Errorf("malformed int should keep default, got %d", cfg.Delegation.MaxConns)
	}
	if cfg.Delegation.Timeout != 120*time.Second {
		t.Errorf("malformed duration should keep default, got %v", cfg.Delegation.Timeout)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	local := filepath.Join(dir, ".env.local")
	if err := os.WriteFile(base, []byte("AGENTMESH_TEST_A=base\nAGENTMESH_TEST_B=base\nAGENTMESH_TEST_C=base\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("AGENTMESH_TEST_B=local\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Registered with t.Setenv so the values are restored after the test.
	t.Setenv("AGENTMESH_TEST_A", "")
	t.Setenv("AGENTMESH_TEST_B", "")
	t.Setenv("AGENTMESH_TEST_C", "process")
	os.Unsetenv("AGENTMESH_TEST_A")
	os.Unsetenv("AGENTMESH_TEST_B")

	if err := loadDotenv(base, local); err != nil {
		t.Fatalf("loadDotenv: %v", err)
	}

	if got := os.Getenv("AGENTMESH_TEST_A"); got != "base" {
		t.Errorf("A: expected base, got %q", got)
	}
	if got := os.Getenv("AGENTMESH_TEST_B"); got != "local" {
		t.Errorf("B: expected local override, got %q", got)
	}
	if got := os.Getenv("AGENTMESH_TEST_C"); got != "process" {
		t.Errorf("C: .env must not override the process environment, got %q", got)
	}
}

func TestLoadDotenvMissing(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotenv(filepath.Join(dir, ".env"), filepath.Join(dir, ".env.local")); err != nil {
		t.Errorf("missing dotenv files should not error, got %v", err)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty host",
			modify: func(c *Config) { c.Server.Host = "" },
			errMsg: "server.host is required",
		},
		{
			name:   "zero delegation timeout",
			modify: func(c *Config) { c.Delegation.Timeout = 0 },
			errMsg: "delegation.timeout must be > 0",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Delegation.MaxConns = 0 },
			errMsg: "delegation.max_conns must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "zero execution slots",
			modify: func(c *Config) { c.Execution.MaxConcurrent = 0 },
			errMsg: "execution.max_concurrent must be >= 1",
		},
		{
			name:   "unnamed agent",
			modify: func(c *Config) { c.Agents[0].Name = "" },
			errMsg: "agents[0].name is required",
		},
		{
			name:   "duplicate agent name",
			modify: func(c *Config) { c.Agents[1].Name = c.Agents[0].Name },
			errMsg: `agents[1]: duplicate name "Triage Agent"`,
		},
		{
			name:   "duplicate port",
			modify: func(c *Config) { c.Agents[1].Port = c.Agents[0].Port },
			errMsg: `agent "FHIR Agent": port 10020 already used by "Triage Agent"`,
		},
		{
			name:   "unknown capability",
			modify: func(c *Config) { c.Agents[0].Capability = "oracle" },
			errMsg: `agent "Triage Agent": unknown capability "oracle"`,
		},
		{
			name:   "unknown tool set",
			modify: func(c *Config) { c.Agents[0].Tools = []string{"shell"} },
			errMsg: `agent "Triage Agent": unknown tool set "shell"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidateFillsAgentDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Agents = []Agent{{Name: "Echo", Port: 0}}
	if err := validate(&cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	a := cfg.Agents[0]
	if a.Capability != CapabilityLLM || a.ArtifactName != "response" || a.Version != "1.0.0" {
		t.Errorf("expected filled defaults, got %+v", a)
	}
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{"--host", "0.0.0.0", "--log-level", "debug"})
	if err != nil {
		t.Fatal(err)
	}

	if flags.Host == nil || *flags.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %v", flags.Host)
	}
	if flags.LogLevel == nil || *flags.LogLevel != "debug" {
		t.Errorf("expected log-level debug, got %v", flags.LogLevel)
	}
	// Unset flags remain nil
	if flags.NatsURL != nil {
		t.Errorf("expected nil NatsURL, got %v", *flags.NatsURL)
	}
	if flags.ConfigPath != nil {
		t.Errorf("expected nil ConfigPath, got %v", *flags.ConfigPath)
	}
}

func TestParseFlagsShorthand(t *testing.T) {
	flags, err := ParseFlags([]string{"-l", "warn", "-c", "custom.yaml"})
	if err != nil {
		t.Fatal(err)
	}

	if flags.LogLevel == nil || *flags.LogLevel != "warn" {
		t.Errorf("expected log-level warn, got %v", flags.LogLevel)
	}
	if flags.ConfigPath == nil || *flags.ConfigPath != "custom.yaml" {
		t.Errorf("expected config custom.yaml, got %v", flags.ConfigPath)
	}
}

func TestParseFlagsInvalid(t *testing.T) {
	_, err := ParseFlags([]string{"--unknown-flag"})
	if err == nil {
		t.Error("expected error for unknown flag, got nil")
	}
}

func TestApplyCLI(t *testing.T) {
	cfg := Defaults()

	host := "10.0.0.1"
	logLevel := "error"
	natsURL := "nats://cli:4222"
	remotes := "localhost:9001,localhost:9002"

	applyCLI(&cfg, CLIFlags{
		Host:     &host,
		LogLevel: &logLevel,
		NatsURL:  &natsURL,
		Remotes:  &remotes,
	})

	if cfg.Server.Host != "10.0.0.1" {
		t.Errorf("expected host 10.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected log level error, got %s", cfg.Logging.Level)
	}
	if cfg.NATS.URL != "nats://cli:4222" {
		t.Errorf("expected CLI NATS URL, got %s", cfg.NATS.URL)
	}
	if len(cfg.Remotes) != 2 {
		t.Errorf("expected 2 remotes, got %v", cfg.Remotes)
	}
}

func TestApplyCLINilFlags(t *testing.T) {
	cfg := Defaults()
	original := cfg

	// All-nil flags should change nothing.
	applyCLI(&cfg, CLIFlags{})

	if cfg.Server.Host != original.Server.Host {
		t.Errorf("host changed from %s to %s", original.Server.Host, cfg.Server.Host)
	}
	if cfg.Logging.Level != original.Logging.Level {
		t.Errorf("log level changed from %s to %s", original.Logging.Level, cfg.Logging.Level)
	}
}

func TestCLIOverridesEnv(t *testing.T) {
	// CLI flags must win over ENV.
	t.Setenv("AGENTMESH_HOST", "0.0.0.0")
	t.Setenv("AGENTMESH_LOG_LEVEL", "warn")

	flags, err := ParseFlags([]string{"--host", "127.0.0.2", "--log-level", "error", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadWithCLI(flags)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Host != "127.0.0.2" {
		t.Errorf("expected CLI host to override ENV, got %s", cfg.Server.Host)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected CLI log-level error to override ENV warn, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFullHierarchy(t *testing.T) {
	// YAML sets the level to debug, env overrides to warn. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
execution:
  max_concurrent: 2
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AGENTMESH_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
	if cfg.Execution.MaxConcurrent != 2 {
		t.Errorf("got max_concurrent %d, want 2 from YAML", cfg.Execution.MaxConcurrent)
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("agents: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(yamlPath); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
