// Package config provides hierarchical configuration loading for agentmesh.
// Precedence: defaults < YAML file < .env files < environment variables.
package config

import "time"

// Config holds all runtime configuration for the agentmesh process.
type Config struct {
	Server     Server     `yaml:"server"`
	Agents     []Agent    `yaml:"agents"`
	Remotes    []string   `yaml:"remotes"`
	Delegation Delegation `yaml:"delegation"`
	Breaker    Breaker    `yaml:"breaker"`
	Execution  Execution  `yaml:"execution"`
	LLM        LLM        `yaml:"llm"`
	Records    Records    `yaml:"records"`
	Cache      Cache      `yaml:"cache"`
	NATS       NATS       `yaml:"nats"`
	OTEL       OTEL       `yaml:"otel"`
	Logging    Logging    `yaml:"logging"`
}

// Server holds settings shared by every agent listener.
type Server struct {
	Host              string        `yaml:"host"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	// Orchestrator is the agent the chat command sends user input to.
	Orchestrator string `yaml:"orchestrator"`
	// MCPAPIKey guards every agent's /mcp endpoint when set.
	MCPAPIKey string `yaml:"mcp_api_key"`
}

// Capability kinds an agent can be backed by.
const (
	CapabilityLLM  = "llm"
	CapabilityEcho = "echo"
)

// Tool set names an LLM-backed agent can be given.
const (
	ToolsDelegation = "delegation"
	ToolsRecords    = "records"
)

// Agent defines one locally hosted agent service.
type Agent struct {
	Name          string   `yaml:"name"`
	Port          int      `yaml:"port"`
	Description   string   `yaml:"description"`
	Version       string   `yaml:"version"`
	StatusMessage string   `yaml:"status_message"`
	ArtifactName  string   `yaml:"artifact_name"`
	Capability    string   `yaml:"capability"` // "llm" | "echo"
	Tools         []string `yaml:"tools"`
	SystemPrompt  string   `yaml:"system_prompt"`
	Skills        []Skill  `yaml:"skills"`
}

// Skill is an advertised agent skill.
type Skill struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Delegation holds the outbound task delegation budget.
type Delegation struct {
	Timeout        time.Duration `yaml:"timeout"`         // overall ceiling, also the read budget
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // TCP connect
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // per write on the connection
	PoolTimeout    time.Duration `yaml:"pool_timeout"`    // waiting for an outbound slot
	MaxConns       int           `yaml:"max_conns"`       // concurrent outbound requests
	ListParallel   int           `yaml:"list_parallel"`   // concurrent card fetches while listing
}

// Breaker holds circuit breaker configuration for remote agents and the LLM.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Execution holds task execution engine settings.
type Execution struct {
	MaxConcurrent int           `yaml:"max_concurrent"` // concurrent reasoning calls per agent
	SlotTimeout   time.Duration `yaml:"slot_timeout"`   // waiting for a reasoning slot
}

// LLM holds the OpenAI-compatible chat completion endpoint configuration.
type LLM struct {
	URL           string        `yaml:"url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxToolRounds int           `yaml:"max_tool_rounds"`
	Temperature   float64       `yaml:"temperature"`
}

// Records holds the clinical record store (FHIR) configuration.
type Records struct {
	URL       string        `yaml:"url"`
	Version   string        `yaml:"version"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// Cache holds the record read cache configuration.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L1TTL       time.Duration `yaml:"l1_ttl"`
	L2Bucket    string        `yaml:"l2_bucket"`
	L2TTL       time.Duration `yaml:"l2_ttl"`
}

// NATS holds the optional NATS connection used for event fan-out and the L2 cache.
// An empty URL disables NATS.
type NATS struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"` // JetStream stream holding task and agent subjects
}

// OTEL holds OpenTelemetry exporter configuration. An empty endpoint disables export.
type OTEL struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Host:              "127.0.0.1",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			Orchestrator:      "Orchestration Agent",
		},
		Agents: DefaultAgents(),
		Delegation: Delegation{
			Timeout:        120 * time.Second,
			ConnectTimeout: 10 * time.Second,
			WriteTimeout:   10 * time.Second,
			PoolTimeout:    5 * time.Second,
			MaxConns:       32,
			ListParallel:   4,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Execution: Execution{
			MaxConcurrent: 8,
			SlotTimeout:   30 * time.Second,
		},
		LLM: LLM{
			URL:           "https://openrouter.ai/api/v1",
			Model:         "google/gemini-2.5-flash",
			Timeout:       120 * time.Second,
			MaxToolRounds: 8,
			Temperature:   0.2,
		},
		Records: Records{
			URL:       "http://localhost:8080/fhir",
			Version:   "R4",
			Timeout:   30 * time.Second,
			UserAgent: "agentmesh/1.0.0",
		},
		Cache: Cache{
			L1MaxSizeMB: 32,
			L1TTL:       5 * time.Minute,
			L2Bucket:    "AGENTMESH_RECORDS",
			L2TTL:       30 * time.Minute,
		},
		NATS: NATS{
			Stream: "AGENTMESH",
		},
		OTEL: OTEL{
			ServiceName: "agentmesh",
			Insecure:    true,
			SampleRatio: 1.0,
		},
		Logging: Logging{
			Level:   "info",
			Service: "agentmesh",
		},
	}
}

// DefaultAgents returns the triage, record store and orchestration agents.
func DefaultAgents() []Agent {
	return []Agent{
		{
			Name:          "Triage Agent",
			Port:          10020,
			Description:   "Collects patient details and symptoms and recommends a triage level.",
			Version:       "1.0.0",
			StatusMessage: "Processing patient triage assessment...",
			ArtifactName:  "response",
			Capability:    CapabilityLLM,
			Tools:         []string{ToolsRecords},
			SystemPrompt: "You are a triage nurse agent. Collect the patient's name, date of birth, " +
				"gender, address and contact details, ask about symptoms one question at a time, " +
				"rate urgency as Emergency, High, Moderate or Low, and record Patient, Encounter " +
				"and Observation resources with the record tools. Be clear and reassuring.",
			Skills: []Skill{{
				ID:          "patient-triage",
				Name:        "Patient Triage",
				Description: "Assess symptoms and recommend an appropriate level of care.",
				Tags:        []string{"triage", "intake"},
			}},
		},
		{
			Name:          "FHIR Agent",
			Port:          10028,
			Description:   "Reads and writes patient data on the clinical record server (HL7 FHIR R4).",
			Version:       "1.0.0",
			StatusMessage: "Processing FHIR requests...",
			ArtifactName:  "response",
			Capability:    CapabilityLLM,
			Tools:         []string{ToolsRecords},
			SystemPrompt: "You are the FHIR agent. Use the record tools to look up patients by id " +
				"or demographics, read their observations and medication requests, and write new " +
				"resources. Keep every resource valid FHIR R4 JSON.",
			Skills: []Skill{
				{
					ID:          "retrieve-patient-data",
					Name:        "Retrieve Patient Data",
					Description: "Fetch patient demographic and clinical information by ID or by demographic details.",
				},
				{
					ID:          "write-clinical-data",
					Name:        "Write Clinical Data",
					Description: "Write new resources such as Diagnoses, Observations, or Test Results.",
				},
			},
		},
		{
			Name:          "Orchestration Agent",
			Port:          10024,
			Description:   "Routes user requests to the specialised agents and summarises their answers.",
			Version:       "1.0.0",
			StatusMessage: "Coordinating agent communication...",
			ArtifactName:  "response",
			Capability:    CapabilityLLM,
			Tools:         []string{ToolsDelegation},
			SystemPrompt: "You coordinate a group of agents. Call list_remote_agents to see who is " +
				"available, delegate with create_task(agent_url, message): patient data and " +
				"clinical records go to the FHIR agent, symptom assessment goes to the triage " +
				"agent. Summarise what each agent returned and say which agents you used.",
			Skills: []Skill{{
				ID:          "delegate",
				Name:        "Delegate",
				Description: "Delegate a request to the most suitable registered agent.",
				Tags:        []string{"orchestration"},
			}},
		},
	}
}
