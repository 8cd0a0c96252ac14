package messagequeue

// TaskEventPayload is the schema for tasks.events.{agent} messages.
type TaskEventPayload struct {
	Agent     string `json:"agent"`
	TaskID    string `json:"task_id"`
	ContextID string `json:"context_id"`
	Kind      string `json:"kind"`
	State     string `json:"state"`
	Message   string `json:"message,omitempty"`
	Final     bool   `json:"final"`
	Timestamp string `json:"timestamp"`
}

// AgentStatusPayload is the schema for agents.status.{agent} messages.
type AgentStatusPayload struct {
	Agent  string `json:"agent"`
	URL    string `json:"url"`
	Status string `json:"status"` // "alive" or "stopped"
	Error  string `json:"error,omitempty"`
}
