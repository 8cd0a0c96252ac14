package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case strings.HasPrefix(subject, SubjectTaskEvents+"."):
		var p TaskEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TaskID == "" || p.State == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("task_id and state are required"))
		}
	case strings.HasPrefix(subject, SubjectAgentStatus+"."):
		var p AgentStatusPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.Agent == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("agent is required"))
		}
	}
	return nil
}
