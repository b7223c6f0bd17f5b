package models

import (
	"errors"
	"fmt"

	"pharmacy-agent/internal/agent"
)

// ChatMessage is one conversation turn as sent by clients.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// ChatRequest is the payload of POST /chat and of each /ws/chat frame.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
}

// AgentMessages validates the history and converts it for the controller.
// Clients may not send tool turns; those only exist inside a run.
func (r ChatRequest) AgentMessages() ([]agent.Message, error) {
	if len(r.Messages) == 0 {
		return nil, errors.New("messages must not be empty")
	}
	out := make([]agent.Message, 0, len(r.Messages))
	for i, m := range r.Messages {
		role, err := agent.ParseRole(m.Role)
		if err != nil || role == agent.RoleTool {
			return nil, fmt.Errorf("messages[%d]: role %q is not allowed", i, m.Role)
		}
		content := m.Content
		out = append(out, agent.Message{Role: role, Content: &content})
	}
	return out, nil
}

// ServiceInfo is the payload of GET /.
type ServiceInfo struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
