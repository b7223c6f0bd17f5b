// Package agent implements the streaming tool-call loop behind the chat
// endpoint: it reassembles a provider's token stream, executes the tool calls
// the model asks for, splices the results back into the conversation and
// decides whether to answer or go another round.
//
// A [Controller] is built once from an explicit [Settings] value and is safe
// for concurrent use; every call to [Controller.Run] owns its own message
// history and slot table and reports progress as a channel of [Event]s.
package agent

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message in the conversation.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleTool
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole maps the wire name of a role to its Role value.
func ParseRole(s string) (Role, error) {
	switch s {
	case "system":
		return RoleSystem, nil
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	case "tool":
		return RoleTool, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if r < RoleSystem || r > RoleTool {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ToolCall is a tool invocation requested by the model. Arguments holds the
// raw argument text exactly as the provider streamed it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

// MarshalJSON encodes the call in the function-calling shape clients and
// providers expect: {"id","type":"function","function":{"name","arguments"}}.
func (c ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireToolCall{
		ID:       c.ID,
		Type:     "function",
		Function: wireFunction{Name: c.Name, Arguments: c.Arguments},
	})
}

func (c *ToolCall) UnmarshalJSON(b []byte) error {
	var w wireToolCall
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = ToolCall{ID: w.ID, Name: w.Function.Name, Arguments: w.Function.Arguments}
	return nil
}

// Message is one entry of the conversation history.
//
// Content is nil for assistant messages that only carry ToolCalls.
// ToolCallID is set on tool messages and names the call they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, or "" when there is none.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

func textMessage(role Role, text string) Message {
	return Message{Role: role, Content: &text}
}

func SystemMessage(text string) Message    { return textMessage(RoleSystem, text) }
func UserMessage(text string) Message      { return textMessage(RoleUser, text) }
func AssistantMessage(text string) Message { return textMessage(RoleAssistant, text) }

// ToolCallMessage is the assistant half of a tool exchange.
func ToolCallMessage(calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// ToolResultMessage is the tool half of a tool exchange.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: &content, ToolCallID: callID}
}
