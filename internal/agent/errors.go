package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEnd is reported when a round's stream closes without a
	// finish reason, or finishes having produced neither text nor tool calls.
	ErrUnexpectedEnd = errors.New("model stream ended unexpectedly")

	// ErrMaxRounds is reported when every allowed round ended in tool calls.
	ErrMaxRounds = errors.New("maximum tool call iterations reached")

	ErrDuplicateTool = errors.New("duplicate tool name")
)

// ArgumentError means the accumulated argument text of a tool call is not a
// JSON object. It ends the run.
type ArgumentError struct {
	CallID string
	Name   string
	Err    error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q (call %s): %v", e.Name, e.CallID, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// UnknownToolError means the model asked for a tool that is not registered.
// It ends the run.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool requested: %q", e.Name)
}

// ProtocolError wraps a failure of the upstream completion stream.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return "completion stream failed: " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }
