package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// Dispatch executes the completed tool calls of a round in slot order. For
// each call it emits a ToolResultEvent and appends the assistant request
// and the tool result to history, in that order, so every request is
// immediately followed by its answer.
//
// Arguments that are not a JSON object and tool names that are not
// registered end the run; calls executed before the failing one stay
// executed. Failures inside a tool never end the run: they come back as a
// result with success set to false.
func Dispatch(ctx context.Context, reg *Registry, calls []ToolCall, history []Message, emit EmitFunc) ([]Message, error) {
	for _, call := range calls {
		var args map[string]json.RawMessage
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return history, &ArgumentError{CallID: call.ID, Name: call.Name, Err: err}
		}
		if args == nil {
			return history, &ArgumentError{CallID: call.ID, Name: call.Name, Err: fmt.Errorf("arguments are not an object")}
		}

		tool, ok := reg.Lookup(call.Name)
		if !ok {
			return history, &UnknownToolError{Name: call.Name}
		}

		res := invoke(ctx, tool, call)
		if err := emit(ToolResultEvent{Result: res}); err != nil {
			return history, err
		}
		history = append(history,
			ToolCallMessage(call),
			ToolResultMessage(call.ID, string(res.Output)),
		)
	}
	return history, nil
}

func invoke(ctx context.Context, tool *Tool, call ToolCall) (res ToolResult) {
	res = ToolResult{CallID: call.ID, Name: call.Name}
	defer func() {
		if p := recover(); p != nil {
			res.Output = FailureOutput(fmt.Sprintf("Error executing %s: %v", call.Name, p))
		}
	}()

	out, err := tool.handler(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		res.Output = FailureOutput(fmt.Sprintf("Error executing %s: %v", call.Name, err))
		return res
	}
	data, err := json.Marshal(out)
	if err != nil {
		res.Output = FailureOutput(fmt.Sprintf("Error encoding %s result: %v", call.Name, err))
		return res
	}
	res.Output = data
	return res
}

// FailureOutput is the structured result used when a tool could not produce
// one of its own.
func FailureOutput(message string) json.RawMessage {
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, message})
	return data
}
