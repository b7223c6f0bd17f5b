package agent

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the variants of Event.
type EventKind int

const (
	KindContent EventKind = iota
	KindToolCall
	KindToolResult
	KindError
	KindDone
)

func (k EventKind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindToolCall:
		return "tool_call"
	case KindToolResult:
		return "tool_result"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a sealed union of everything a run reports to its consumer.
// The unexported marker keeps the set of variants closed.
type Event interface {
	Kind() EventKind
	event()
}

// ContentDelta carries a fragment of assistant text.
type ContentDelta struct {
	Text string
}

// ToolCallDelta carries the accumulated state of one in-progress tool call.
type ToolCallDelta struct {
	Call ToolCall
}

// ToolResultEvent reports the output of an executed tool.
type ToolResultEvent struct {
	Result ToolResult
}

// ErrorEvent reports a condition that ended the run early.
type ErrorEvent struct {
	Message string
}

// DoneEvent is the last event of every run that was not cancelled.
type DoneEvent struct{}

func (ContentDelta) Kind() EventKind    { return KindContent }
func (ToolCallDelta) Kind() EventKind   { return KindToolCall }
func (ToolResultEvent) Kind() EventKind { return KindToolResult }
func (ErrorEvent) Kind() EventKind      { return KindError }
func (DoneEvent) Kind() EventKind       { return KindDone }

func (ContentDelta) event()    {}
func (ToolCallDelta) event()   {}
func (ToolResultEvent) event() {}
func (ErrorEvent) event()      {}
func (DoneEvent) event()       {}

var (
	_ Event = ContentDelta{}
	_ Event = ToolCallDelta{}
	_ Event = ToolResultEvent{}
	_ Event = ErrorEvent{}
	_ Event = DoneEvent{}
)

func (e ContentDelta) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{KindContent.String(), e.Text})
}

func (e ToolCallDelta) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		ToolCall ToolCall `json:"tool_call"`
	}{KindToolCall.String(), e.Call})
}

func (e ToolResultEvent) MarshalJSON() ([]byte, error) {
	out := e.Result.Output
	if len(out) == 0 {
		out = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Type         string          `json:"type"`
		ToolCallID   string          `json:"tool_call_id"`
		FunctionName string          `json:"function_name"`
		Result       json.RawMessage `json:"result"`
	}{KindToolResult.String(), e.Result.CallID, e.Result.Name, out})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{KindError.String(), e.Message})
}

func (DoneEvent) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"done"}`), nil
}
