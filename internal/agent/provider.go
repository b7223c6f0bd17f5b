package agent

import (
	"context"
	"fmt"
)

// FinishReason is the provider's signal for why a round's stream ended.
type FinishReason int

const (
	FinishNone FinishReason = iota
	FinishStop
	FinishToolCalls
	FinishLength
	FinishFiltered
)

func (f FinishReason) String() string {
	switch f {
	case FinishNone:
		return "none"
	case FinishStop:
		return "stop"
	case FinishToolCalls:
		return "tool_calls"
	case FinishLength:
		return "length"
	case FinishFiltered:
		return "content_filter"
	default:
		return fmt.Sprintf("FinishReason(%d)", int(f))
	}
}

// ToolCallFragment is one streamed piece of a tool call. Index is the call's
// position within the round; ID and Name may be empty on later fragments.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Chunk is one normalized delta from the completion stream.
type Chunk struct {
	Content      string
	ToolCalls    []ToolCallFragment
	FinishReason FinishReason
}

// ChunkStream iterates over a round's chunks. Next blocks until a chunk is
// available or the stream ends; Err reports why it ended, nil on a clean EOF.
type ChunkStream interface {
	Next() bool
	Current() Chunk
	Err() error
	Close() error
}

// CompletionRequest is one round's request. Tools is nil on rounds that must
// not offer tool schemas.
type CompletionRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDefinition
}

// Provider opens streaming completions against an upstream model API.
type Provider interface {
	Stream(ctx context.Context, req CompletionRequest) (ChunkStream, error)
}
