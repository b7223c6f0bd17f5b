// Package agenttest provides a scripted agent.Provider for tests.
package agenttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pharmacy-agent/internal/agent"
)

// Provider replays one chunk script per round. When the scripts run out the
// last one is replayed, which makes "always call a tool" providers easy.
type Provider struct {
	// OpenErr, when set, is returned by Stream instead of a stream.
	OpenErr error
	// StreamErr, when set, is reported by every stream after its chunks.
	StreamErr error
	// Hang makes streams block after their chunks until the context ends.
	Hang bool

	mu       sync.Mutex
	rounds   [][]agent.Chunk
	requests []agent.CompletionRequest
	closed   atomic.Int32
}

func NewProvider(rounds ...[]agent.Chunk) *Provider {
	return &Provider{rounds: rounds}
}

func (p *Provider) Stream(ctx context.Context, req agent.CompletionRequest) (agent.ChunkStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req.Messages = append([]agent.Message(nil), req.Messages...)
	p.requests = append(p.requests, req)

	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	var chunks []agent.Chunk
	if n := len(p.requests); n <= len(p.rounds) {
		chunks = p.rounds[n-1]
	} else if len(p.rounds) > 0 {
		chunks = p.rounds[len(p.rounds)-1]
	}
	return &stream{ctx: ctx, chunks: chunks, tailErr: p.StreamErr, hang: p.Hang, onClose: func() { p.closed.Add(1) }}, nil
}

// Requests returns a copy of every request received so far.
func (p *Provider) Requests() []agent.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]agent.CompletionRequest(nil), p.requests...)
}

// Closed reports how many streams have been closed.
func (p *Provider) Closed() int {
	return int(p.closed.Load())
}

type stream struct {
	ctx     context.Context
	chunks  []agent.Chunk
	next    int
	cur     agent.Chunk
	err     error
	tailErr error
	hang    bool
	closed  bool
	onClose func()
}

func (s *stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.next < len(s.chunks) {
		s.cur = s.chunks[s.next]
		s.next++
		return true
	}
	if s.hang {
		<-s.ctx.Done()
		s.err = s.ctx.Err()
		return false
	}
	s.err = s.tailErr
	return false
}

func (s *stream) Current() agent.Chunk { return s.cur }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	if s.closed {
		return errors.New("stream already closed")
	}
	s.closed = true
	s.onClose()
	return nil
}

// Text is a content-only chunk.
func Text(s string) agent.Chunk {
	return agent.Chunk{Content: s}
}

// Finish is a chunk carrying only a finish reason.
func Finish(r agent.FinishReason) agent.Chunk {
	return agent.Chunk{FinishReason: r}
}

// Call opens tool call slot index with its id and name and optional first
// argument fragment.
func Call(index int, id, name, args string) agent.Chunk {
	return agent.Chunk{ToolCalls: []agent.ToolCallFragment{{Index: index, ID: id, Name: name, Arguments: args}}}
}

// Args is a bare argument fragment for slot index.
func Args(index int, args string) agent.Chunk {
	return agent.Chunk{ToolCalls: []agent.ToolCallFragment{{Index: index, Arguments: args}}}
}

// Answer is a complete content-only round.
func Answer(parts ...string) []agent.Chunk {
	chunks := make([]agent.Chunk, 0, len(parts)+1)
	for _, p := range parts {
		chunks = append(chunks, Text(p))
	}
	return append(chunks, Finish(agent.FinishStop))
}

// ToolRound is a complete round with a single tool call whose arguments are
// streamed in pieces of at most size bytes.
func ToolRound(id, name, args string, size int) []agent.Chunk {
	pieces := Split(args, size)
	chunks := []agent.Chunk{Call(0, id, name, "")}
	for _, p := range pieces {
		chunks = append(chunks, Args(0, p))
	}
	return append(chunks, Finish(agent.FinishToolCalls))
}

// Split cuts s into consecutive pieces of at most size bytes, ignoring rune
// boundaries the way a provider may.
func Split(s string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// Collect drains events until the channel closes.
func Collect(events <-chan agent.Event) []agent.Event {
	var out []agent.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

// Kinds lists the kinds of events in order.
func Kinds(events []agent.Event) []agent.EventKind {
	kinds := make([]agent.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind()
	}
	return kinds
}
