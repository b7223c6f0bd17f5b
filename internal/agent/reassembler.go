package agent

import (
	"fmt"
	"strings"
)

// Outcome is how a round ended.
type Outcome int

const (
	// OutcomeUnexpectedEnd: the stream closed without a usable finish reason.
	OutcomeUnexpectedEnd Outcome = iota
	// OutcomeContent: the model produced its final answer.
	OutcomeContent
	// OutcomeToolCalls: the model finished emitting tool calls.
	OutcomeToolCalls
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnexpectedEnd:
		return "stream-ended-unexpectedly"
	case OutcomeContent:
		return "stopped-with-content"
	case OutcomeToolCalls:
		return "stopped-with-tool-calls"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// slot accumulates one tool call of a round.
type slot struct {
	id   string
	name string
	args strings.Builder
	seen bool
}

func (s *slot) merge(f ToolCallFragment) {
	s.seen = true
	if f.ID != "" {
		s.id = f.ID
	}
	if f.Name != "" {
		s.name = f.Name
	}
	s.args.WriteString(f.Arguments)
}

func (s *slot) call() ToolCall {
	return ToolCall{ID: s.id, Name: s.name, Arguments: s.args.String()}
}

// slotTable holds the round's slots by position. Positions that never
// received a fragment stay unseen and are skipped.
type slotTable struct {
	slots []*slot
}

func (t *slotTable) at(i int) *slot {
	for len(t.slots) <= i {
		t.slots = append(t.slots, &slot{})
	}
	return t.slots[i]
}

func (t *slotTable) calls() []ToolCall {
	var calls []ToolCall
	for _, s := range t.slots {
		if s.seen {
			calls = append(calls, s.call())
		}
	}
	return calls
}

// EmitFunc forwards an event to the consumer. A non-nil error (typically a
// cancelled context) stops the producer.
type EmitFunc func(Event) error

// Reassembler decodes one round of a completion stream. Text is forwarded
// as it arrives; tool-call fragments are merged into slots and the updated
// slot is forwarded after every merge. It never executes anything.
type Reassembler struct {
	table      slotTable
	hasContent bool
	finish     FinishReason
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Apply folds one chunk into the round state.
func (r *Reassembler) Apply(c Chunk, emit EmitFunc) error {
	for _, f := range c.ToolCalls {
		if f.Index < 0 {
			return &ProtocolError{Err: fmt.Errorf("negative tool call index %d", f.Index)}
		}
		s := r.table.at(f.Index)
		s.merge(f)
		if err := emit(ToolCallDelta{Call: s.call()}); err != nil {
			return err
		}
	}
	if c.Content != "" {
		r.hasContent = true
		if err := emit(ContentDelta{Text: c.Content}); err != nil {
			return err
		}
	}
	if c.FinishReason != FinishNone {
		r.finish = c.FinishReason
	}
	return nil
}

// Finished reports whether a finish reason has been seen.
func (r *Reassembler) Finished() bool { return r.finish != FinishNone }

// Calls returns the accumulated tool calls in slot order.
func (r *Reassembler) Calls() []ToolCall { return r.table.calls() }

// Outcome classifies the round from the finish reason and what was produced.
func (r *Reassembler) Outcome() Outcome {
	hasCalls := len(r.table.calls()) > 0
	switch r.finish {
	case FinishToolCalls:
		if hasCalls {
			return OutcomeToolCalls
		}
		if r.hasContent {
			return OutcomeContent
		}
	case FinishStop, FinishLength, FinishFiltered:
		if r.hasContent {
			return OutcomeContent
		}
	}
	return OutcomeUnexpectedEnd
}

// Consume drains stream until the first finish reason or the end of the
// stream, whichever comes first, and returns the round outcome. A stream
// that fails before finishing yields a *ProtocolError.
func (r *Reassembler) Consume(stream ChunkStream, emit EmitFunc) (Outcome, error) {
	for stream.Next() {
		if err := r.Apply(stream.Current(), emit); err != nil {
			return OutcomeUnexpectedEnd, err
		}
		if r.Finished() {
			return r.Outcome(), nil
		}
	}
	if err := stream.Err(); err != nil {
		return OutcomeUnexpectedEnd, &ProtocolError{Err: err}
	}
	return r.Outcome(), nil
}
