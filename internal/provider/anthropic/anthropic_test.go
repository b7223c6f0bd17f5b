package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"pharmacy-agent/internal/agent"
)

type fakeStream struct {
	chunks []agent.Chunk
	cur    agent.Chunk
}

func (s *fakeStream) Next() bool {
	if len(s.chunks) == 0 {
		return false
	}
	s.cur, s.chunks = s.chunks[0], s.chunks[1:]
	return true
}
func (s *fakeStream) Current() agent.Chunk { return s.cur }
func (s *fakeStream) Err() error           { return nil }
func (s *fakeStream) Close() error         { return nil }

// feed runs a scripted event sequence through a translator the way the SDK
// stream would, dropping events that produce nothing.
func feed(steps ...func(*translator) (agent.Chunk, bool)) *fakeStream {
	t := newTranslator()
	fs := &fakeStream{}
	for _, step := range steps {
		if c, ok := step(t); ok {
			fs.chunks = append(fs.chunks, c)
		}
	}
	return fs
}

func start(i int64, typ, id, name string) func(*translator) (agent.Chunk, bool) {
	return func(t *translator) (agent.Chunk, bool) { return t.blockStart(i, typ, id, name) }
}

func text(i int64, s string) func(*translator) (agent.Chunk, bool) {
	return func(t *translator) (agent.Chunk, bool) { return t.blockDelta(i, "text_delta", s, "") }
}

func args(i int64, s string) func(*translator) (agent.Chunk, bool) {
	return func(t *translator) (agent.Chunk, bool) { return t.blockDelta(i, "input_json_delta", "", s) }
}

func stop(i int64) func(*translator) (agent.Chunk, bool) {
	return func(t *translator) (agent.Chunk, bool) { return t.blockStop(i) }
}

func finish(r string) func(*translator) (agent.Chunk, bool) {
	return func(t *translator) (agent.Chunk, bool) { return t.messageDelta(r) }
}

func TestTranslator_ToolUseAfterText(t *testing.T) {
	s := feed(
		start(0, "text", "", ""),
		text(0, "Let me check."),
		stop(0),
		start(1, "tool_use", "toolu_1", "check_medication_stock"),
		args(1, `{"medication_`),
		args(1, `name":"Advil"}`),
		stop(1),
		start(2, "tool_use", "toolu_2", "search_medications"),
		args(2, `{"filter_type":"all"}`),
		stop(2),
		finish("tool_use"),
	)

	r := agent.NewReassembler()
	outcome, err := r.Consume(s, func(agent.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeToolCalls, outcome)
	assert.Equal(t, []agent.ToolCall{
		{ID: "toolu_1", Name: "check_medication_stock", Arguments: `{"medication_name":"Advil"}`},
		{ID: "toolu_2", Name: "search_medications", Arguments: `{"filter_type":"all"}`},
	}, r.Calls())
}

func TestTranslator_ToolWithoutInputGetsEmptyObject(t *testing.T) {
	s := feed(
		start(0, "tool_use", "toolu_1", "list_everything"),
		stop(0),
		finish("tool_use"),
	)
	r := agent.NewReassembler()
	_, err := r.Consume(s, func(agent.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "{}", r.Calls()[0].Arguments)
}

func TestTranslator_TextAnswer(t *testing.T) {
	s := feed(start(0, "text", "", ""), text(0, "Hello"), stop(0), finish("end_turn"))
	outcome, err := agent.NewReassembler().Consume(s, func(agent.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeContent, outcome)
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, agent.FinishNone, FinishReason(""))
	assert.Equal(t, agent.FinishToolCalls, FinishReason("tool_use"))
	assert.Equal(t, agent.FinishStop, FinishReason("end_turn"))
	assert.Equal(t, agent.FinishStop, FinishReason("stop_sequence"))
	assert.Equal(t, agent.FinishLength, FinishReason("max_tokens"))
	assert.Equal(t, agent.FinishFiltered, FinishReason("refusal"))
}

func TestIsFailure(t *testing.T) {
	assert.True(t, IsFailure(`{"success":false,"error":"nope"}`))
	assert.False(t, IsFailure(`{"success":true}`))
	assert.False(t, IsFailure(`plain text`))
}

func TestParams_WireShape(t *testing.T) {
	req := agent.CompletionRequest{
		Model: "claude-sonnet-4-5",
		Messages: []agent.Message{
			agent.SystemMessage("be factual"),
			agent.UserMessage("Is Advil in stock?"),
			agent.ToolCallMessage(agent.ToolCall{ID: "toolu_1", Name: "check_medication_stock", Arguments: `{"medication_name":"Advil"}`}),
			agent.ToolResultMessage("toolu_1", `{"success":false,"error":"db down"}`),
		},
		Tools: []agent.ToolDefinition{{
			Name:        "check_medication_stock",
			Description: "Check stock",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"medication_name": map[string]any{"type": "string"}},
				"required":   []any{"medication_name"},
			},
		}},
	}

	data, err := json.Marshal(Params(req))
	require.NoError(t, err)
	body := gjson.ParseBytes(data)

	assert.Equal(t, "be factual", body.Get("system.0.text").String())
	assert.Equal(t, int64(maxTokens), body.Get("max_tokens").Int())
	require.Len(t, body.Get("messages").Array(), 3)
	assert.Equal(t, "assistant", body.Get("messages.1.role").String())
	assert.Equal(t, "tool_use", body.Get("messages.1.content.0.type").String())
	assert.Equal(t, "Advil", body.Get("messages.1.content.0.input.medication_name").String())
	assert.Equal(t, "tool_result", body.Get("messages.2.content.0.type").String())
	assert.Equal(t, "toolu_1", body.Get("messages.2.content.0.tool_use_id").String())
	assert.True(t, body.Get("messages.2.content.0.is_error").Bool())
	assert.Equal(t, "check_medication_stock", body.Get("tools.0.name").String())
	assert.Equal(t, "medication_name", body.Get("tools.0.input_schema.required.0").String())
}
