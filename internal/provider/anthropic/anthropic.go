// Package anthropic streams completions from the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/tidwall/gjson"

	"pharmacy-agent/internal/agent"
)

const maxTokens = 4096

type Provider struct {
	client sdk.Client
}

func New(apiKey string, opts ...option.RequestOption) *Provider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Provider{client: sdk.NewClient(opts...)}
}

func (p *Provider) Stream(ctx context.Context, req agent.CompletionRequest) (agent.ChunkStream, error) {
	s := p.client.Messages.NewStreaming(ctx, Params(req))
	if err := s.Err(); err != nil {
		s.Close()
		return nil, err
	}
	return &stream{s: s, t: newTranslator()}, nil
}

// Params translates a round request. System messages move to the system
// field; everything else keeps its order.
func Params(req agent.CompletionRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: maxTokens,
	}
	for _, m := range req.Messages {
		switch m.Role {
		case agent.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Text()})
		case agent.RoleUser:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Text())))
		case agent.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if m.Content != nil && *m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(*m.Content))
			}
			for _, c := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(c.ID, json.RawMessage(c.Arguments), c.Name))
			}
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(blocks...))
		case agent.RoleTool:
			params.Messages = append(params.Messages, sdk.NewUserMessage(
				sdk.NewToolResultBlock(m.ToolCallID, m.Text(), IsFailure(m.Text())),
			))
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = Tools(req.Tools)
	}
	return params
}

// IsFailure reports whether a tool result carries success set to false.
func IsFailure(content string) bool {
	success := gjson.Get(content, "success")
	return success.Exists() && !success.Bool()
}

func Tools(defs []agent.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, len(defs))
	for i, d := range defs {
		schema := sdk.ToolInputSchemaParam{
			Properties: d.Parameters["properties"],
			Required:   required(d.Parameters["required"]),
		}
		tool := sdk.ToolUnionParamOfTool(schema, d.Name)
		if tool.OfTool != nil {
			tool.OfTool.Description = sdk.String(d.Description)
		}
		out[i] = tool
	}
	return out
}

func required(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type stream struct {
	s   *ssestream.Stream[sdk.MessageStreamEventUnion]
	t   *translator
	cur agent.Chunk
}

// Next skips events that carry nothing for the reassembler, such as pings
// and text block boundaries.
func (s *stream) Next() bool {
	for s.s.Next() {
		if c, ok := s.t.event(s.s.Current()); ok {
			s.cur = c
			return true
		}
	}
	return false
}

func (s *stream) Current() agent.Chunk { return s.cur }

func (s *stream) Err() error { return s.s.Err() }

func (s *stream) Close() error { return s.s.Close() }

// translator renumbers tool_use content blocks into tool call positions.
// Anthropic indexes all content blocks, text included, while tool call
// positions count tool calls only.
type translator struct {
	positions map[int64]int
	sawArgs   map[int64]bool
	calls     int
}

func newTranslator() *translator {
	return &translator{positions: make(map[int64]int), sawArgs: make(map[int64]bool)}
}

func (t *translator) event(ev sdk.MessageStreamEventUnion) (agent.Chunk, bool) {
	switch ev.Type {
	case "content_block_start":
		start := ev.AsContentBlockStart()
		return t.blockStart(start.Index, start.ContentBlock.Type, start.ContentBlock.ID, start.ContentBlock.Name)
	case "content_block_delta":
		delta := ev.AsContentBlockDelta()
		return t.blockDelta(delta.Index, delta.Delta.Type, delta.Delta.Text, delta.Delta.PartialJSON)
	case "content_block_stop":
		return t.blockStop(ev.AsContentBlockStop().Index)
	case "message_delta":
		return t.messageDelta(string(ev.AsMessageDelta().Delta.StopReason))
	}
	return agent.Chunk{}, false
}

func (t *translator) blockStart(index int64, blockType, id, name string) (agent.Chunk, bool) {
	if blockType != "tool_use" {
		return agent.Chunk{}, false
	}
	pos := t.calls
	t.positions[index] = pos
	t.calls++
	return agent.Chunk{ToolCalls: []agent.ToolCallFragment{{Index: pos, ID: id, Name: name}}}, true
}

func (t *translator) blockDelta(index int64, deltaType, text, partialJSON string) (agent.Chunk, bool) {
	switch deltaType {
	case "text_delta":
		if text == "" {
			return agent.Chunk{}, false
		}
		return agent.Chunk{Content: text}, true
	case "input_json_delta":
		pos, ok := t.positions[index]
		if !ok || partialJSON == "" {
			return agent.Chunk{}, false
		}
		t.sawArgs[index] = true
		return agent.Chunk{ToolCalls: []agent.ToolCallFragment{{Index: pos, Arguments: partialJSON}}}, true
	}
	return agent.Chunk{}, false
}

// A tool_use block without input deltas means the tool takes no arguments.
func (t *translator) blockStop(index int64) (agent.Chunk, bool) {
	pos, ok := t.positions[index]
	if !ok || t.sawArgs[index] {
		return agent.Chunk{}, false
	}
	return agent.Chunk{ToolCalls: []agent.ToolCallFragment{{Index: pos, Arguments: "{}"}}}, true
}

func (t *translator) messageDelta(stopReason string) (agent.Chunk, bool) {
	r := FinishReason(stopReason)
	if r == agent.FinishNone {
		return agent.Chunk{}, false
	}
	return agent.Chunk{FinishReason: r}, true
}

func FinishReason(stopReason string) agent.FinishReason {
	switch stopReason {
	case "":
		return agent.FinishNone
	case "tool_use":
		return agent.FinishToolCalls
	case "max_tokens":
		return agent.FinishLength
	case "refusal":
		return agent.FinishFiltered
	default:
		return agent.FinishStop
	}
}
