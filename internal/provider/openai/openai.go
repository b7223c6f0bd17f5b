// Package openai streams chat completions from the OpenAI API or any
// endpoint speaking the same protocol.
package openai

import (
	"context"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"pharmacy-agent/internal/agent"
)

type Provider struct {
	client sdk.Client
}

// New creates a provider. baseURL may be empty for the public API.
func New(apiKey, baseURL string, opts ...option.RequestOption) *Provider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Provider{client: sdk.NewClient(opts...)}
}

func (p *Provider) Stream(ctx context.Context, req agent.CompletionRequest) (agent.ChunkStream, error) {
	s := p.client.Chat.Completions.NewStreaming(ctx, Params(req))
	// NewStreaming defers request errors to the first Next; surface them now
	// so they are reported as a failure to open.
	if err := s.Err(); err != nil {
		s.Close()
		return nil, err
	}
	return &stream{s: s}, nil
}

// Params translates a round request into SDK parameters.
func Params(req agent.CompletionRequest) sdk.ChatCompletionNewParams {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(req.Model),
		Messages: Messages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = Tools(req.Tools)
	}
	return params
}

func Messages(msgs []agent.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Text()))
		case agent.RoleUser:
			out = append(out, sdk.UserMessage(m.Text()))
		case agent.RoleTool:
			out = append(out, sdk.ToolMessage(m.Text(), m.ToolCallID))
		case agent.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(m.Text()))
				continue
			}
			asst := &sdk.ChatCompletionAssistantMessageParam{}
			if m.Content != nil {
				asst.Content.OfString = sdk.String(*m.Content)
			}
			for _, c := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallParam{
					ID: c.ID,
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: c.Arguments,
					},
				})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: asst})
		}
	}
	return out
}

func Tools(defs []agent.ToolDefinition) []sdk.ChatCompletionToolParam {
	out := make([]sdk.ChatCompletionToolParam, len(defs))
	for i, d := range defs {
		out[i] = sdk.ChatCompletionToolParam{
			Function: sdk.FunctionDefinitionParam{
				Name:        d.Name,
				Description: sdk.String(d.Description),
				Parameters:  sdk.FunctionParameters(d.Parameters),
			},
		}
	}
	return out
}

type stream struct {
	s *ssestream.Stream[sdk.ChatCompletionChunk]
}

func (s *stream) Next() bool           { return s.s.Next() }
func (s *stream) Current() agent.Chunk { return Chunk(s.s.Current()) }
func (s *stream) Err() error           { return s.s.Err() }
func (s *stream) Close() error         { return s.s.Close() }

// Chunk normalizes one streamed chunk. Only the first choice is read;
// chunks without choices, such as the trailing usage chunk, are empty.
func Chunk(c sdk.ChatCompletionChunk) agent.Chunk {
	if len(c.Choices) == 0 {
		return agent.Chunk{}
	}
	choice := c.Choices[0]
	out := agent.Chunk{
		Content:      choice.Delta.Content,
		FinishReason: FinishReason(choice.FinishReason),
	}
	for _, tc := range choice.Delta.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agent.ToolCallFragment{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// FinishReason maps the wire finish_reason. Unrecognized non-empty reasons
// end the round like "stop" so the stream is never read past its end.
func FinishReason(r string) agent.FinishReason {
	switch r {
	case "":
		return agent.FinishNone
	case "stop":
		return agent.FinishStop
	case "tool_calls", "function_call":
		return agent.FinishToolCalls
	case "length":
		return agent.FinishLength
	case "content_filter":
		return agent.FinishFiltered
	default:
		return agent.FinishStop
	}
}
