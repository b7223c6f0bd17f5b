// Package gemini streams completions from Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"pharmacy-agent/internal/agent"
)

type Provider struct {
	client *genai.Client
}

func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// Stream opens one round. System messages become the system instruction;
// the last message is sent as the new turn and the rest as chat history.
func (p *Provider) Stream(ctx context.Context, req agent.CompletionRequest) (agent.ChunkStream, error) {
	model := p.client.GenerativeModel(req.Model)
	model.SetTemperature(0.3)

	system, contents, err := Contents(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini: no messages to send")
	}
	if system != nil {
		model.SystemInstruction = system
	}
	if len(req.Tools) > 0 {
		model.Tools = Tools(req.Tools)
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]
	return &stream{iter: cs.SendMessageStream(ctx, last.Parts...), newID: newCallID}, nil
}

func newCallID() string { return "call_" + uuid.NewString() }

// Contents converts history. Consecutive tool results are folded into one
// user turn of function responses, the shape ChatSession.SendMessage
// produces, and are matched to their call by id to recover the function
// name Gemini keys responses on.
func Contents(msgs []agent.Message) (*genai.Content, []*genai.Content, error) {
	var (
		system   *genai.Content
		out      []*genai.Content
		names    = make(map[string]string)
		prevTool bool
	)
	for _, m := range msgs {
		isTool := m.Role == agent.RoleTool
		switch m.Role {
		case agent.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.Text(m.Text()))

		case agent.RoleUser:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Text())}})

		case agent.RoleAssistant:
			c := &genai.Content{Role: "model"}
			if m.Content != nil && *m.Content != "" {
				c.Parts = append(c.Parts, genai.Text(*m.Content))
			}
			for _, call := range m.ToolCalls {
				names[call.ID] = call.Name
				args := map[string]any{}
				if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
					return nil, nil, fmt.Errorf("gemini: arguments of call %s: %w", call.ID, err)
				}
				c.Parts = append(c.Parts, genai.FunctionCall{Name: call.Name, Args: args})
			}
			out = append(out, c)

		case agent.RoleTool:
			name, ok := names[m.ToolCallID]
			if !ok {
				return nil, nil, fmt.Errorf("gemini: tool result %s has no matching call", m.ToolCallID)
			}
			part := genai.FunctionResponse{Name: name, Response: responseObject(m.Text())}
			if prevTool {
				out[len(out)-1].Parts = append(out[len(out)-1].Parts, part)
			} else {
				out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{part}})
			}
		}
		prevTool = isTool
	}
	return system, out, nil
}

func responseObject(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": content}
}

func Tools(defs []agent.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		decls[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  Schema(d.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Schema converts a JSON schema object into Gemini's schema subset.
// Unsupported keywords are dropped.
func Schema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}
	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if p, ok := raw.(map[string]any); ok {
				out.Properties[name] = Schema(p)
			}
		}
	}
	out.Required = stringList(s["required"])
	out.Enum = stringList(s["enum"])
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = Schema(items)
	}
	return out
}

func stringList(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, x := range vs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

// Gemini delivers each function call whole, in one part, without an id.
// The stream numbers calls in arrival order and assigns correlation ids.
type stream struct {
	iter  responseIterator
	newID func() string
	cur   agent.Chunk
	err   error
	done  bool
	calls int
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}
	resp, err := s.iter.Next()
	if err != nil {
		s.done = true
		if !errors.Is(err, iterator.Done) {
			s.err = err
		}
		return false
	}
	s.cur = s.convert(resp)
	return true
}

func (s *stream) convert(resp *genai.GenerateContentResponse) agent.Chunk {
	var c agent.Chunk
	if resp == nil || len(resp.Candidates) == 0 {
		return c
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				c.Content += string(p)
			case genai.FunctionCall:
				args, err := json.Marshal(p.Args)
				if err != nil || p.Args == nil {
					args = []byte("{}")
				}
				c.ToolCalls = append(c.ToolCalls, agent.ToolCallFragment{
					Index:     s.calls,
					ID:        s.newID(),
					Name:      p.Name,
					Arguments: string(args),
				})
				s.calls++
			}
		}
	}
	c.FinishReason = finishReason(cand.FinishReason, s.calls > 0)
	return c
}

// Gemini reports STOP even when the turn ended in function calls.
func finishReason(r genai.FinishReason, sawCalls bool) agent.FinishReason {
	switch r {
	case genai.FinishReasonUnspecified:
		return agent.FinishNone
	case genai.FinishReasonStop:
		if sawCalls {
			return agent.FinishToolCalls
		}
		return agent.FinishStop
	case genai.FinishReasonMaxTokens:
		return agent.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return agent.FinishFiltered
	default:
		return agent.FinishStop
	}
}

func (s *stream) Current() agent.Chunk { return s.cur }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.done = true
	return nil
}
