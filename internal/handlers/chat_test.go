package handlers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/agent/agenttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stockArgs struct {
	MedicationName string `json:"medication_name"`
}

func newChatHandler(t *testing.T, p agent.Provider) *ChatHandler {
	t.Helper()
	tool, err := agent.NewTool("check_medication_stock", "Check stock", func(_ context.Context, a stockArgs) (any, error) {
		return map[string]any{"success": true, "medication_name": a.MedicationName, "in_stock": true}, nil
	})
	require.NoError(t, err)
	reg, err := agent.NewRegistry(tool)
	require.NoError(t, err)

	c := agent.NewController(p, reg, agent.Settings{Model: "gpt-5-mini", SystemPrompt: "pharmacy"}, agent.WithLogger(discard))
	return NewChatHandler(c, discard)
}

func postChat(h *ChatHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Chat(rr, req)
	return rr
}

// sseEvents returns the JSON payload of every data line in body.
func sseEvents(t *testing.T, body string) []gjson.Result {
	t.Helper()
	var out []gjson.Result
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected line %q", line)
		payload := strings.TrimPrefix(line, "data: ")
		require.True(t, gjson.Valid(payload), "invalid JSON %q", payload)
		out = append(out, gjson.Parse(payload))
	}
	return out
}

func types(events []gjson.Result) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Get("type").String()
	}
	return out
}

func TestChat_StreamsAnswer(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("Hello", " there"))
	rr := postChat(newChatHandler(t, p), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Len(t, rr.Header().Get("X-Chat-ID"), 21)

	events := sseEvents(t, rr.Body.String())
	assert.Equal(t, []string{"content", "content", "done"}, types(events))
	assert.Equal(t, "Hello", events[0].Get("content").String())
	assert.True(t, strings.HasSuffix(rr.Body.String(), "\n\n"))
}

func TestChat_ToolRoundOnTheWire(t *testing.T) {
	p := agenttest.NewProvider(
		agenttest.ToolRound("call_1", "check_medication_stock", `{"medication_name":"Advil"}`, 5),
		agenttest.Answer("Advil is in stock."),
	)
	rr := postChat(newChatHandler(t, p), `{"messages":[{"role":"user","content":"Is Advil in stock?"}]}`)

	events := sseEvents(t, rr.Body.String())
	require.Equal(t, []string{"tool_call", "tool_result", "content", "done"}, types(events))

	assert.Equal(t, "call_1", events[0].Get("tool_call.id").String())
	assert.Equal(t, "function", events[0].Get("tool_call.type").String())
	assert.Equal(t, "check_medication_stock", events[0].Get("tool_call.function.name").String())
	assert.Equal(t, `{"medication_name":"Advil"}`, events[0].Get("tool_call.function.arguments").String())

	assert.Equal(t, "call_1", events[1].Get("tool_call_id").String())
	assert.Equal(t, "check_medication_stock", events[1].Get("function_name").String())
	assert.True(t, events[1].Get("result.success").Bool())
	assert.True(t, events[1].Get("result.in_stock").Bool())
}

func TestChat_FailureIsInBand(t *testing.T) {
	p := agenttest.NewProvider()
	p.OpenErr = errors.New("upstream unavailable")
	rr := postChat(newChatHandler(t, p), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	events := sseEvents(t, rr.Body.String())
	require.Equal(t, []string{"error", "done"}, types(events))
	assert.NotEmpty(t, events[0].Get("error").String())
}

func TestChat_ModelOverride(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("ok"))
	postChat(newChatHandler(t, p), `{"messages":[{"role":"user","content":"hi"}],"model":"gpt-4o"}`)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gpt-4o", reqs[0].Model)
}

func TestChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"messages":`},
		{"no messages", `{"messages":[]}`},
		{"missing messages", `{}`},
		{"tool role", `{"messages":[{"role":"tool","content":"x"}]}`},
		{"unknown role", `{"messages":[{"role":"pharmacist","content":"x"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := agenttest.NewProvider(agenttest.Answer("unused"))
			rr := postChat(newChatHandler(t, p), tc.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "VALIDATION_ERROR", gjson.Get(rr.Body.String(), "error.code").String())
			assert.Empty(t, p.Requests(), "no upstream call for an invalid request")
			assert.Empty(t, rr.Header().Get("X-Chat-ID"))
		})
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("unused"))
	big := `{"messages":[{"role":"user","content":"` + strings.Repeat("a", maxChatBodyBytes) + `"}]}`
	rr := postChat(newChatHandler(t, p), big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, p.Requests())
}

type brokenWriter struct {
	header http.Header
	writes int
}

func (w *brokenWriter) Header() http.Header { return w.header }
func (w *brokenWriter) WriteHeader(int)      {}
func (w *brokenWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errors.New("connection reset")
}

func TestChat_ClientGoneCancelsRun(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("one", "two", "three"))
	h := newChatHandler(t, p)

	w := &brokenWriter{header: http.Header{}}
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	h.Chat(w, req)

	assert.Equal(t, 1, w.writes, "writing stops at the first failure")
	assert.Equal(t, 1, p.Closed(), "upstream stream released")
}
