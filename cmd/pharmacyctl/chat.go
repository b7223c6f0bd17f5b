package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v2"

	"pharmacy-agent/internal/models"
)

var (
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Ask the agent one question and stream the answer",
		ArgsUsage: "QUESTION",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Agent base URL",
				Value: "http://localhost:8000",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model override",
			},
		},
		Action: func(c *cli.Context) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return cli.Exit("a question is required", 2)
			}

			body, err := json.Marshal(models.ChatRequest{
				Messages: []models.ChatMessage{{Role: "user", Content: question}},
				Model:    c.String("model"),
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(c.Context, http.MethodPost, strings.TrimRight(c.String("url"), "/")+"/chat", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to reach agent: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				data, _ := io.ReadAll(resp.Body)
				msg := gjson.GetBytes(data, "error.message").String()
				if msg == "" {
					msg = strings.TrimSpace(string(data))
				}
				return cli.Exit(errorStyle.Render(fmt.Sprintf("%s: %s", resp.Status, msg)), 1)
			}

			fmt.Fprintln(c.App.Writer, statusStyle.Render("chat "+resp.Header.Get("X-Chat-ID")))
			return renderStream(c.App.Writer, resp.Body)
		},
	}
}

// renderStream prints SSE events from r until the done event. A stream that
// ends without one is reported as an error.
func renderStream(w io.Writer, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	rd := newRenderer(w)
	failed := false
	for sc.Scan() {
		payload, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		done, isErr := rd.event(gjson.Parse(payload))
		failed = failed || isErr
		if done {
			if failed {
				return cli.Exit("", 1)
			}
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream ended without a done event")
}

type pendingCall struct {
	name, args string
}

// renderer prints each tool call once. tool_call events carry the call's
// accumulated state, so only the latest one per id is kept until the call's
// result arrives or the stream ends.
type renderer struct {
	w       io.Writer
	pending map[string]*pendingCall
	order   []string
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, pending: make(map[string]*pendingCall)}
}

func (r *renderer) event(ev gjson.Result) (done, isErr bool) {
	switch ev.Get("type").String() {
	case "content":
		fmt.Fprint(r.w, ev.Get("content").String())
	case "tool_call":
		r.track(ev.Get("tool_call"))
	case "tool_result":
		id := ev.Get("tool_call_id").String()
		name := ev.Get("function_name").String()
		r.flush(id)
		if ev.Get("result.success").Bool() {
			fmt.Fprintln(r.w, okStyle.Render("← "+name+" ok"))
		} else {
			fmt.Fprintln(r.w, failStyle.Render(fmt.Sprintf("← %s failed: %s", name, ev.Get("result.error").String())))
		}
	case "error":
		r.flushAll()
		fmt.Fprintln(r.w, errorStyle.Render("error: "+ev.Get("error").String()))
		return false, true
	case "done":
		r.flushAll()
		fmt.Fprintln(r.w)
		return true, false
	}
	return false, false
}

func (r *renderer) track(call gjson.Result) {
	id := call.Get("id").String()
	p, ok := r.pending[id]
	if !ok {
		p = &pendingCall{}
		r.pending[id] = p
		r.order = append(r.order, id)
	}
	if name := call.Get("function.name").String(); name != "" {
		p.name = name
	}
	p.args = call.Get("function.arguments").String()
}

func (r *renderer) flush(id string) {
	p, ok := r.pending[id]
	if !ok {
		return
	}
	fmt.Fprintln(r.w, toolStyle.Render(fmt.Sprintf("→ %s %s", p.name, p.args)))
	delete(r.pending, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *renderer) flushAll() {
	for len(r.order) > 0 {
		r.flush(r.order[0])
	}
}
