package websocket

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/agent/agenttest"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	goleak.VerifyTestMain(m)
}

func newTestHub(t *testing.T, p agent.Provider) (*Hub, string) {
	t.Helper()
	reg, err := agent.NewRegistry()
	require.NoError(t, err)
	c := agent.NewController(p, reg, agent.Settings{Model: "gpt-5-mini", SystemPrompt: "pharmacy"})

	hub := NewHub(c, "*")
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilDone collects frame types until a done frame arrives.
func readUntilDone(t *testing.T, conn *websocket.Conn) []gjson.Result {
	t.Helper()
	var frames []gjson.Result
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		frame := gjson.ParseBytes(data)
		frames = append(frames, frame)
		if frame.Get("type").String() == "done" {
			return frames
		}
	}
}

func frameTypes(frames []gjson.Result) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Get("type").String()
	}
	return out
}

func TestHub_TurnsOverOneSocket(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("Hello"), agenttest.Answer("Again"))
	_, url := newTestHub(t, p)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messages":[{"role":"user","content":"hi"}]}`)))
	frames := readUntilDone(t, conn)
	assert.Equal(t, []string{"content", "done"}, frameTypes(frames))
	assert.Equal(t, "Hello", frames[0].Get("content").String())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"Hello"},{"role":"user","content":"again"}],"model":"gpt-4o"}`)))
	frames = readUntilDone(t, conn)
	assert.Equal(t, "Again", frames[0].Get("content").String())

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "gpt-4o", reqs[1].Model)
}

func TestHub_InvalidFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not JSON", `hello`},
		{"empty history", `{"messages":[]}`},
		{"tool role", `{"messages":[{"role":"tool","content":"x"}]}`},
	}

	p := agenttest.NewProvider(agenttest.Answer("unused"))
	_, url := newTestHub(t, p)
	conn := dial(t, url)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.frame)))
			frames := readUntilDone(t, conn)
			require.Equal(t, []string{"error", "done"}, frameTypes(frames))
			assert.NotEmpty(t, frames[0].Get("error").String())
		})
	}
	assert.Empty(t, p.Requests())
}

func TestHub_ClosingSocketCancelsRun(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("partial"))
	p.Hang = true
	hub, url := newTestHub(t, p)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messages":[{"role":"user","content":"hi"}]}`)))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "partial", gjson.GetBytes(data, "content").String())

	conn.Close()
	require.Eventually(t, func() bool { return p.Closed() == 1 && hub.Sessions() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_CloseAllDisconnectsClients(t *testing.T) {
	p := agenttest.NewProvider(agenttest.Answer("partial"))
	p.Hang = true
	hub, url := newTestHub(t, p)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messages":[{"role":"user","content":"hi"}]}`)))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	hub.CloseAll()
	assert.Equal(t, 0, hub.Sessions())
	assert.Equal(t, 1, p.Closed())

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, checkOrigin("*")(req))
	assert.False(t, checkOrigin("https://pharmacy.example")(req))

	req.Header.Set("Origin", "https://pharmacy.example")
	assert.True(t, checkOrigin("https://pharmacy.example")(req))
}

func TestHub_ShutdownDuringUpgradeClosesLateSession(t *testing.T) {
	hub := NewHub(agent.NewController(agenttest.NewProvider(), nil, agent.Settings{}), "*")

	started := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			started <- true
			return
		}
		hub.CloseAll()
		started <- hub.start(conn)
	}))
	t.Cleanup(srv.Close)

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	assert.False(t, <-started, "a session arriving after shutdown is refused")
	assert.Equal(t, 0, hub.Sessions())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	hub.CloseAll()
}
