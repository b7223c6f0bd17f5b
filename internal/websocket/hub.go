// Package websocket carries chat runs over a WebSocket: each text frame from
// the client is one chat request and every event of its run comes back as a
// text frame.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/models"
)

const (
	maxFrameBytes = 1 << 20
	writeWait     = 10 * time.Second
)

// Runner starts an agent run. *agent.Controller satisfies it.
type Runner interface {
	Run(ctx context.Context, req agent.Request) <-chan agent.Event
}

type session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	cancel context.CancelFunc
}

type Hub struct {
	runner   Runner
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	wg       sync.WaitGroup
}

// NewHub accepts upgrades from allowedOrigin, or from any origin when it is
// "*" or empty.
func NewHub(runner Runner, allowedOrigin string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		runner: runner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigin),
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*session),
	}
}

func checkOrigin(allowed string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowed == "" || allowed == "*" || origin == "" || origin == allowed
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	h.start(conn)
}

// start serves conn until it closes. It reports false, closing conn, when
// the hub has been shut down since the upgrade began.
func (h *Hub) start(conn *websocket.Conn) bool {
	ctx, cancel := context.WithCancel(h.ctx)
	s := &session{id: uuid.New(), conn: conn, cancel: cancel}
	if !h.register(s) {
		cancel()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		conn.Close()
		return false
	}

	go func() {
		defer h.wg.Done()
		defer h.unregister(s)
		h.serve(ctx, s)
	}()
	return true
}

// Sessions reports the number of open connections.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll cancels every in-flight run, closes every connection and waits
// for the session goroutines to finish. New upgrades are refused afterwards.
func (h *Hub) CloseAll() {
	h.cancel()

	h.mu.Lock()
	for _, s := range h.sessions {
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	}
	h.mu.Unlock()

	h.wg.Wait()
}

// register adds s and its goroutine to the hub unless CloseAll has begun.
// CloseAll cancels h.ctx before taking h.mu, so a session either lands here
// before CloseAll sweeps the map or is refused.
func (h *Hub) register(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		return false
	}
	h.sessions[s.id] = s
	h.wg.Add(1)
	log.Printf("WebSocket connected: session %s (total: %d)", s.id, len(h.sessions))
	return true
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s.cancel()
	s.conn.Close()
	delete(h.sessions, s.id)

	log.Printf("WebSocket disconnected: session %s", s.id)
}

// serve handles frames in order. The reader runs separately so a closed
// socket cancels the run in flight. Returning closes the connection, which
// also ends the reader.
func (h *Hub) serve(ctx context.Context, s *session) {
	frames := make(chan []byte)
	go func() {
		defer close(frames)
		defer s.cancel()
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for data := range frames {
		if err := h.handle(ctx, s, data); err != nil {
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, s *session, data []byte) error {
	var req models.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.reject(s, "Invalid request body")
	}
	messages, err := req.AgentMessages()
	if err != nil {
		return h.reject(s, err.Error())
	}

	chatID, err := gonanoid.New()
	if err != nil {
		return h.reject(s, "Failed to start chat")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := h.runner.Run(runCtx, agent.Request{ChatID: chatID, Model: req.Model, Messages: messages})
	for ev := range events {
		if err := h.write(s, ev); err != nil {
			log.Printf("WebSocket write failed: session %s chat %s: %v", s.id, chatID, err)
			cancel()
			for range events {
			}
			return err
		}
	}
	return nil
}

// reject answers an unusable frame the way a failed run ends.
func (h *Hub) reject(s *session, message string) error {
	if err := h.write(s, agent.ErrorEvent{Message: message}); err != nil {
		return err
	}
	return h.write(s, agent.DoneEvent{})
}

func (h *Hub) write(s *session, ev agent.Event) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(ev)
}
