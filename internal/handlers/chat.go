package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/models"
)

const maxChatBodyBytes = 1 << 20

// ChatRunner starts an agent run. *agent.Controller satisfies it.
type ChatRunner interface {
	Run(ctx context.Context, req agent.Request) <-chan agent.Event
}

type ChatHandler struct {
	runner ChatRunner
	logger *slog.Logger
}

func NewChatHandler(runner ChatRunner, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{runner: runner, logger: logger}
}

// Chat streams one agent run as Server-Sent Events. Validation failures are
// answered with a JSON error before the stream starts; after that every
// failure is reported in-band by the run itself.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("VALIDATION_ERROR", "Request body too large", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	messages, err := req.AgentMessages()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	chatID, err := gonanoid.New()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start chat", r))
		return
	}
	w.Header().Set("X-Chat-ID", chatID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sse := newSSEWriter(w)
	w.WriteHeader(http.StatusOK)

	events := h.runner.Run(ctx, agent.Request{ChatID: chatID, Model: req.Model, Messages: messages})
	for ev := range events {
		if err := sse.WriteEvent(ev); err != nil {
			h.logger.Warn("chat client went away", "chat_id", chatID, "error", err)
			cancel()
			for range events {
			}
			return
		}
	}
}
