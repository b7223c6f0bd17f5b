package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pharmacy-agent/internal/handlers"
	"pharmacy-agent/internal/middleware"
	"pharmacy-agent/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	catalogHandler *handlers.CatalogHandler,
	wsHub *websocket.Hub,
	chatLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(corsOptions(frontendURL)))

	r.Get("/", catalogHandler.Root)
	r.Get("/health", catalogHandler.Health)
	r.Get("/users", catalogHandler.ListUsers)
	r.Get("/medications", catalogHandler.ListMedications)

	// ──── Chat ────
	r.Group(func(r chi.Router) {
		r.Use(chatLimiter.Middleware)
		r.Post("/chat", chatHandler.Chat)
		r.Get("/ws/chat", wsHub.HandleWebSocket)
	})

	return r
}

func corsOptions(frontendURL string) cors.Options {
	origins := []string{frontendURL}
	if frontendURL == "" {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Chat-ID", "X-Request-ID"},
		MaxAge:         300,
	}
}
