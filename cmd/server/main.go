package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/config"
	"pharmacy-agent/internal/database"
	"pharmacy-agent/internal/handlers"
	"pharmacy-agent/internal/middleware"
	"pharmacy-agent/internal/provider"
	"pharmacy-agent/internal/repository"
	"pharmacy-agent/internal/router"
	"pharmacy-agent/internal/tools"
	"pharmacy-agent/internal/websocket"
	"pharmacy-agent/migrations"
)

// eventBuffer lets the agent run a few events ahead of a slow client.
const eventBuffer = 32

func main() {
	log.Println("🚀 Starting Pharmacy Agent...")
	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Run Database Migrations ────
	applied, err := database.RunMigrations(ctx, pool, migrations.FS)
	if err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Printf("✓ Database migrations applied (%d new)", applied)

	// ──── Step 4: Initialize Redis Catalog Cache ────
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("• Redis not configured, catalog cache disabled")
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	prescriptionRepo := repository.NewPrescriptionRepo(pool)
	medicationRepo := repository.NewCachedMedicationRepo(
		repository.NewMedicationRepo(pool),
		redisClient,
		cfg.CatalogTTL,
		logger,
	)
	if applied > 0 {
		if err := medicationRepo.Invalidate(ctx); err != nil {
			log.Printf("• Catalog cache flush failed: %v", err)
		} else if redisClient != nil {
			log.Println("✓ Catalog cache flushed after migrations")
		}
	}

	// ──── Step 5: Register Pharmacy Tools ────
	registry, err := tools.NewPharmacy(medicationRepo, userRepo, prescriptionRepo).NewRegistry()
	if err != nil {
		log.Fatalf("✗ Tool registry failed: %v", err)
	}
	log.Printf("✓ Tools registered: %v", registry.Names())

	// ──── Step 6: Initialize LLM Provider ────
	llm, err := provider.New(ctx, cfg)
	if err != nil {
		log.Fatalf("✗ LLM provider initialization failed: %v", err)
	}
	defer llm.Close()
	log.Printf("✓ %s provider initialized (model %s)", cfg.LLMProvider, cfg.Model)

	settings, err := cfg.AgentSettings()
	if err != nil {
		log.Fatalf("✗ Agent settings invalid: %v", err)
	}
	controller := agent.NewController(llm, registry, settings, agent.WithLogger(logger), agent.WithBuffer(eventBuffer))

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(controller, logger)
	catalogHandler := handlers.NewCatalogHandler(userRepo, medicationRepo, logger)
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimitPerMin, time.Minute)
	defer chatLimiter.Stop()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(controller, cfg.FrontendURL)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(chatHandler, catalogHandler, wsHub, chatLimiter, cfg.FrontendURL)

	// WriteTimeout stays 0: chat responses stream for as long as the agent runs.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		wsHub.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("✓ Pharmacy Agent ready on http://localhost:%s", cfg.Port)
	log.Printf("  Chat: POST http://localhost:%s/chat", cfg.Port)
	log.Printf("  WS:   ws://localhost:%s/ws/chat", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done
}
