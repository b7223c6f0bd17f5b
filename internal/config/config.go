package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pharmacy-agent/internal/agent"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis (optional, catalog cache only)
	RedisURL   string
	CatalogTTL time.Duration

	// LLM
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	AnthropicAPIKey string
	Model           string
	ConcurrentReqs  int

	// Agent
	MaxRounds        int
	ToolsEveryRound  bool
	SystemPromptFile string

	// HTTP
	ChatRateLimitPerMin int
	FrontendURL         string

	LogLevel string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8000"),
		Env:                 getEnvOrDefault("ENV", "development"),
		DatabaseURL:         mustGetEnv("DATABASE_URL"),
		RedisURL:            getEnvOrDefault("REDIS_URL", ""),
		CatalogTTL:          time.Duration(getEnvAsIntOrDefault("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		LLMProvider:         strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		OpenAIBaseURL:       getEnvOrDefault("OPENAI_BASE_URL", ""),
		Model:               getEnvOrDefault("LLM_MODEL", "gpt-5-mini"),
		ConcurrentReqs:      getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 16),
		MaxRounds:           getEnvAsIntOrDefault("AGENT_MAX_ROUNDS", agent.DefaultMaxRounds),
		ToolsEveryRound:     getEnvAsBoolOrDefault("AGENT_TOOLS_EVERY_ROUND", false),
		SystemPromptFile:    getEnvOrDefault("SYSTEM_PROMPT_FILE", ""),
		ChatRateLimitPerMin: getEnvAsIntOrDefault("CHAT_RATE_LIMIT_PER_MIN", 30),
		FrontendURL:         getEnvOrDefault("FRONTEND_URL", "*"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Fail fast if the chosen provider has no key
	switch cfg.LLMProvider {
	case "gemini":
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	case "anthropic":
		cfg.AnthropicAPIKey = mustGetEnv("ANTHROPIC_API_KEY")
	default:
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
	}

	return cfg
}

// AgentSettings builds the controller configuration. The system prompt comes
// from SYSTEM_PROMPT_FILE when set, the built-in prompt otherwise.
func (c *Config) AgentSettings() (agent.Settings, error) {
	prompt, err := LoadSystemPrompt(c.SystemPromptFile)
	if err != nil {
		return agent.Settings{}, err
	}
	return agent.Settings{
		Model:           c.Model,
		SystemPrompt:    prompt,
		MaxRounds:       c.MaxRounds,
		ToolsEveryRound: c.ToolsEveryRound,
	}, nil
}

// NewLogger returns a text slog logger at the named level (debug, info,
// warn, error). Unknown names fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
