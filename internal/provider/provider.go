// Package provider selects and configures the upstream model API.
package provider

import (
	"context"
	"fmt"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/config"
	"pharmacy-agent/internal/provider/anthropic"
	"pharmacy-agent/internal/provider/gemini"
	"pharmacy-agent/internal/provider/openai"
)

// Client is a provider that holds resources until closed.
type Client interface {
	agent.Provider
	Close() error
}

type closer struct {
	*Limited
	close func() error
}

func (c closer) Close() error { return c.close() }

// New builds the provider named by cfg.LLMProvider, wrapped in the
// concurrency limit from cfg.ConcurrentReqs.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	var (
		p       agent.Provider
		closeFn = func() error { return nil }
	)

	switch cfg.LLMProvider {
	case "openai", "":
		p = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case "gemini":
		g, err := gemini.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		p, closeFn = g, g.Close
	case "anthropic":
		p = anthropic.New(cfg.AnthropicAPIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}

	return closer{Limited: Limit(p, cfg.ConcurrentReqs), close: closeFn}, nil
}
