package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/types"
)

// Request is everything the model endpoint needs for one call
type Request struct {
	Model     string
	System    string
	Turns     []types.Turn
	Tools     []types.ToolDescriptor
	MaxTokens int
}

// Provider is a model endpoint
type Provider interface {
	Chat(ctx context.Context, req Request) (*types.LLMResponse, error)
	Name() string
}

// New builds the configured provider wrapped in a circuit breaker
func New(cfg config.LLMConfig, logger *slog.Logger) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "anthropic", "":
		if cfg.APIKey == "" {
			return nil, &types.ConfigError{Field: "llm.api_key", Message: config.EnvAnthropicKey + " not found in environment or config"}
		}
		p = NewAnthropic(cfg, logger)
	case "openai":
		p = NewOpenAI(cfg, logger)
	default:
		return nil, &types.ConfigError{Field: "llm.provider", Message: fmt.Sprintf("unsupported provider %q", cfg.Provider)}
	}
	return NewBreaker(p, cfg.Breaker, logger), nil
}
