package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/types"
)

const (
	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
	defaultBreakerInterval        = time.Minute
)

// BreakerProvider fails fast once the wrapped provider keeps failing
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[*types.LLMResponse]
}

// NewBreaker wraps inner with a circuit breaker. Zero settings fall back to defaults.
func NewBreaker(inner Provider, cfg config.BreakerConfig, logger *slog.Logger) *BreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*types.LLMResponse](gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the endpoint's health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

// Chat routes the call through the breaker
func (p *BreakerProvider) Chat(ctx context.Context, req Request) (*types.LLMResponse, error) {
	resp, err := p.breaker.Execute(func() (*types.LLMResponse, error) {
		return p.inner.Chat(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &types.LLMError{Provider: p.inner.Name(), Message: "circuit open", Err: err}
		}
		return nil, err
	}
	return resp, nil
}

func (p *BreakerProvider) Name() string { return p.inner.Name() }

// State reports the breaker state
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

var _ Provider = (*BreakerProvider)(nil)
