package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/resilience"
)

// BreakerProvider wraps a Provider with a circuit breaker. When the
// upstream API is failing, requests are rejected immediately instead of
// burning the rate budget on timeouts; the matcher treats the rejection
// like any provider error and downgrades to the purpose-based fallback.
type BreakerProvider struct {
	inner   Provider
	breaker *resilience.CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerProvider wraps the provider with default breaker settings.
func NewBreakerProvider(inner Provider, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := resilience.DefaultCircuitBreakerConfig(inner.Model())
	cfg.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
		logger.Warn("provider circuit state changed",
			zap.String("model", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	return &BreakerProvider{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker(cfg),
		logger:  logger,
	}
}

// Complete implements Provider.
func (p *BreakerProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error) {
	var usage *Usage
	result, err := p.breaker.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		text, u, err := p.inner.Complete(ctx, systemPrompt, userPrompt)
		usage = u
		return text, err
	})
	if err != nil {
		return "", usage, err
	}
	return result.(string), usage, nil
}

// CompleteJSON implements Provider.
func (p *BreakerProvider) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, result interface{}) (*Usage, error) {
	return completeJSONWithRetry(ctx, p.Complete, systemPrompt, userPrompt, result)
}

// Model implements Provider.
func (p *BreakerProvider) Model() string {
	return p.inner.Model()
}

// State exposes the breaker state for monitoring.
func (p *BreakerProvider) State() resilience.CircuitBreakerState {
	return p.breaker.State()
}
