package llm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// OpenAIClient provides access to OpenAI-compatible chat completion APIs.
// A custom base URL enables Azure OpenAI or local compatible servers.
type OpenAIClient struct {
	client openai.Client
	model  string

	rateLimiter *rate.Limiter
	cache       *Cache
	cacheTTL    time.Duration

	metrics *Metrics
}

// OpenAIConfig for the OpenAI client
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	RateLimitRPM int
	CacheTTL     time.Duration
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = 50
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1),
		cache:       NewCache(),
		cacheTTL:    cfg.CacheTTL,
		metrics:     &Metrics{},
	}, nil
}

// Complete sends a chat completion request
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error) {
	atomic.AddInt64(&c.metrics.TotalRequests, 1)

	cacheKey := c.cacheKey(systemPrompt, userPrompt)
	if cached, ok := c.cache.Get(cacheKey); ok {
		atomic.AddInt64(&c.metrics.CacheHits, 1)
		return string(cached), nil, nil
	}
	atomic.AddInt64(&c.metrics.CacheMisses, 1)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		atomic.AddInt64(&c.metrics.FailedRequests, 1)
		return "", nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		atomic.AddInt64(&c.metrics.FailedRequests, 1)
		return "", nil, fmt.Errorf("chat completion: %w", err)
	}

	usage := &Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	atomic.AddInt64(&c.metrics.SuccessRequests, 1)
	atomic.AddInt64(&c.metrics.TotalTokensIn, int64(usage.InputTokens))
	atomic.AddInt64(&c.metrics.TotalTokensOut, int64(usage.OutputTokens))
	atomic.AddInt64(&c.metrics.TotalLatencyMs, time.Since(start).Milliseconds())

	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("empty response")
	}
	text := resp.Choices[0].Message.Content

	c.cache.Set(cacheKey, []byte(text), c.cacheTTL)
	return text, usage, nil
}

// CompleteJSON sends a completion request and parses the JSON response
func (c *OpenAIClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, result interface{}) (*Usage, error) {
	return completeJSONWithRetry(ctx, c.Complete, systemPrompt, userPrompt, result)
}

func (c *OpenAIClient) cacheKey(systemPrompt, userPrompt string) string {
	return hashKey("openai/"+c.model, systemPrompt, userPrompt)
}

// GetMetrics returns current metrics
func (c *OpenAIClient) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:   atomic.LoadInt64(&c.metrics.TotalRequests),
		SuccessRequests: atomic.LoadInt64(&c.metrics.SuccessRequests),
		FailedRequests:  atomic.LoadInt64(&c.metrics.FailedRequests),
		TotalTokensIn:   atomic.LoadInt64(&c.metrics.TotalTokensIn),
		TotalTokensOut:  atomic.LoadInt64(&c.metrics.TotalTokensOut),
		TotalLatencyMs:  atomic.LoadInt64(&c.metrics.TotalLatencyMs),
		CacheHits:       atomic.LoadInt64(&c.metrics.CacheHits),
		CacheMisses:     atomic.LoadInt64(&c.metrics.CacheMisses),
	}
}

// Model returns the model being used
func (c *OpenAIClient) Model() string {
	return c.model
}
