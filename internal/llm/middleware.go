package llm

import (
	"context"
	"log/slog"

	"github.com/ppiankov/newsplaces/internal/cache"
	"github.com/ppiankov/newsplaces/internal/worker"
)

// Throttled waits on a rate limiter before every completion
type Throttled struct {
	Provider
	limiter *worker.Limiter
}

// NewThrottled wraps p with limiter, keyed by the provider name
func NewThrottled(p Provider, limiter *worker.Limiter) *Throttled {
	return &Throttled{Provider: p, limiter: limiter}
}

// Complete waits for rate limit clearance, then delegates
func (t *Throttled) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := t.limiter.Wait(ctx, t.Name()); err != nil {
		return nil, err
	}
	return t.Provider.Complete(ctx, req)
}

// Cached serves repeated requests from a completion store.
// Reruns over the same corpus replay finished documents without new API calls.
type Cached struct {
	Provider
	store  *cache.CompletionStore
	config Config // defaults the key is resolved against
	logger *slog.Logger
}

// NewCached wraps p with c. cfg must be the configuration p was built from.
func NewCached(p Provider, c cache.Cache, cfg Config, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{Provider: p, store: cache.NewCompletionStore(c), config: cfg, logger: logger}
}

// keyParts resolves the request against the configured defaults
func (c *Cached) keyParts(req CompletionRequest) cache.KeyParts {
	return cache.KeyParts{
		Provider:  c.Name(),
		Model:     resolveModel(req, c.config, ""),
		MaxTokens: ResolveMaxTokens(req, c.config),
		System:    req.System,
		Prompt:    req.Prompt,
	}
}

// Complete returns a stored completion when one exists, otherwise delegates.
// Only complete answers are stored: errors and truncated responses are not.
func (c *Cached) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	parts := c.keyParts(req)
	if hit, ok := c.store.Get(parts); ok {
		return &CompletionResponse{
			Text:       hit.Text,
			Model:      hit.ResponseModel,
			TokensUsed: hit.TokensUsed,
			Cached:     true,
		}, nil
	}

	resp, err := c.Provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		c.logger.Debug("llm.cache.skip_truncated", "provider", parts.Provider, "model", parts.Model)
		return resp, nil
	}

	err = c.store.Put(parts, cache.Completion{
		Text:          resp.Text,
		ResponseModel: resp.Model,
		TokensUsed:    resp.TokensUsed,
	})
	if err != nil {
		// a cache failure never fails the completion
		c.logger.Warn("llm.cache.store_failed", "provider", parts.Provider, "error", err)
	}
	return resp, nil
}

// Forget drops the stored completion for req, so a response that turned out
// unusable is asked for again on the next run
func (c *Cached) Forget(req CompletionRequest) {
	if err := c.store.Forget(c.keyParts(req)); err != nil {
		c.logger.Warn("llm.cache.forget_failed", "error", err)
	}
}
