package geocode

import (
	"context"

	"go.uber.org/zap"
)

// CascadeClient tries providers in order until one matches, consulting
// an optional cache first. Non-matches are cached too, so repeated bad
// queries stay cheap.
type CascadeClient struct {
	providers []Provider
	cache     Cache
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCache attaches a persistent result cache.
func WithCache(cache Cache) CascadeOption {
	return func(c *CascadeClient) { c.cache = cache }
}

// NewCascadeClient creates a client that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{providers: providers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves a query through the cascade. A provider error moves
// on to the next provider; only a matched result short-circuits. When
// every provider misses, the returned result carries Matched=false.
func (c *CascadeClient) Geocode(ctx context.Context, query string) (*Result, error) {
	key := CacheKey(query)

	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return cached, nil
		}
	}

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, query)
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			c.store(ctx, key, result)
			return result, nil
		}
	}

	miss := &Result{Matched: false, Source: "cascade"}
	c.store(ctx, key, miss)
	return miss, nil
}

func (c *CascadeClient) store(ctx context.Context, key string, result *Result) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(ctx, key, result); err != nil {
		zap.L().Debug("geocode: cache store failed", zap.Error(err))
	}
}
