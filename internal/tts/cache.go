package tts

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	engine   string
	language string
	text     string
}

// CachedEngine memoizes successful syntheses of another engine. Repeated
// chunks ("Chapter 1.", boilerplate footers) are fetched once per process.
type CachedEngine struct {
	next   Engine
	cache  *lru.Cache[cacheKey, *AudioResult]
	logger *slog.Logger
}

// NewCachedEngine wraps next with an LRU cache of size entries.
func NewCachedEngine(next Engine, size int, logger *slog.Logger) (*CachedEngine, error) {
	c, err := lru.New[cacheKey, *AudioResult](size)
	if err != nil {
		return nil, err
	}
	return &CachedEngine{next: next, cache: c, logger: logger}, nil
}

// Name returns the wrapped engine's identifier.
func (c *CachedEngine) Name() string {
	return c.next.Name()
}

// Synthesize returns a cached result or delegates to the wrapped engine.
// Failures are never cached.
func (c *CachedEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	key := cacheKey{engine: c.next.Name(), language: req.Language, text: req.Text}
	if res, ok := c.cache.Get(key); ok {
		c.logger.Debug("tts cache hit", "engine", key.engine, "chars", len(req.Text))
		return res, nil
	}

	res, err := c.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, res)
	return res, nil
}

// Len returns the number of cached results.
func (c *CachedEngine) Len() int {
	return c.cache.Len()
}
