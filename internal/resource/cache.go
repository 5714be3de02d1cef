// Package resource provides a lazy-loading cache for expensive startup
// resources, with a façade that runs loads on the background task runner.
package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cfab/hwagent/internal/apperr"
)

// Loader produces the value for a named resource.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value    any
	loadedAt time.Time
}

// Cache memoizes named resources. Concurrent first loads of the same name
// are collapsed into one call; entries expire after the TTL and reload on
// next access.
type Cache struct {
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	loaders map[string]Loader
	entries map[string]entry

	group singleflight.Group
}

// NewCache creates a cache. A zero ttl means entries never expire.
func NewCache(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "resource_cache")),
		loaders: make(map[string]Loader),
		entries: make(map[string]entry),
	}
}

// Register installs the loader for a named resource, replacing any previous
// one and dropping its cached value.
func (c *Cache) Register(name string, loader Loader) {
	c.mu.Lock()
	c.loaders[name] = loader
	delete(c.entries, name)
	c.mu.Unlock()
}

// Get returns the cached value for name, loading it if absent or expired.
func (c *Cache) Get(ctx context.Context, name string) (any, error) {
	c.mu.RLock()
	loader, registered := c.loaders[name]
	e, cached := c.entries[name]
	c.mu.RUnlock()

	if !registered {
		return nil, apperr.New(apperr.CodeCache, "no loader registered for resource "+name)
	}
	if cached && !c.expired(e) {
		return e.value, nil
	}

	value, err, shared := c.group.Do(name, func() (any, error) {
		// Another goroutine may have finished loading while this one
		// waited on the group.
		c.mu.RLock()
		e, ok := c.entries[name]
		c.mu.RUnlock()
		if ok && !c.expired(e) {
			return e.value, nil
		}

		start := time.Now()
		v, err := loader(ctx)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeCache, "failed to load resource "+name)
		}

		c.mu.Lock()
		c.entries[name] = entry{value: v, loadedAt: time.Now()}
		c.mu.Unlock()

		c.logger.Debug("resource loaded",
			slog.String("resource", name),
			slog.Duration("elapsed", time.Since(start)))
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("resource load shared across callers",
			slog.String("resource", name))
	}
	return value, nil
}

// Invalidate drops the cached value for name so the next Get reloads it.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// InvalidateAll drops every cached value.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) expired(e entry) bool {
	return c.ttl > 0 && time.Since(e.loadedAt) > c.ttl
}
