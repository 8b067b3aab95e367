// internal/compiler/cache.go
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Compilation cache.
 *
 * Compiled policies are immutable after construction, so the cache hands the
 * same *CompiledPolicy to unlimited concurrent readers. Writes happen only on
 * miss (compile then publish under the write lock) and on invalidation.
 *
 * Cache keys are (tenant, version): policy versions are immutable documents,
 * so a cached entry never goes stale. Invalidation exists for the version
 * override and hot-reload paths where a source replaces a version in place.
 */

// DefinitionSource loads raw policy definitions for the cache to compile.
// A nil definition with nil error means the version does not exist.
type DefinitionSource interface {
	LoadDefinition(ctx context.Context, tenantID, versionID string) (*types.PolicyDefinition, error)
}

// Cache is a concurrency-safe compile-once policy cache.
type Cache struct {
	source DefinitionSource
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*policy.CompiledPolicy
}

// NewCache wires a cache over a definition source.
func NewCache(source DefinitionSource, logger *slog.Logger) (*Cache, error) {
	if source == nil {
		return nil, fmt.Errorf("definition source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source:  source,
		logger:  logger,
		entries: make(map[string]*policy.CompiledPolicy),
	}, nil
}

// GetOrCompile returns the compiled policy for a version, compiling and
// caching on miss. skipCache forces a fresh load and compile, replacing any
// cached entry. Returns (nil, nil) when the version does not exist.
func (c *Cache) GetOrCompile(ctx context.Context, tenantID, versionID string, skipCache bool) (*policy.CompiledPolicy, error) {
	key := cacheKey(tenantID, versionID)

	if !skipCache {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	def, err := c.source.LoadDefinition(ctx, tenantID, versionID)
	if err != nil {
		return nil, fmt.Errorf("loading policy version %s: %w", versionID, err)
	}
	if def == nil {
		return nil, nil
	}

	compiled, err := Compile(def)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = compiled
	c.mu.Unlock()

	c.logger.Debug("compiled policy version",
		"tenant", tenantID,
		"policy", compiled.PolicyID,
		"version", versionID,
		"rules", compiled.RuleCount,
	)
	return compiled, nil
}

// Invalidate drops one cached version.
func (c *Cache) Invalidate(tenantID, versionID string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(tenantID, versionID))
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry. Used on bundle reload.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*policy.CompiledPolicy)
	c.mu.Unlock()
}

// Len reports the number of cached versions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(tenantID, versionID string) string {
	return tenantID + "/" + versionID
}
