package dispatch

import (
	"sync"

	"nekoscout/internal/provider"
)

// cacheKey identifies one provider instance.
type cacheKey struct {
	provider string
	params   provider.Params
}

// InstanceCache holds provider instances for the life of the process.
// There is no eviction.
//
// Construction runs outside the lock, so two concurrent misses on the same
// key may both build an instance. Only the first one stored is kept and both
// callers receive it; the other is discarded.
type InstanceCache struct {
	mu        sync.Mutex
	instances map[cacheKey]provider.Provider
}

// NewInstanceCache creates an empty cache.
func NewInstanceCache() *InstanceCache {
	return &InstanceCache{
		instances: make(map[cacheKey]provider.Provider),
	}
}

// GetOrCreate returns the cached instance for (name, params), calling build on
// a miss. A build error is returned and nothing is cached.
func (c *InstanceCache) GetOrCreate(name string, params provider.Params, build func() (provider.Provider, error)) (provider.Provider, error) {
	key := cacheKey{provider: name, params: params}

	c.mu.Lock()
	p, ok := c.instances[key]
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	built, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.instances[key]; ok {
		return existing, nil
	}
	c.instances[key] = built
	return built, nil
}

// Len returns the number of cached instances.
func (c *InstanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}
