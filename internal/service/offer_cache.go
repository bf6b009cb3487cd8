package service

import (
	"fmt"
	"sync"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

// OfferCache fronts the rendered-offer cache shared by the plan, settings and
// offer services. Every invalidation bumps the key's generation, and a fill
// computed under an older generation is dropped, so a read that raced a write
// cannot put stale offers back after the write invalidated them.
//
// Generations are tracked per process. Across replicas sharing Redis the TTL
// still bounds staleness.
type OfferCache struct {
	cache port.Cache[[]domain.Offer]

	mu   sync.Mutex
	gens map[string]uint64
}

// NewOfferCache wraps the backing cache.
func NewOfferCache(cache port.Cache[[]domain.Offer]) *OfferCache {
	return &OfferCache{cache: cache, gens: make(map[string]uint64)}
}

func offerCacheKey(tenantID string, tier domain.BalanceTier) string {
	return fmt.Sprintf("offers:%s:%s", tenantID, tier)
}

// lookup returns the cached offers and the generation a later fill must match.
// The generation is taken before the cache read.
func (c *OfferCache) lookup(key string) ([]domain.Offer, uint64, bool) {
	c.mu.Lock()
	gen := c.gens[key]
	c.mu.Unlock()

	offers, ok := c.cache.Get(key)
	return offers, gen, ok
}

// fill stores offers unless the key was invalidated since gen was read.
func (c *OfferCache) fill(key string, gen uint64, offers []domain.Offer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.cache.Set(key, offers)
	return true
}

func (c *OfferCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.cache.Delete(key)
}

// invalidateTenant drops the offers of every tier for a tenant.
func (c *OfferCache) invalidateTenant(tenantID string) {
	for _, tier := range domain.AllBalanceTiers() {
		c.invalidate(offerCacheKey(tenantID, tier))
	}
}
