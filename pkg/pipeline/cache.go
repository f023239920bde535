package pipeline

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/validation"
)

// Cache keeps loaded datasets in process memory for the session lifetime.
type Cache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

type cachedLoad struct {
	dataset *dataset.Dataset
	report  *validation.Report
}

// NewCache creates a cache holding up to maxEntries datasets, each for ttl.
func NewCache(maxEntries int, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 4
	}
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
		// Each entry costs 1 regardless of the dataset size.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("max_entries", maxEntries).
		Dur("ttl", ttl).
		Msg("Dataset cache initialized")

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) get(key string) (*cachedLoad, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	v, ok := c.client.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := v.(*cachedLoad)
	return entry, ok
}

func (c *Cache) set(key string, entry *cachedLoad) {
	if c == nil || c.client == nil {
		return
	}
	c.client.SetWithTTL(key, entry, 1, c.ttl)
	c.client.Wait()
}

// Invalidate drops every cached dataset so the next run fetches again.
func (c *Cache) Invalidate() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Clear()
}

// Close releases the cache.
func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
		log.Info().Msg("Dataset cache closed")
	}
}
