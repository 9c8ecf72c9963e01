package respcache

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const cleanupInterval = 10 * time.Minute

// Memory keeps responses in process memory
type Memory struct {
	cache *cache.Cache
}

func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		cache: cache.New(defaultTTL, cleanupInterval),
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, found := m.cache.Get(keyPrefix + key)
	if !found {
		return nil, false, nil
	}
	data, ok := obj.([]byte)
	return data, ok, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Set(keyPrefix+key, value, ttl)
	return nil
}

func (m *Memory) Len() int {
	return m.cache.ItemCount()
}
