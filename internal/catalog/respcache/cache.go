// Package respcache stores raw ESI response bodies between requests.
package respcache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const keyPrefix = "esi:"
