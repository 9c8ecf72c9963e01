package respcache

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

// Redis shares cached responses between server instances. Bodies are
// stored zstd compressed.
type Redis struct {
	client redis.Cmdable
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

func NewRedis(client redis.Cmdable) (*Redis, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create response encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create response decoder: %w", err)
	}

	return &Redis{client: client, enc: enc, dec: dec}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	compressed, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached response: %w", err)
	}

	data, err := r.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	compressed := r.enc.EncodeAll(value, nil)
	if err := r.client.Set(ctx, keyPrefix+key, compressed, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}
