package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"holdings-server/internal/shared/config"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Client is the shared connection behind the ESI response cache
type Client struct {
	*redis.Client
}

// Options turns the redis section of the configuration into client options.
// A URL wins over host and port.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}, nil
}

// Connect opens the configured Redis. It returns a nil client when Redis is
// disabled; callers then cache in memory.
func Connect() (*Client, error) {
	cfg := config.GlobalConfig.Redis
	logger := slog.With("component", "redis", "operation", "connect")

	if !cfg.Enabled {
		logger.Info("Redis disabled, ESI responses will be cached in memory")
		return nil, nil
	}

	opts, err := Options(cfg)
	if err != nil {
		logger.Error("Invalid Redis configuration", "error", err)
		return nil, err
	}
	logger.Debug("Connecting to Redis", "addr", opts.Addr, "db", opts.DB)

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		logger.Error("Failed to ping Redis", "error", err, "addr", opts.Addr)
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Redis connection established", "addr", opts.Addr)
	return &Client{rdb}, nil
}

func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
