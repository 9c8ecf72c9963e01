package holdings

import (
	"context"
	"fmt"
	"log/slog"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/esi"
	"holdings-server/internal/catalog/respcache"
	"holdings-server/internal/catalog/sde"
	"holdings-server/internal/shared/config"
	"holdings-server/internal/shared/database"
	sharedredis "holdings-server/internal/shared/redis"

	"golang.org/x/oauth2"
)

// Backends are the catalog stores a process opens once and shares between
// characters: the static data store, the ESI response cache and the client
// factory built on top of them.
type Backends struct {
	DB     *database.DB
	Redis  *sharedredis.Client
	Cache  respcache.Cache
	static catalog.Source
	esi    config.ESIConfig
	logger *slog.Logger
}

func OpenBackends(cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	logger = logger.With("component", "backends", "operation", "open")

	b := &Backends{esi: cfg.ESI, logger: logger}

	db, err := database.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to static data store: %w", err)
	}
	if db != nil {
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare static data store: %w", err)
		}
		b.DB = db
		b.static = sde.NewStore(db, logger)
	}

	rdb, err := sharedredis.Connect()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if rdb != nil {
		cache, err := respcache.NewRedis(rdb.Client)
		if err != nil {
			rdb.Close()
			b.Close()
			return nil, err
		}
		b.Redis = rdb
		b.Cache = cache
	} else {
		b.Cache = respcache.NewMemory(cfg.ESI.CacheTTL)
	}

	logger.Info("Catalog backends ready",
		"static_data", b.DB != nil,
		"redis_cache", b.Redis != nil)
	return b, nil
}

// Client builds a catalog client acting with tokens. A nil token source
// gives a client limited to public endpoints.
func (b *Backends) Client(tokens oauth2.TokenSource) catalog.Client {
	live := esi.NewClient(esi.OptionsFromConfig(b.esi), tokens, b.Cache, b.logger)
	return catalog.NewLayered(b.static, live, b.logger)
}

// Factory adapts Client to the manager
func (b *Backends) Factory() ClientFactory {
	return b.Client
}

// Checks lists health probes for the stores that are enabled
func (b *Backends) Checks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if b.DB != nil {
		checks["static_data"] = b.DB.PingContext
	}
	if b.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.Redis.Ping(ctx).Err() }
	}
	return checks
}

func (b *Backends) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Redis != nil {
		b.Redis.Close()
	}
}
