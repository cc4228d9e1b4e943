package repositories

import (
	"context"
	"fmt"
	"io"

	"github.com/desertthunder/orbitune/internal/shared"
	goredis "github.com/redis/go-redis/v9"
)

// Repository persists string values by key.
//
// Load returns only the keys that exist. Save and Remove apply to all given keys atomically.
type Repository interface {
	Load(ctx context.Context, keys ...string) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, keys ...string) error
	io.Closer
}

var (
	_ Repository = (*StateRepository)(nil)
	_ Repository = (*RedisStateRepository)(nil)
	_ Repository = (*MemoryStateRepository)(nil)
)

// Open builds the repository selected by the storage config, running migrations for SQLite.
func Open(ctx context.Context, cfg shared.StorageConfig) (Repository, error) {
	switch cfg.Driver {
	case "sqlite", "":
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
		}
		return NewStateRepository(db), nil
	case "redis":
		rc := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, fmt.Errorf("%w: redis ping: %v", shared.ErrStorage, err)
		}
		return NewRedisStateRepository(rc, cfg.RedisPrefix), nil
	case "memory":
		return NewMemoryStateRepository(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}
