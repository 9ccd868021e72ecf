package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Config selects and configures a Backend.
type Config struct {
	// Driver is one of "memory", "sqlite", "postgres" or "redis".
	Driver string `yaml:"driver" toml:"driver"`
	// DSN is the SQLite path, Postgres connection string or Redis address.
	DSN string `yaml:"dsn" toml:"dsn"`
	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix"`
}

// Open builds the Backend described by cfg. An empty driver selects memory.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite store: dsn (database path) is required")
		}
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres", "pgx":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store: dsn is required")
		}
		return OpenPostgres(ctx, cfg.DSN)
	case "redis":
		opts, err := redisOptions(cfg.DSN)
		if err != nil {
			return nil, err
		}
		s := NewRedisStore(redis.NewClient(opts), cfg.KeyPrefix)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func redisOptions(dsn string) (*redis.Options, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return &redis.Options{Addr: "localhost:6379"}, nil
	}
	if strings.Contains(dsn, "://") {
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: dsn}, nil
}
