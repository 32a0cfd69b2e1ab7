package kv

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is auto|redis|postgres|sqlite|memory.
	Backend     string
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
}

// Open builds the configured Store and reports which backend it resolved to.
// In auto mode the first configured of redis, postgres and sqlite wins, with
// the in-memory store as the last resort.
func Open(ctx context.Context, cfg Config) (Store, string, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" || backend == "auto" {
		switch {
		case strings.TrimSpace(cfg.RedisURL) != "":
			backend = "redis"
		case strings.TrimSpace(cfg.DatabaseURL) != "":
			backend = "postgres"
		case strings.TrimSpace(cfg.SQLitePath) != "":
			backend = "sqlite"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return nil, "", fmt.Errorf("STORE_BACKEND=redis but REDIS_URL is not set")
		}
		s, err := NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, "", err
		}
		return s, backend, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, "", fmt.Errorf("STORE_BACKEND=postgres but DATABASE_URL is not set")
		}
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return s, backend, nil
	case "sqlite":
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, "", fmt.Errorf("STORE_BACKEND=sqlite but SQLITE_PATH is not set")
		}
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return s, backend, nil
	case "memory":
		return NewMemoryStore(), backend, nil
	default:
		return nil, "", fmt.Errorf("unsupported store backend %q (expected auto|redis|postgres|sqlite|memory)", cfg.Backend)
	}
}
