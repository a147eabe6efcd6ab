// Package backend opens the transaction store selected by DATA_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/config"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
)

type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

var ErrUnknownType = errors.New("unknown backend type")

// Config holds what Open needs; fields unused by Type are ignored.
type Config struct {
	Type         Type
	SQLiteDBPath string
	DatabaseURL  string
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{
		Type:         Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		DatabaseURL:  cfg.DatabaseURL,
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Type {
	case Memory:
		return nil
	case SQLite:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs SQLITE_DB_PATH")
		}
		return nil
	case Postgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres backend needs DATABASE_URL")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
}

// Backend is an open store. Close releases its connections.
type Backend struct {
	Type  Type
	Store storage.Store
}

func (b *Backend) Close() error {
	return b.Store.Close()
}

type opener func(ctx context.Context, cfg Config) (storage.Store, error)

var openers = map[Type]opener{
	Memory: func(context.Context, Config) (storage.Store, error) {
		return memory.New(), nil
	},
	SQLite: func(_ context.Context, cfg Config) (storage.Store, error) {
		return storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	},
	Postgres: func(ctx context.Context, cfg Config) (storage.Store, error) {
		return postgres.NewRepository(ctx, cfg.DatabaseURL)
	},
}

// Open validates cfg and connects to the configured store, applying schema
// migrations for the SQL backends.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openers[cfg.Type](ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}

	switch cfg.Type {
	case Memory:
		logger.Warn("Using memory backend, data will not survive a restart", "backend", cfg.Type)
	case SQLite:
		logger.Info("Opened store", "backend", cfg.Type, "db_path", cfg.SQLiteDBPath)
	default:
		logger.Info("Opened store", "backend", cfg.Type)
	}
	return &Backend{Type: cfg.Type, Store: store}, nil
}
