package storage

import (
	"context"
	"fmt"

	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/database"
)

// New builds the repository selected by cfg.Driver.
func New(ctx context.Context, cfg config.DatabaseConfig) (Repository, error) {
	switch cfg.Driver {
	case "", "sqlite":
		db, err := database.NewDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStorage(db), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage: database.dsn is required for postgres")
		}
		return NewPostgresStorage(ctx, cfg.DSN)
	case "file":
		return NewFileStorage(cfg.Dir, cfg.SaveDelay)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}
