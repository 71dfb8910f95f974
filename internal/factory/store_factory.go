package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/store"
	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/core"
)

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a store based on the configuration
func (f *StoreFactory) CreateStore() (core.Store, error) {
	sc, err := f.cfg.GetStore()
	if err != nil {
		return nil, err
	}

	switch sc.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, sc.CleanupFrequency, sc.Retention), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sc.SQLitePath, f.logger, sc.CleanupFrequency, sc.Retention)
	case "mysql":
		return store.NewMySQLStore(sc.MySQLDSN, f.logger, sc.CleanupFrequency, sc.Retention)
	case "postgres":
		return store.NewPostgresStore(sc.PostgresDSN, f.logger, sc.CleanupFrequency, sc.Retention)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}
