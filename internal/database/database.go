package database

import (
	"fmt"

	"github.com/sandeepkv93/alumni-portal-client/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the sql backend selected by STORAGE_DRIVER.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
	case config.StorageDriverSQLite:
		return gorm.Open(sqlite.Open(cfg.DatabaseURL), gcfg)
	default:
		return nil, fmt.Errorf("storage driver %q is not a sql driver", cfg.StorageDriver)
	}
}
