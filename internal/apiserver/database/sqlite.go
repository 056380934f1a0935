package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/clearvault/clearvault/internal/common/config"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// NewSQLite creates a Database backed by SQLite
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	if cfg.DBName != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBName), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormDB, err := gorm.Open(sqlite.Open(cfg.DBName), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(gormDB); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &store{db: gormDB}, nil
}
