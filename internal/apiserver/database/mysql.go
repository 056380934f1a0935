package database

import (
	"fmt"

	"github.com/clearvault/clearvault/internal/common/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMySQL creates a Database backed by MySQL
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	gormDB, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(gormDB); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &store{db: gormDB}, nil
}
