package db

import (
	"context"
	"fmt"

	"truthcert/internal/config"
	"truthcert/internal/observability/logger"
	"truthcert/migrations"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens postgres when POSTGRES_DSN is set. Without a DSN it returns a
// store with a nil DB and the caller falls back to in-memory storage.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		logger.Named("db").Warn("POSTGRES_DSN not set; using in-memory certificate store")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// Migrate applies the embedded schema. Every script is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errDBUnavailable
	}
	scripts, err := migrations.Ordered()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	for i, script := range scripts {
		if err := s.DB.WithContext(ctx).Exec(script).Error; err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
