package db

import (
	"fmt"
	"log"

	"bountyd/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

// NewStore connects to postgres when a DSN is configured. Without one the
// store runs in no-db mode; repositories guard against the nil handle and
// callers fall back to the in-memory repository.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&TaskModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{DB: gdb}, nil
}
