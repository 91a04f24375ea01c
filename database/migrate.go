package database

import (
	"fmt"
	"time"

	"huddle_backend/internal/config"
	"huddle_backend/internal/logger"
	"huddle_backend/internal/models/chat"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres pool described by cfg and checks it is reachable.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:  logger.NewGormLogger(cfg.Server.Env),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get *sql.DB from GORM: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the chat tables and their unique indexes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&chat.Chat{},
		&chat.Participant{},
		&chat.Message{},
		&chat.Reaction{},
		&chat.ReadReceipt{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logger.Info("AutoMigrate completed")
	return nil
}
