package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Settings is the single row of link dialog defaults.
type Settings struct {
	ID               uint `gorm:"primaryKey"`
	Host             string
	Port             string
	ConnectTimeoutMs int64
	UpdatedAt        int64 `gorm:"autoUpdateTime"`
}

// Attempt is one resolved link attempt, kept for diagnostics.
type Attempt struct {
	ID        uint   `gorm:"primaryKey"`
	AttemptID string `gorm:"uniqueIndex;not null"`
	Role      string `gorm:"not null"`
	Host      string
	Port      int
	State     string `gorm:"index;not null"`
	ErrorKind string
	Error     string
	CreatedAt int64 `gorm:"index"`
}

func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent across queries.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := db.AutoMigrate(&Settings{}, &Attempt{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
