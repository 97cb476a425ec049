package postgres

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentalku/relayd/internal/domain"
)

// NewConnection initializes a new PostgreSQL connection using GORM
func NewConnection(url string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// RunMigrations creates the ledger and summary tables. The ledger is
// append-only; nothing here ever alters existing rows.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.UsageRecord{},
		&monthlySummaryModel{},
	)
}

// Close closes the underlying sql.DB connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
