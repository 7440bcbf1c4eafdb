package database

import (
	"fmt"

	"flockkeeper-backend/internal/config"
	"flockkeeper-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init opens the postgres connection and migrates the schema.
func Init(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(postgres.Open(cfg.DatabaseDSN))
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database connected, migration complete")
	return db, nil
}

// Open wraps gorm.Open with the settings every caller shares. Unique
// violations come back as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.FlockBatch{},
		&models.BatchEvent{},
		&models.DeathRecord{},
		&models.FlockEvent{},
		&models.Expense{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
