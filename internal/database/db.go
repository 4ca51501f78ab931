package database

import (
	"fmt"
	"os"

	"github.com/skillbridge/pulse/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the Postgres connection and runs migrations. The DSN comes
// from PULSE_DATABASE_DSN; an empty value falls back to the local dev setup.
func Connect() (*gorm.DB, error) {
	dsn := os.Getenv("PULSE_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=password dbname=pulse port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&models.PatternRecord{}, &models.DeliveredNotification{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
