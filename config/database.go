package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kendall-kelly/helphub-api/models"
)

// sqlitePrefix selects the sqlite driver; the rest of the URL is the DSN
const sqlitePrefix = "sqlite://"

var DB *gorm.DB

// ConnectDatabase opens the database named by cfg.DatabaseURL. URLs starting
// with sqlite:// use sqlite, everything else is handed to postgres.
func ConnectDatabase(cfg *Config, log zerolog.Logger) error {
	dialector, driver := Dialector(cfg.DatabaseURL)

	gormConfig := &gorm.Config{}
	if cfg.IsProduction() {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite allows one writer; a single connection also keeps :memory: databases shared
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	DB = db
	log.Info().Str("driver", driver).Msg("Database connection established")
	return nil
}

// Dialector picks the gorm driver for a database URL
func Dialector(databaseURL string) (gorm.Dialector, string) {
	if strings.HasPrefix(databaseURL, sqlitePrefix) {
		return sqlite.Open(strings.TrimPrefix(databaseURL, sqlitePrefix)), "sqlite"
	}
	return postgres.Open(databaseURL), "postgres"
}

// Migrate creates or updates the tables for every persisted model
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Volunteer{}, &models.Request{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
