package db

import (
	"fmt"
	"os"

	"impaai/pkg/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		os.Getenv("DB_TIMEZONE"),
	)

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	database, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return database, nil
}

// RunMigrations runs database migrations using GORM
func RunMigrations(database *gorm.DB) error {
	log.Info().Msg("Running GORM AutoMigrate")

	if err := database.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn().Err(err).Msg("Could not create uuid-ossp extension")
	}

	if err := database.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run GORM AutoMigrate: %w", err)
	}

	if err := createCustomIndexes(database); err != nil {
		log.Warn().Err(err).Msg("Failed to create some custom indexes")
	}

	log.Info().Msg("GORM AutoMigrate completed")
	return nil
}

// createCustomIndexes creates indexes GORM does not handle automatically
func createCustomIndexes(database *gorm.DB) error {
	indexes := []string{
		// The instance name is the gateway addressing key and must be unique
		// across the whole system, soft-deleted rows excluded.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_instance_name_live ON connections(instance_name) WHERE deleted_at IS NULL`,

		// One default agent per user
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_user_default ON agents(user_id) WHERE is_default = true AND deleted_at IS NULL`,
	}

	for _, idx := range indexes {
		if err := database.Exec(idx).Error; err != nil {
			log.Warn().Err(err).Str("index", idx).Msg("Failed to create index")
		}
	}

	return nil
}
