package database

import (
	"fmt"
	"log"

	"crowdsource-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	// Migrate identity models first
	identityModels := []interface{}{
		&models.User{},
		&models.AuditLog{},
	}

	for _, model := range identityModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate project models
	projectModels := []interface{}{
		&models.Project{},
		&models.ProjectReviewer{},
		&models.Prompt{},
		&models.Task{},
	}

	for _, model := range projectModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate workflow models
	workflowModels := []interface{}{
		&models.Allocation{},
		&models.Submission{},
		&models.ReviewerAllocation{},
		&models.Review{},
	}

	for _, model := range workflowModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate ledger and stats models
	ledgerModels := []interface{}{
		&models.CoinPayment{},
		&models.PlatformSnapshot{},
	}

	for _, model := range ledgerModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
