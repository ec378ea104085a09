package main

import (
	"log"

	"crowdsource-backend/internal/config"
	"crowdsource-backend/internal/database"
	"crowdsource-backend/internal/models"
)

// Applies the schema to a fresh environment and verifies the unique indexes
// the workflow's idempotency guarantees rest on.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// The exactly-once and no-duplicate guarantees are enforced by these
	// indexes; refuse to finish if any is missing.
	db := database.GetDB()
	checks := []struct {
		model interface{}
		index string
	}{
		{&models.Allocation{}, "ux_allocations_task_user"},
		{&models.Task{}, "ux_tasks_project_prompt"},
		{&models.Review{}, "ux_reviews_submission_reviewer"},
		{&models.CoinPayment{}, "ux_payments_user_allocation"},
		{&models.CoinPayment{}, "ux_payments_user_reviewer_allocation"},
		{&models.ProjectReviewer{}, "ux_project_reviewers_pair"},
	}

	for _, check := range checks {
		if !db.Migrator().HasIndex(check.model, check.index) {
			log.Fatalf("Missing unique index %s on %T", check.index, check.model)
		}
	}

	log.Println("Migration completed: schema and unique indexes verified")
}
