package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Backfill for environments that predate the ledger unique indexes: dedupe
// any double payments (keep the oldest row per key), then build the indexes
// concurrently so the API can stay up.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Build connection string
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	// Step 1: Remove duplicate agent payments, keeping the oldest per key
	result, err := db.Exec(`
		DELETE FROM coin_payments
		WHERE allocation_id IS NOT NULL
		  AND id NOT IN (
			SELECT DISTINCT ON (user_id, allocation_id) id
			FROM coin_payments
			WHERE allocation_id IS NOT NULL
			ORDER BY user_id, allocation_id, created_at ASC
		)
	`)
	if err != nil {
		log.Fatalf("Failed to dedupe agent payments: %v", err)
	}
	rows, _ := result.RowsAffected()
	log.Printf("Removed %d duplicate agent payments", rows)

	// Step 2: Remove duplicate reviewer payments
	result, err = db.Exec(`
		DELETE FROM coin_payments
		WHERE reviewer_allocation_id IS NOT NULL
		  AND id NOT IN (
			SELECT DISTINCT ON (user_id, reviewer_allocation_id) id
			FROM coin_payments
			WHERE reviewer_allocation_id IS NOT NULL
			ORDER BY user_id, reviewer_allocation_id, created_at ASC
		)
	`)
	if err != nil {
		log.Fatalf("Failed to dedupe reviewer payments: %v", err)
	}
	rows, _ = result.RowsAffected()
	log.Printf("Removed %d duplicate reviewer payments", rows)

	// Step 3: Build the unique indexes
	indexes := []string{
		`CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS ux_payments_user_allocation
		 ON coin_payments (user_id, allocation_id)`,
		`CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS ux_payments_user_reviewer_allocation
		 ON coin_payments (user_id, reviewer_allocation_id)`,
		`CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS ux_allocations_task_user
		 ON allocations (task_id, user_id)`,
		`CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS ux_reviews_submission_reviewer
		 ON reviews (submission_id, reviewer_id)`,
	}

	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to create index: %v", err)
		}
	}

	log.Println("Migration completed successfully")
}
