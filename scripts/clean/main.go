package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Purges revoked allocations and orphaned reviewer allocations older than
// the cutoff. Run out of band; the API never deletes workflow rows itself.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cutoff := os.Getenv("CLEAN_CUTOFF_DAYS")
	if cutoff == "" {
		cutoff = "90"
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

	// Step 1: Delete reviewer allocations whose submission is gone
	result, err := db.Exec(`
		DELETE FROM reviewer_allocations
		WHERE submission_id NOT IN (SELECT id FROM submissions)
	`)
	if err != nil {
		log.Fatalf("Failed to delete orphaned reviewer allocations: %v", err)
	}
	rows, _ := result.RowsAffected()
	log.Printf("Deleted %d orphaned reviewer allocations", rows)

	// Step 2: Delete revoked allocations older than the cutoff
	result, err = db.Exec(`
		DELETE FROM allocations
		WHERE status = 'revoked'
		  AND created_at < NOW() - ($1 || ' days')::interval
	`, cutoff)
	if err != nil {
		log.Fatalf("Failed to delete revoked allocations: %v", err)
	}
	rows, _ = result.RowsAffected()
	log.Printf("Deleted %d revoked allocations older than %s days", rows, cutoff)

	log.Println("Cleanup completed successfully")
}
