package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"schedpoll/internal/repository"
	"schedpoll/internal/service"
	"schedpoll/pkg/database"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|sweep]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	ctx := context.Background()

	switch command {
	case "up":
		if err := execAll(ctx, dbURL, repository.PostgresSchema); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("All tables created successfully")

	case "drop":
		if err := execAll(ctx, dbURL, repository.PostgresDropSchema); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("All tables dropped successfully")

	case "sweep":
		retention, err := retentionFromEnv()
		if err != nil {
			log.Fatalf("Invalid POLL_RETENTION: %v", err)
		}
		removed, err := sweepPolls(ctx, dbURL, retention)
		if err != nil {
			log.Fatalf("Failed to sweep polls: %v", err)
		}
		fmt.Printf("Removed %d polls older than %s\n", removed, retention)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func execAll(ctx context.Context, dbURL string, queries []string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Executed: %s\n", summarize(query))
	}
	return nil
}

// sweepPolls runs the same retention sweep the server runs on its ticker
func sweepPolls(ctx context.Context, dbURL string, retention time.Duration) (int64, error) {
	db, err := database.NewPostgresDB(ctx, dbURL, database.DefaultPostgresOptions())
	if err != nil {
		return 0, err
	}
	defer db.Close()

	repo := repository.NewPollRepository(db)
	return repo.DeletePollsCreatedBefore(ctx, time.Now().Add(-retention))
}

func retentionFromEnv() (time.Duration, error) {
	value := os.Getenv("POLL_RETENTION")
	if value == "" {
		return service.DefaultPollRetention, nil
	}
	return time.ParseDuration(value)
}

func summarize(query string) string {
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
