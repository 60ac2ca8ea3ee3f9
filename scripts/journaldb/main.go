package main

import (
	"context"
	"fmt"
	"os"

	"ticket-kiosk/internal/config"
	"ticket-kiosk/internal/database"
	"ticket-kiosk/internal/journal"

	"github.com/rs/zerolog"
)

// Connects to the journal database from the kiosk configuration and prints
// the redemption counts for the code given as the only argument.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: journaldb CODE")
		os.Exit(2)
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	counts, err := journal.NewPostgresJournal(pool, zerolog.Nop()).CountByOutcome(ctx, os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to database: %s\n", cfg.Database.Database)
	if len(counts) == 0 {
		fmt.Println("No events recorded for this code")
		return
	}
	for outcome, n := range counts {
		fmt.Printf("  - %s: %d\n", outcome, n)
	}
}
