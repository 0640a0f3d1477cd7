package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"athle-results-sync/internal/config"
	"athle-results-sync/internal/database"
	"athle-results-sync/internal/discipline"
)

func main() {
	// Disable structured logging for CLI
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" {
		printUsage()
		return
	}
	if command == "groups" {
		handleGroups()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch command {
	case "athletes":
		handleAthletes(db, cfg.StaleAfter())
	case "results":
		handleResults(db)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`athle-results-sync CLI - Local Store Inspection

Usage:
  cli <command> [options]

Commands:
  athletes             List tracked athletes with their staleness
  results <seq> [group]  Print an athlete's results, optionally filtered
                       to one event group
  groups               List the event groups and their canonical events
  help                 Show this help message

Examples:
  cli athletes
  cli results 1234567
  cli results WA_14659502 800m
  cli groups

Environment Variables Required:
  ATHLE_DATABASE_PATH  - Path to the SQLite database
  ATHLE_WA_API_KEY     - World Athletics API key`)
}

func handleAthletes(db *database.DB, staleAfter time.Duration) {
	athletes, err := db.ListAthletes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list athletes: %v\n", err)
		os.Exit(1)
	}

	if len(athletes) == 0 {
		fmt.Println("No athletes tracked.")
		return
	}

	cutoff := time.Now().Add(-staleAfter)
	fmt.Printf("Tracking %d athlete(s):\n\n", len(athletes))
	for _, a := range athletes {
		status := "never synchronized"
		if a.LastUpdate != nil {
			status = fmt.Sprintf("synchronized %s", a.LastUpdate.Format("2006-01-02 15:04"))
			if a.LastUpdate.Before(cutoff) {
				status += " (stale)"
			}
		}

		n, err := db.CountResults(a.Seq)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to count results: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%-14s %-30s %4d result(s)  %s\n", a.Seq, a.Name, n, status)
	}
}

func handleResults(db *database.DB) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: Athlete seq required")
		fmt.Fprintln(os.Stderr, "Usage: cli results <seq> [group]")
		os.Exit(1)
	}
	seq := os.Args[2]

	var events []string
	if len(os.Args) > 3 {
		group := os.Args[3]
		events = discipline.Groups[group]
		if events == nil {
			fmt.Fprintf(os.Stderr, "Error: Unknown event group '%s' (see: cli groups)\n", group)
			os.Exit(1)
		}
	}

	athlete, err := db.GetAthlete(seq)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to get athlete: %v\n", err)
		os.Exit(1)
	}
	if athlete == nil {
		fmt.Fprintf(os.Stderr, "Error: Athlete %s not found\n", seq)
		os.Exit(1)
	}

	results, err := db.ResultsForAthlete(seq, events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to query results: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s (%s)\n\n", athlete.Name, athlete.Seq)
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	for _, r := range results {
		seconds := ""
		if r.Seconds != nil {
			seconds = fmt.Sprintf("(%.2fs)", *r.Seconds)
		}
		fmt.Printf("%s  %-22s %-10s %-12s %-10s %s\n",
			r.Date.Format("2006-01-02"), r.Event, r.Perf, seconds, r.Place, r.Venue)
	}
}

func handleGroups() {
	names := make([]string, 0, len(discipline.Groups))
	for name := range discipline.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%-14s %s\n", name, strings.Join(discipline.Groups[name], ", "))
	}
}
