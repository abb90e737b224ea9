package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/placetap/internal/engine/enrich"
	"github.com/rendis/placetap/internal/engine/storage"
)

var (
	enrichDB          string
	enrichConcurrency int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Find contact emails for businesses that have a website",
	Long: `Visit the website of every business in the project that has no email yet,
collect published addresses from the homepage and contact pages, and store
the most confident one. Run scan with --details first so websites are known.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringVar(&enrichDB, "db", "", "path to project .db file (required)")
	enrichCmd.Flags().IntVarP(&enrichConcurrency, "concurrency", "c", 5, "websites fetched in parallel")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	if enrichDB == "" {
		return fmt.Errorf("--db is required")
	}

	store, err := storage.NewStore(enrichDB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	pending, err := store.WithWebsiteMissingEmail()
	if err != nil {
		return fmt.Errorf("listing businesses: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to enrich.")
		return nil
	}

	logPath := strings.TrimSuffix(enrichDB, ".db") + "_enrich.log"
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags)
	logger.Printf("ENRICH_START db=%s pending=%d concurrency=%d", enrichDB, len(pending), enrichConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Enriching %d businesses (log: %s)\n", len(pending), logPath)

	// Store writes are serialised; the enricher workers report concurrently.
	var mu sync.Mutex
	var stored, failed int
	start := time.Now()
	progress := enrich.EnrichAll(ctx, enrich.NewWebsiteEnricher(logger), pending, enrichConcurrency, logger, func(out enrich.Outcome) {
		if out.Best == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := store.UpdateEmails(out.Business.PlaceID, out.Best, enrich.Emails(out.Results)); err != nil {
			failed++
			logger.Printf("ERROR update_emails place=%s err=%v", out.Business.PlaceID, err)
			return
		}
		stored++
		fmt.Fprintf(os.Stderr, "\r[%d/%d] %d emails", stored+failed, len(pending), stored)
	})

	logger.Printf("ENRICH_DONE done=%d with_email=%d errors=%d stored=%d", progress.Done.Load(), progress.WithMail.Load(), progress.Errors.Load(), stored)
	fmt.Fprintf(os.Stderr, "\nEnriched %d/%d businesses with an email in %s (%d fetch errors)\n",
		stored, progress.Done.Load(), time.Since(start).Truncate(time.Second), progress.Errors.Load())
	return nil
}
