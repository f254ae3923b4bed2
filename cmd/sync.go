/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/

// The sync command runs one synchronization pass against Pinboard: it lists
// bookmarks changed since the persisted watermark, fetches content for new
// or changed ones through a bounded worker pool, stores the bytes in the
// content-addressed attic, and commits links plus the new watermark.
//
// Example usage:
//
//	hbt sync --auth-token user:TOKEN
//	hbt sync --workers 8 --timeout 20s --max-bytes 5242880
//	hbt sync --render --chrome-path /usr/bin/chromium   # JS-heavy pages
//	hbt sync --refetch --full                           # re-archive everything
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/henrytill/hbt/internal/core"
	"github.com/henrytill/hbt/internal/core/db"
	"github.com/henrytill/hbt/internal/fetch"
	"github.com/henrytill/hbt/internal/pinboard"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull bookmark changes and archive their content",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSync(cmd); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
	},
}

func runSync(cmd *cobra.Command) error {
	database, err := initDB(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	store, err := initStore(cmd, database)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}

	authToken, err := cmd.Flags().GetString("auth-token")
	if err != nil {
		return fmt.Errorf("failed to read --auth-token: %w", err)
	}
	if authToken == "" {
		authToken = os.Getenv("HBT_AUTH_TOKEN")
	}
	if authToken == "" {
		return fmt.Errorf("no auth token: pass --auth-token or set HBT_AUTH_TOKEN")
	}
	endpoint, err := cmd.Flags().GetString("endpoint")
	if err != nil {
		return fmt.Errorf("failed to read --endpoint: %w", err)
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return fmt.Errorf("failed to read --workers: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to read --timeout: %w", err)
	}
	maxBytes, err := cmd.Flags().GetInt64("max-bytes")
	if err != nil {
		return fmt.Errorf("failed to read --max-bytes: %w", err)
	}
	render, err := cmd.Flags().GetBool("render")
	if err != nil {
		return fmt.Errorf("failed to read --render: %w", err)
	}
	chromePath, err := cmd.Flags().GetString("chrome-path")
	if err != nil {
		return fmt.Errorf("failed to read --chrome-path: %w", err)
	}
	waitSelector, err := cmd.Flags().GetString("wait-selector")
	if err != nil {
		return fmt.Errorf("failed to read --wait-selector: %w", err)
	}
	refetch, err := cmd.Flags().GetBool("refetch")
	if err != nil {
		return fmt.Errorf("failed to read --refetch: %w", err)
	}
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("failed to read --full: %w", err)
	}

	var fetcher fetch.Fetcher
	if render {
		fetcher = &fetch.Renderer{
			ChromePath:   chromePath,
			Headless:     true,
			Timeout:      timeout,
			MaxBytes:     maxBytes,
			WaitSelector: waitSelector,
		}
	} else {
		fetcher = fetch.NewClient(fetch.Options{
			Timeout:  timeout,
			MaxBytes: maxBytes,
		})
	}

	client := pinboard.NewClient(pinboard.ClientOptions{
		AuthToken: authToken,
		BaseURL:   endpoint,
	})

	since, err := database.GetWatermark()
	if err != nil {
		return err
	}
	if full {
		since = time.Time{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Cheap probe: skip the full listing when nothing changed.
	if !since.IsZero() {
		last, err := client.LastUpdate(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
		}
		if !last.After(since) {
			log.Printf("Already up to date (watermark %s)", since.Format(time.RFC3339))
			return nil
		}
	}

	// Log archival progress as the index commits it.
	database.RegisterEventListener(db.OnObjectStoredEvent, func(event db.Event) error {
		ev := event.(db.ObjectStoredEvent)
		log.Printf("Stored object %s (%d bytes)", ev.Digest, ev.Size)
		return nil
	})
	database.RegisterEventListener(db.OnWatermarkAdvancedEvent, func(event db.Event) error {
		ev := event.(db.WatermarkAdvancedEvent)
		log.Printf("Watermark advanced to %s", ev.Watermark.Format(time.RFC3339))
		return nil
	})

	engine := &core.Engine{
		Source:  &pinboard.Source{Client: client},
		Fetcher: fetcher,
		DB:      database,
		Store:   store,
		Workers: workers,
		Refetch: refetch,
	}

	report, err := engine.Sync(ctx, since)
	if err != nil {
		return err
	}

	log.Printf("Sync finished: %d newly archived, %d already archived, %d failed, %d skipped",
		report.NewlyArchived, report.AlreadyArchived, report.Failed, report.Skipped)
	for _, id := range report.FailedIDs {
		log.Printf("  failed: %s", id)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("auth-token", "", "Pinboard API token (user:hex); defaults to $HBT_AUTH_TOKEN")
	syncCmd.Flags().String("endpoint", "", "Override the Pinboard API endpoint (mainly for testing)")
	syncCmd.Flags().IntP("workers", "w", core.DefaultWorkers, "Number of concurrent content fetches")
	syncCmd.Flags().Duration("timeout", fetch.DefaultTimeout, "Per-fetch timeout")
	syncCmd.Flags().Int64("max-bytes", fetch.DefaultMaxBytes, "Maximum content size to archive, in bytes")
	syncCmd.Flags().Bool("render", false, "Capture pages with headless Chrome instead of plain HTTP")
	syncCmd.Flags().String("chrome-path", "", "Path to Chrome/Chromium executable (with --render)")
	syncCmd.Flags().String("wait-selector", "", "Optional CSS selector to wait for (with --render)")
	syncCmd.Flags().Bool("refetch", false, "Re-archive bookmarks even when an up-to-date link exists")
	syncCmd.Flags().Bool("full", false, "Ignore the watermark and list every bookmark")
}
