/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/

// The link command points a bookmark's archive link at an object already
// in the store, without fetching anything. Useful after importing content
// that was archived out of band.
//
// Example usage:
//
//	hbt link c984d06aafbecf6bc55569f964148ea3 <digest>
package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/henrytill/hbt/internal/attic"
	"github.com/spf13/cobra"
)

// linkCmd represents the link command
var linkCmd = &cobra.Command{
	Use:   "link <bookmark-id> <digest>",
	Short: "Point a bookmark at an already stored object",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLink(cmd, args[0], args[1]); err != nil {
			log.Fatalf("Link failed: %v", err)
		}
	},
}

func runLink(cmd *cobra.Command, bookmarkID, digestHex string) error {
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

	// The bookmark must exist; Link only checks the object side.
	b, err := database.GetBookmark(bookmarkID)
	if err != nil {
		return err
	}

	d, err := attic.ParseDigest(digestHex)
	if err != nil {
		return err
	}
	if err := store.Link(b.ID, b.URL, d, time.Now().UTC()); err != nil {
		return err
	}

	log.Printf("Linked bookmark %s to object %s", bookmarkID, d)
	return nil
}

func init() {
	rootCmd.AddCommand(linkCmd)
}
