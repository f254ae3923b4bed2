/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/

// The gc command reclaims storage: orphan blobs left by crashes between
// byte-write and metadata-commit, abandoned temp files, and objects no
// bookmark links to anymore.
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// gcCmd represents the gc command
var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim orphaned blobs and unreferenced objects",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGC(cmd); err != nil {
			log.Fatalf("GC failed: %v", err)
		}
	},
}

func runGC(cmd *cobra.Command) error {
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

	res, err := store.Sweep()
	if err != nil {
		return err
	}

	log.Printf("GC finished: %d orphan blob(s), %d unreferenced object(s), %d temp file(s) removed",
		res.OrphanBlobs, res.UnlinkedObjects, res.TmpFiles)
	return nil
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
