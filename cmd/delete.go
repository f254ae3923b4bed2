/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/

// The delete command removes a bookmark and its archive link from the
// index. The stored content loses one reference; the gc sweep reclaims
// the object once nothing links to it.
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a bookmark from the index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDelete(cmd, args[0]); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
	},
}

func runDelete(cmd *cobra.Command, id string) error {
	database, err := initDB(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	if err := database.DeleteBookmark(id); err != nil {
		return err
	}

	log.Printf("Deleted bookmark %s", id)
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
