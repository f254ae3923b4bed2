/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/
package cmd

import (
	"log"
	"os"

	"github.com/henrytill/hbt/internal/attic"
	"github.com/henrytill/hbt/internal/core/db"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hbt",
	Short: "Synchronize bookmarks and archive what they point at",
	Long: `hbt pulls bookmarks from Pinboard, keeps a local SQLite index of them,
and maintains a deduplicated, content-addressed archive of the pages
they reference.

Typical usage:

  hbt sync --auth-token user:TOKEN     # pull changes and archive content
  hbt import pinboard-export.json      # load an export without the network
  hbt show                             # inspect the index
  hbt gc                               # reclaim orphaned archive blobs`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("db", "d", "hbt.db", "Path to the SQLite index file")
	rootCmd.PersistentFlags().String("store", "attic", "Path to the content store root directory")
}

func initDB(cmd *cobra.Command) (*db.DB, error) {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		log.Fatalf("Failed to get database path: %v", err)
	}
	database, err := db.NewSQLiteDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return database, nil
}

func initStore(cmd *cobra.Command, database *db.DB) (*attic.Store, error) {
	storePath, err := cmd.Flags().GetString("store")
	if err != nil {
		log.Fatalf("Failed to get store path: %v", err)
	}
	store, err := attic.NewStore(storePath, database)
	if err != nil {
		log.Fatalf("Failed to open content store: %v", err)
	}
	return store, nil
}
