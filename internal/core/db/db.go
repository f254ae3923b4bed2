// Package db is the SQLite index behind the archive: bookmark metadata,
// stored-object rows, archive links, and the sync watermark. Schema changes
// ship as embedded SQL files applied in lexical order at startup.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	db             *sql.DB
	eventListeners map[EventKind][]EventListener
}

func NewSQLiteDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writes from concurrent workers and
	// keeps :memory: databases from splitting across pool connections.
	db.SetMaxOpenConns(1)
	return &DB{
		db:             db,
		eventListeners: make(map[EventKind][]EventListener),
	}, nil
}

// Migrate brings the schema up to date. Each pending migration runs in its
// own transaction together with the row that marks it applied, so a failure
// leaves the schema at the last fully applied version. Safe to call on
// every startup.
func (db *DB) Migrate() error {
	_, err := db.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema migrations table: %w", err)
	}

	versions, err := migrationVersions()
	if err != nil {
		return err
	}

	for _, version := range versions {
		applied, err := db.migrationApplied(version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := db.applyMigration(version); err != nil {
			return err
		}
		log.Printf("Migration %s applied successfully", version)
	}

	return nil
}

// migrationVersions lists the embedded migration versions in apply order.
// File names are NNNN_description.sql; lexical order is version order.
func migrationVersions() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

func (db *DB) migrationApplied(version string) (bool, error) {
	var exists bool
	err := db.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)
	`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if migration has been applied: %w", err)
	}
	return exists, nil
}

func (db *DB) applyMigration(version string) error {
	content, err := migrationsFS.ReadFile("migrations/" + version + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", version, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO schema_migrations (version) VALUES (?)
	`, version); err != nil {
		return fmt.Errorf("failed to mark migration as applied: %w", err)
	}
	return tx.Commit()
}

func (db *DB) Close() error {
	return db.db.Close()
}
