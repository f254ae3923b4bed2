/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/

// The import command loads a bookmark file into the local index without
// touching the network: Pinboard exports (JSON or XML), Netscape-style HTML
// exports, or Markdown link lists organized by date headings. Content
// archival for imported bookmarks happens on a later sync pass.
//
// Example usage:
//
//	hbt import pinboard-export.json
//	hbt import bookmarks.html
//	hbt import --format xml posts.txt
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/henrytill/hbt/internal/core/db"
	"github.com/henrytill/hbt/internal/format"
	"github.com/henrytill/hbt/internal/pinboard"
	"github.com/spf13/cobra"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a bookmark file (JSON, XML, HTML, or Markdown) into the index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runImport(cmd, args[0]); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	},
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".xml":
		return "xml"
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown":
		return "markdown"
	default:
		return ""
	}
}

// readBookmarks parses the file in the named format.
func readBookmarks(r io.Reader, formatName string) ([]db.Bookmark, error) {
	switch formatName {
	case "json", "xml":
		var posts []pinboard.Post
		var err error
		if formatName == "json" {
			posts, err = pinboard.PostsFromJSON(r)
		} else {
			posts, err = pinboard.PostsFromXML(r)
		}
		if err != nil {
			return nil, err
		}
		return pinboard.ToBookmarks(posts)
	case "html":
		return format.Netscape(r)
	case "markdown":
		return format.Markdown(r)
	default:
		return nil, fmt.Errorf("unknown format %q (want json, xml, html, or markdown)", formatName)
	}
}

func runImport(cmd *cobra.Command, path string) error {
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to read --format: %w", err)
	}
	if formatName == "" {
		formatName = detectFormat(path)
	}
	if formatName == "" {
		return fmt.Errorf("cannot detect format of %s; pass --format json, xml, html, or markdown", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open bookmark file: %w", err)
	}
	defer f.Close()

	bookmarks, err := readBookmarks(f, formatName)
	if err != nil {
		return err
	}

	database, err := initDB(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	var imported int
	for _, b := range bookmarks {
		if err := database.UpsertBookmark(b); err != nil {
			log.Printf("Skipping %s: %v", b.URL, err)
			continue
		}
		imported++
	}

	log.Printf("Imported %d of %d bookmark(s) from %s", imported, len(bookmarks), path)
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("format", "", "File format: json, xml, html, or markdown (default: detect from extension)")
}
