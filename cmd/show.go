/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/

// The show command inspects the index and the archive:
//
//	hbt show                  # list bookmarks with archive status
//	hbt show --limit 20
//	hbt show --id <hash>      # one bookmark in detail
//	hbt show --digest <hex>   # dump archived bytes to stdout
//	hbt show --status failed  # list links by archive status
//	hbt show --tags           # list tags with bookmark counts
package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/henrytill/hbt/internal/attic"
	"github.com/henrytill/hbt/internal/core/db"
	"github.com/spf13/cobra"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Inspect bookmarks and archived content",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runShow(cmd); err != nil {
			log.Fatalf("Show failed: %v", err)
		}
	},
}

func runShow(cmd *cobra.Command) error {
	database, err := initDB(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	digestHex, err := cmd.Flags().GetString("digest")
	if err != nil {
		return fmt.Errorf("failed to read --digest: %w", err)
	}
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return fmt.Errorf("failed to read --id: %w", err)
	}
	status, err := cmd.Flags().GetString("status")
	if err != nil {
		return fmt.Errorf("failed to read --status: %w", err)
	}
	listTags, err := cmd.Flags().GetBool("tags")
	if err != nil {
		return fmt.Errorf("failed to read --tags: %w", err)
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to read --limit: %w", err)
	}

	switch {
	case digestHex != "":
		return showDigest(cmd, database, digestHex)
	case id != "":
		return showBookmark(cmd, database, id)
	case status != "":
		return showLinksByStatus(database, status, limit)
	case listTags:
		return showTags(database)
	default:
		return showList(database, limit)
	}
}

func showDigest(cmd *cobra.Command, database *db.DB, digestHex string) error {
	store, err := initStore(cmd, database)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}
	d, err := attic.ParseDigest(digestHex)
	if err != nil {
		return err
	}
	data, err := store.Get(d)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func showBookmark(cmd *cobra.Command, database *db.DB, id string) error {
	b, err := database.GetBookmark(id)
	if err != nil {
		return err
	}
	fmt.Printf("id:       %s\n", b.ID)
	fmt.Printf("url:      %s\n", b.URL)
	fmt.Printf("title:    %s\n", b.Title)
	if b.Extended != "" {
		fmt.Printf("extended: %s\n", b.Extended)
	}
	if len(b.Tags) > 0 {
		fmt.Printf("tags:     %s\n", strings.Join(b.Tags, " "))
	}
	fmt.Printf("updated:  %s\n", b.UpdatedAt.Format("2006-01-02 15:04:05"))

	link, err := database.GetLink(b.ID)
	switch {
	case errors.Is(err, db.ErrLinkNotFound):
		fmt.Printf("archive:  none\n")
		return nil
	case err != nil:
		return err
	}

	fmt.Printf("archive:  %s", link.Status)
	if link.Digest != "" {
		fmt.Printf(" (%s)", link.Digest)
	}
	if link.Error != "" {
		fmt.Printf(": %s", link.Error)
	}
	fmt.Println()

	if link.Digest == "" {
		return nil
	}

	// Describe the stored object the link points at.
	store, err := initStore(cmd, database)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}
	d, err := attic.ParseDigest(link.Digest)
	if err != nil {
		return err
	}
	meta, err := store.Stat(d)
	if err != nil {
		return err
	}
	refs, err := database.CountLinksForDigest(link.Digest)
	if err != nil {
		return err
	}
	fmt.Printf("object:   %d bytes, %s, stored %s, %d reference(s)\n",
		meta.Size, meta.ContentType, meta.StoredAt.Format("2006-01-02 15:04:05"), refs)
	return nil
}

func showLinksByStatus(database *db.DB, status string, limit int) error {
	links, err := database.ListLinksByStatus(status, limit)
	if err != nil {
		return err
	}
	for _, link := range links {
		fmt.Printf("%s  %s", link.BookmarkID, link.URL)
		if link.Error != "" {
			fmt.Printf(": %s", link.Error)
		}
		fmt.Println()
	}
	return nil
}

func showTags(database *db.DB) error {
	tags, err := database.ListTags()
	if err != nil {
		return err
	}
	for _, tc := range tags {
		fmt.Printf("%6d  %s\n", tc.Count, tc.Tag)
	}
	return nil
}

func showList(database *db.DB, limit int) error {
	bookmarks, err := database.ListBookmarks(limit)
	if err != nil {
		return err
	}
	for _, b := range bookmarks {
		status := "-"
		if link, err := database.GetLink(b.ID); err == nil {
			status = link.Status
		}
		title := b.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%-8s  %s  %s\n", status, b.ID, title)
		fmt.Printf("          %s\n", b.URL)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().String("digest", "", "Dump the archived object with this digest to stdout")
	showCmd.Flags().String("id", "", "Show a single bookmark by ID")
	showCmd.Flags().String("status", "", "List archive links with this status (pending, archived, failed, skipped)")
	showCmd.Flags().Bool("tags", false, "List tags with bookmark counts")
	showCmd.Flags().Int("limit", 0, "Limit the number of entries listed (0 = all)")
}
