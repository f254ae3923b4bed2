package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrInvalidURL is returned when a bookmark URL fails validation.
var ErrInvalidURL = errors.New("invalid URL")

// ValidateBookmarkURL validates that a URL is acceptable for bookmarking.
// It requires the URL to have http or https scheme and a non-empty host.
func ValidateBookmarkURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// joinTags and splitTags convert between the model's tag slice and the
// space-separated TEXT column the tags are stored in.
func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		log.Printf("failed to parse stored timestamp %q: %v", s, err)
		return time.Time{}
	}
	return t
}

func scanBookmark(row interface{ Scan(...any) error }) (Bookmark, error) {
	var b Bookmark
	var tags, createdAt, updatedAt string
	err := row.Scan(&b.ID, &b.URL, &b.Title, &b.Extended, &tags, &b.Shared, &b.ToRead, &createdAt, &updatedAt, &b.Meta)
	if err != nil {
		return Bookmark{}, err
	}
	b.Tags = splitTags(tags)
	b.CreatedAt = parseStoredTime(createdAt)
	b.UpdatedAt = parseStoredTime(updatedAt)
	return b, nil
}

const bookmarkColumns = "id, url, title, extended, tags, shared, toread, created_at, updated_at, meta"

func (db *DB) GetBookmark(id string) (Bookmark, error) {
	row := db.db.QueryRow("SELECT "+bookmarkColumns+" FROM bookmarks WHERE id = ?", id)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bookmark{}, fmt.Errorf("bookmark not found: %s", id)
		}
		return Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return b, nil
}

// UpsertBookmark inserts a bookmark or refreshes its metadata fields if a
// row with the same ID already exists. It validates the URL first and
// returns ErrInvalidURL if validation fails.
// Emits a BookmarkUpsertedEvent after a successful write.
func (db *DB) UpsertBookmark(b Bookmark) error {
	if b.ID == "" {
		return errors.New("bookmark ID must not be empty")
	}
	if err := ValidateBookmarkURL(b.URL); err != nil {
		return err
	}

	var exists bool
	if err := db.db.QueryRow("SELECT EXISTS (SELECT 1 FROM bookmarks WHERE id = ?)", b.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check for existing bookmark: %w", err)
	}

	_, err := db.db.Exec(`
		INSERT INTO bookmarks (id, url, title, extended, tags, shared, toread, created_at, updated_at, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			extended = excluded.extended,
			tags = excluded.tags,
			shared = excluded.shared,
			toread = excluded.toread,
			updated_at = excluded.updated_at,
			meta = excluded.meta
	`,
		b.ID,
		b.URL,
		b.Title,
		b.Extended,
		joinTags(b.Tags),
		b.Shared,
		b.ToRead,
		b.CreatedAt.Format(time.RFC3339),
		b.UpdatedAt.Format(time.RFC3339),
		b.Meta,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert bookmark: %w", err)
	}

	db.emit(BookmarkUpsertedEvent{
		Bookmark: b,
		Created:  !exists,
	})

	return nil
}

// UpdateBookmarkTitle replaces an empty or stale title with one recovered
// from the archived content.
func (db *DB) UpdateBookmarkTitle(id string, title string) error {
	res, err := db.db.Exec("UPDATE bookmarks SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to update bookmark title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bookmark not found: %s", id)
	}
	return nil
}

func (db *DB) ListBookmarks(limit int) ([]Bookmark, error) {
	query := `
		SELECT ` + bookmarkColumns + `
		FROM bookmarks
		ORDER BY updated_at DESC, id
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var out []Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TagCount pairs a tag with the number of bookmarks carrying it.
type TagCount struct {
	Tag   string
	Count int
}

// ListTags returns every tag in use with its bookmark count, sorted by
// tag. Tags live in a space-separated TEXT column, so the fan-out happens
// here rather than in SQL.
func (db *DB) ListTags() ([]TagCount, error) {
	rows, err := db.db.Query("SELECT tags FROM bookmarks")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	counts := make(map[string]int)
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, fmt.Errorf("failed to scan tags: %w", err)
		}
		for _, t := range splitTags(tags) {
			counts[t]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

// DeleteBookmark removes a bookmark and its archive link. The archived
// object itself is left in place; the gc sweep reclaims it once no link
// references its digest.
func (db *DB) DeleteBookmark(id string) error {
	b, _ := db.GetBookmark(id)

	res, err := db.db.Exec("DELETE FROM bookmarks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bookmark not found: %s", id)
	}

	if _, err := db.db.Exec("DELETE FROM links WHERE bookmark_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete bookmark link: %w", err)
	}

	if b.ID == "" {
		b.ID = id
	}
	db.emit(BookmarkDeletedEvent{Bookmark: b})

	return nil
}
