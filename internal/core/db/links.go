package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrLinkNotFound is returned when a bookmark has no archive link.
var ErrLinkNotFound = errors.New("archive link not found")

// ErrWatermarkRegression is returned when a commit would move the sync
// watermark backwards.
var ErrWatermarkRegression = errors.New("watermark regression")

const linkColumns = "bookmark_id, digest, url, status, attempted_at, error"

func scanLink(row interface{ Scan(...any) error }) (ArchiveLink, error) {
	var l ArchiveLink
	var attemptedAt string
	err := row.Scan(&l.BookmarkID, &l.Digest, &l.URL, &l.Status, &attemptedAt, &l.Error)
	if err != nil {
		return ArchiveLink{}, err
	}
	l.AttemptedAt = parseStoredTime(attemptedAt)
	return l, nil
}

func (db *DB) GetLink(bookmarkID string) (ArchiveLink, error) {
	row := db.db.QueryRow("SELECT "+linkColumns+" FROM links WHERE bookmark_id = ?", bookmarkID)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArchiveLink{}, fmt.Errorf("%w: %s", ErrLinkNotFound, bookmarkID)
		}
		return ArchiveLink{}, fmt.Errorf("failed to get link: %w", err)
	}
	return l, nil
}

const upsertLinkSQL = `
	INSERT INTO links (bookmark_id, digest, url, status, attempted_at, error)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(bookmark_id) DO UPDATE SET
		digest = excluded.digest,
		url = excluded.url,
		status = excluded.status,
		attempted_at = excluded.attempted_at,
		error = excluded.error
`

// SaveLink upserts the archive link for a bookmark, replacing any prior
// link. Emits a LinkSavedEvent after a successful write.
func (db *DB) SaveLink(l ArchiveLink) error {
	if l.BookmarkID == "" {
		return errors.New("link bookmark ID must not be empty")
	}
	_, err := db.db.Exec(upsertLinkSQL,
		l.BookmarkID,
		l.Digest,
		l.URL,
		l.Status,
		l.AttemptedAt.Format(time.RFC3339),
		l.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}

	db.emit(LinkSavedEvent{Link: l})

	return nil
}

func (db *DB) ListLinksByStatus(status string, limit int) ([]ArchiveLink, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE status = ?
		ORDER BY attempted_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.db.Query(query+" LIMIT ?", status, limit)
	} else {
		rows, err = db.db.Query(query, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list links by status: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var out []ArchiveLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountLinksForDigest reports how many links reference the given digest.
func (db *DB) CountLinksForDigest(digest string) (int, error) {
	var n int
	err := db.db.QueryRow("SELECT COUNT(*) FROM links WHERE digest = ?", digest).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count links for digest: %w", err)
	}
	return n, nil
}

// GetWatermark returns the persisted sync watermark, or the zero time when
// no sync pass has ever committed.
func (db *DB) GetWatermark() (time.Time, error) {
	var s string
	err := db.db.QueryRow("SELECT watermark FROM sync_state WHERE id = 1").Scan(&s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse watermark %q: %w", s, err)
	}
	return t, nil
}

// CommitSync atomically persists the final link rows of a sync pass and
// advances the watermark, in a single transaction. A crash before the
// commit leaves the watermark unchanged; re-running the pass with the old
// watermark is safe because archival is idempotent by digest.
//
// The watermark never regresses: committing a watermark earlier than the
// persisted one fails with ErrWatermarkRegression and writes nothing.
// Emits a WatermarkAdvancedEvent after a successful commit.
func (db *DB) CommitSync(links []ArchiveLink, watermark time.Time) error {
	current, err := db.GetWatermark()
	if err != nil {
		return err
	}
	if watermark.Before(current) {
		return fmt.Errorf("%w: %s is before %s",
			ErrWatermarkRegression, watermark.Format(time.RFC3339), current.Format(time.RFC3339))
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, l := range links {
		if l.BookmarkID == "" {
			tx.Rollback()
			return errors.New("link bookmark ID must not be empty")
		}
		if _, err := tx.Exec(upsertLinkSQL,
			l.BookmarkID,
			l.Digest,
			l.URL,
			l.Status,
			l.AttemptedAt.Format(time.RFC3339),
			l.Error,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save link for %s: %w", l.BookmarkID, err)
		}
	}

	if _, err := tx.Exec("UPDATE sync_state SET watermark = ? WHERE id = 1",
		watermark.Format(time.RFC3339)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	for _, l := range links {
		db.emit(LinkSavedEvent{Link: l})
	}
	db.emit(WatermarkAdvancedEvent{Watermark: watermark})

	return nil
}
