package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrObjectNotFound is returned when no archived object exists for a digest.
var ErrObjectNotFound = errors.New("archived object not found")

const objectColumns = "digest, size, content_type, kind, compression, stored_at"

func scanObject(row interface{ Scan(...any) error }) (ArchivedObject, error) {
	var o ArchivedObject
	var storedAt string
	err := row.Scan(&o.Digest, &o.Size, &o.ContentType, &o.Kind, &o.Compression, &storedAt)
	if err != nil {
		return ArchivedObject{}, err
	}
	o.StoredAt = parseStoredTime(storedAt)
	return o, nil
}

// InsertObject records metadata for content already written to the blob
// area. Inserting the same digest twice is an error: objects are immutable
// and created exactly once (content-addressing uniqueness).
func (db *DB) InsertObject(o ArchivedObject) error {
	if o.Digest == "" {
		return errors.New("object digest must not be empty")
	}
	_, err := db.db.Exec(`
		INSERT INTO objects (digest, size, content_type, kind, compression, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		o.Digest,
		o.Size,
		o.ContentType,
		o.Kind,
		o.Compression,
		o.StoredAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert object %s: %w", o.Digest, err)
	}

	db.emit(ObjectStoredEvent{
		Digest: o.Digest,
		Size:   o.Size,
	})

	return nil
}

func (db *DB) GetObject(digest string) (ArchivedObject, error) {
	row := db.db.QueryRow("SELECT "+objectColumns+" FROM objects WHERE digest = ?", digest)
	o, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArchivedObject{}, fmt.Errorf("%w: %s", ErrObjectNotFound, digest)
		}
		return ArchivedObject{}, fmt.Errorf("failed to get object: %w", err)
	}
	return o, nil
}

// HasObject reports whether metadata for the given digest is committed.
func (db *DB) HasObject(digest string) (bool, error) {
	var exists bool
	err := db.db.QueryRow("SELECT EXISTS (SELECT 1 FROM objects WHERE digest = ?)", digest).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for object: %w", err)
	}
	return exists, nil
}

func (db *DB) ListObjects() ([]ArchivedObject, error) {
	rows, err := db.db.Query("SELECT " + objectColumns + " FROM objects ORDER BY digest")
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var out []ArchivedObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListUnlinkedObjects returns objects no archive link references. These are
// candidates for the gc sweep.
func (db *DB) ListUnlinkedObjects() ([]ArchivedObject, error) {
	rows, err := db.db.Query(`
		SELECT ` + objectColumns + `
		FROM objects
		WHERE digest NOT IN (SELECT digest FROM links WHERE digest != '')
		ORDER BY digest
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlinked objects: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var out []ArchivedObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteObject removes an object's metadata row. Only the gc sweep calls
// this, after confirming no link references the digest.
func (db *DB) DeleteObject(digest string) error {
	res, err := db.db.Exec("DELETE FROM objects WHERE digest = ?", digest)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, digest)
	}
	return nil
}
