package db

import "time"

// Bookmark is a bookmark record as reconciled from the source service.
// ID is the stable, source-assigned identifier (for Pinboard, the post hash).
// Timestamps are stored in the DB as RFC3339 text.
type Bookmark struct {
	ID        string
	URL       string
	Title     string
	Extended  string
	Tags      []string
	Shared    bool
	ToRead    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	// Meta is the source-provided revision marker, used to detect
	// changes without comparing every field.
	Meta string
}

// ArchivedObject describes content stored in the attic, keyed by the
// hex-encoded digest of its raw bytes. Rows are created once per unique
// digest and never mutated.
type ArchivedObject struct {
	Digest      string
	Size        int64
	ContentType string
	Kind        string
	Compression string
	StoredAt    time.Time
}

// Link statuses. A bookmark has at most one current link.
const (
	StatusPending  = "pending"
	StatusArchived = "archived"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// ArchiveLink maps a bookmark to the archived object holding its content.
// URL records the bookmark URL at the time of the archival attempt so a
// later URL edit can be detected. Digest is empty for failed links.
type ArchiveLink struct {
	BookmarkID  string
	Digest      string
	URL         string
	Status      string
	AttemptedAt time.Time
	Error       string
}
