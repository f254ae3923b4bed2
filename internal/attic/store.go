package attic

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/henrytill/hbt/internal/core/db"
)

// Directory names within the store root.
const (
	objectsDir = "objects"
	tmpDir     = "tmp"
)

// ErrNotFound is returned by Get for digests with no committed object.
var ErrNotFound = errors.New("object not found")

// ErrCorrupt is returned when stored bytes do not match their committed
// metadata: a missing blob behind a committed row, a size mismatch, or a
// digest mismatch after decompression. Callers must treat it as fatal and
// stop writing.
var ErrCorrupt = errors.New("store corrupt")

// Store is a content-addressed archive: blob files keyed by digest under a
// root directory, with metadata and bookmark links in the SQLite index.
//
// The write protocol is bytes-first: a blob is written to tmp/, fsynced,
// renamed into place, and only then gets a metadata row. A crash between
// those steps leaves at worst an orphan blob (reclaimable by Sweep), never
// a committed row pointing at missing bytes.
type Store struct {
	root string
	db   *db.DB

	// passMu serializes whole sync passes against the gc sweep. A pass
	// inserts object rows during its fetch phase before CommitSync writes
	// the links, so the sweep must not observe that window.
	passMu sync.Mutex

	// digestLocks gives Put at-most-once physical write semantics when
	// concurrent callers race on the same digest.
	mu          sync.Mutex
	digestLocks map[Digest]*sync.Mutex
}

// NewStore creates a Store rooted at the given directory, creating the
// directory layout if needed. The index must already be migrated.
func NewStore(root string, database *db.DB) (*Store, error) {
	for _, dir := range []string{
		root,
		filepath.Join(root, objectsDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	return &Store{
		root:        root,
		db:          database,
		digestLocks: make(map[Digest]*sync.Mutex),
	}, nil
}

// blobPath returns the on-disk location for a digest. Blobs are fanned out
// by the first two hex characters to keep directories small.
func (s *Store) blobPath(d Digest) string {
	h := d.String()
	return filepath.Join(s.root, objectsDir, h[:2], h)
}

func (s *Store) lockDigest(d Digest) func() {
	s.mu.Lock()
	l, ok := s.digestLocks[d]
	if !ok {
		l = &sync.Mutex{}
		s.digestLocks[d] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Put stores content bytes, deduplicating by digest. It returns the digest
// and whether a new object was physically written: false means an object
// with identical bytes already existed and nothing was rewritten.
//
// Put is safe under concurrent invocation with the same bytes; only one
// writer commits, the others observe its result.
func (s *Store) Put(data []byte, contentType, kind string) (Digest, bool, error) {
	if len(data) == 0 {
		return Digest{}, false, errors.New("cannot store empty content")
	}

	d := ComputeDigest(data)

	unlock := s.lockDigest(d)
	defer unlock()

	exists, err := s.db.HasObject(d.String())
	if err != nil {
		return Digest{}, false, err
	}
	if exists {
		return d, false, nil
	}

	blob, tag := compress(data)

	if err := s.writeBlob(d, blob); err != nil {
		return Digest{}, false, err
	}

	// Bytes are in place; committing the metadata row makes the object
	// visible. A crash right here leaves an orphan blob for Sweep.
	if err := s.db.InsertObject(db.ArchivedObject{
		Digest:      d.String(),
		Size:        int64(len(data)),
		ContentType: contentType,
		Kind:        kind,
		Compression: tag,
		StoredAt:    time.Now().UTC(),
	}); err != nil {
		return Digest{}, false, err
	}

	return d, true, nil
}

// writeBlob writes compressed bytes to tmp/ and renames them into place.
// Rename within a filesystem is atomic, so readers never observe a
// half-written blob at its final path.
func (s *Store) writeBlob(d Digest, blob []byte) error {
	f, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpName := f.Name()

	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close blob: %w", err)
	}

	final := s.blobPath(d)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename blob into place: %w", err)
	}
	return nil
}

// Get retrieves previously stored content by digest. The bytes are
// re-hashed after decompression; any mismatch with the requested digest
// reports ErrCorrupt.
func (s *Store) Get(d Digest) ([]byte, error) {
	meta, err := s.db.GetObject(d.String())
	if err != nil {
		if errors.Is(err, db.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, d)
		}
		return nil, err
	}

	blob, err := os.ReadFile(s.blobPath(d))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: committed object %s has no blob", ErrCorrupt, d)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	data, err := decompress(blob, meta.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if int64(len(data)) != meta.Size {
		return nil, fmt.Errorf("%w: object %s is %d bytes, metadata says %d",
			ErrCorrupt, d, len(data), meta.Size)
	}
	if ComputeDigest(data) != d {
		return nil, fmt.Errorf("%w: object %s bytes do not match digest", ErrCorrupt, d)
	}

	return data, nil
}

// Stat returns the metadata row for a digest without reading the blob.
func (s *Store) Stat(d Digest) (db.ArchivedObject, error) {
	meta, err := s.db.GetObject(d.String())
	if err != nil {
		if errors.Is(err, db.ErrObjectNotFound) {
			return db.ArchivedObject{}, fmt.Errorf("%w: %s", ErrNotFound, d)
		}
		return db.ArchivedObject{}, err
	}
	return meta, nil
}

// Link upserts the archive link for a bookmark, pointing it at a stored
// object. The digest must already be committed. url records the bookmark
// URL the object covers, so a later sync treats the link as current.
func (s *Store) Link(bookmarkID, url string, d Digest, attemptedAt time.Time) error {
	exists, err := s.db.HasObject(d.String())
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, d)
	}
	return s.db.SaveLink(db.ArchiveLink{
		BookmarkID:  bookmarkID,
		Digest:      d.String(),
		URL:         url,
		Status:      db.StatusArchived,
		AttemptedAt: attemptedAt,
	})
}

// LockPass takes the store's pass lock and returns its release function.
// A sync pass holds it from before the first Put through CommitSync so the
// sweep never sees the pass's objects in their not-yet-linked state.
func (s *Store) LockPass() func() {
	s.passMu.Lock()
	return s.passMu.Unlock
}

// CommitSync persists a sync pass's final link rows and watermark in one
// transaction. The caller holds the pass lock.
func (s *Store) CommitSync(links []db.ArchiveLink, watermark time.Time) error {
	return s.db.CommitSync(links, watermark)
}

// SweepResult reports what a gc pass reclaimed.
type SweepResult struct {
	// TmpFiles is the count of abandoned files removed from tmp/.
	TmpFiles int
	// OrphanBlobs is the count of blobs removed that had no metadata row
	// (a crash between blob write and metadata commit).
	OrphanBlobs int
	// UnlinkedObjects is the count of committed objects removed because
	// no bookmark link references them anymore.
	UnlinkedObjects int
}

// Sweep reclaims orphan blobs, abandoned temp files, and objects whose
// link count has dropped to zero. It takes the pass lock, so it waits out
// any sync pass that has stored bytes but not yet committed links.
func (s *Store) Sweep() (SweepResult, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	var res SweepResult

	tmpEntries, err := os.ReadDir(filepath.Join(s.root, tmpDir))
	if err != nil {
		return res, fmt.Errorf("failed to read tmp directory: %w", err)
	}
	for _, entry := range tmpEntries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, tmpDir, entry.Name())); err != nil {
			log.Printf("failed to remove temp file %s: %v", entry.Name(), err)
			continue
		}
		res.TmpFiles++
	}

	// Unlinked objects: drop the row first, then the blob. If the blob
	// removal fails the blob becomes an orphan and the next sweep gets it.
	unlinked, err := s.db.ListUnlinkedObjects()
	if err != nil {
		return res, err
	}
	for _, o := range unlinked {
		d, err := ParseDigest(o.Digest)
		if err != nil {
			log.Printf("skipping object with malformed digest %q: %v", o.Digest, err)
			continue
		}
		if err := s.db.DeleteObject(o.Digest); err != nil {
			return res, err
		}
		if err := os.Remove(s.blobPath(d)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("failed to remove blob %s: %v", o.Digest, err)
		}
		res.UnlinkedObjects++
	}

	// Orphan blobs: files on disk with no metadata row.
	root := filepath.Join(s.root, objectsDir)
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		d, err := ParseDigest(entry.Name())
		if err != nil {
			log.Printf("skipping stray file %s in object area: %v", entry.Name(), err)
			return nil
		}
		exists, err := s.db.HasObject(d.String())
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("failed to remove orphan blob %s: %v", entry.Name(), err)
			return nil
		}
		res.OrphanBlobs++
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to walk object area: %w", err)
	}

	return res, nil
}
