package db

import (
	"errors"
	"testing"
	"time"
)

func testObject(digest string) ArchivedObject {
	return ArchivedObject{
		Digest:      digest,
		Size:        42,
		ContentType: "text/html; charset=utf-8",
		Kind:        "html",
		Compression: "zstd",
		StoredAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertObject(t *testing.T) {
	t.Run("inserts and retrieves metadata", func(t *testing.T) {
		db := newTestDB(t)

		o := testObject("d1")
		if err := db.InsertObject(o); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := db.GetObject("d1")
		if err != nil {
			t.Fatalf("failed to get object: %v", err)
		}
		if got.Size != o.Size || got.ContentType != o.ContentType || got.Kind != o.Kind || got.Compression != o.Compression {
			t.Errorf("unexpected object: %+v", got)
		}
		if !got.StoredAt.Equal(o.StoredAt) {
			t.Errorf("expected stored_at %v, got %v", o.StoredAt, got.StoredAt)
		}
	})

	t.Run("rejects duplicate digest", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.InsertObject(testObject("d1")); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		if err := db.InsertObject(testObject("d1")); err == nil {
			t.Error("expected error for duplicate digest, got nil")
		}
	})

	t.Run("rejects empty digest", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.InsertObject(testObject("")); err == nil {
			t.Error("expected error for empty digest, got nil")
		}
	})

	t.Run("emits stored event", func(t *testing.T) {
		db := newTestDB(t)

		var stored []string
		db.RegisterEventListener(OnObjectStoredEvent, func(event Event) error {
			stored = append(stored, event.(ObjectStoredEvent).Digest)
			return nil
		})

		if err := db.InsertObject(testObject("d1")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if len(stored) != 1 || stored[0] != "d1" {
			t.Errorf("expected stored event for d1, got %v", stored)
		}
	})
}

func TestGetObject_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetObject("missing")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestHasObject(t *testing.T) {
	db := newTestDB(t)

	exists, err := db.HasObject("d1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if exists {
		t.Error("expected object to be absent")
	}

	if err := db.InsertObject(testObject("d1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	exists, err = db.HasObject("d1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !exists {
		t.Error("expected object to be present")
	}
}

func TestListUnlinkedObjects(t *testing.T) {
	db := newTestDB(t)

	if err := db.InsertObject(testObject("d1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db.InsertObject(testObject("d2")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db.SaveLink(testLink("a", "d1", StatusArchived)); err != nil {
		t.Fatalf("save link failed: %v", err)
	}

	unlinked, err := db.ListUnlinkedObjects()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(unlinked) != 1 || unlinked[0].Digest != "d2" {
		t.Errorf("expected only d2 unlinked, got %+v", unlinked)
	}
}

func TestDeleteObject(t *testing.T) {
	db := newTestDB(t)

	if err := db.InsertObject(testObject("d1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db.DeleteObject("d1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := db.DeleteObject("d1"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound on second delete, got %v", err)
	}
}
