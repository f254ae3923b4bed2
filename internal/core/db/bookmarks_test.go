package db

import (
	"errors"
	"testing"
	"time"
)

func TestValidateBookmarkURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http URL", "http://example.com", false},
		{"valid https URL", "https://example.com/path?q=1", false},
		{"empty URL", "", true},
		{"missing scheme", "example.com", true},
		{"ftp scheme", "ftp://example.com", true},
		{"missing host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBookmarkURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got nil", tt.url)
				}
				if err != nil && !errors.Is(err, ErrInvalidURL) {
					t.Errorf("expected ErrInvalidURL, got %v", err)
				}
			} else if err != nil {
				t.Errorf("expected no error for %q, got %v", tt.url, err)
			}
		})
	}
}

func TestUpsertBookmark(t *testing.T) {
	t.Run("inserts a new bookmark", func(t *testing.T) {
		db := newTestDB(t)

		b := testBookmark("abc", "https://example.com")
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := db.GetBookmark("abc")
		if err != nil {
			t.Fatalf("failed to get bookmark: %v", err)
		}
		if got.URL != b.URL {
			t.Errorf("expected URL %q, got %q", b.URL, got.URL)
		}
		if got.Title != b.Title {
			t.Errorf("expected title %q, got %q", b.Title, got.Title)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "testing" || got.Tags[1] != "go" {
			t.Errorf("expected tags [testing go], got %v", got.Tags)
		}
		if !got.UpdatedAt.Equal(b.UpdatedAt) {
			t.Errorf("expected updated_at %v, got %v", b.UpdatedAt, got.UpdatedAt)
		}
	})

	t.Run("refreshes metadata on conflict", func(t *testing.T) {
		db := newTestDB(t)

		b := testBookmark("abc", "https://example.com")
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}

		b.Title = "Renamed"
		b.Tags = []string{"renamed"}
		b.UpdatedAt = b.UpdatedAt.Add(time.Hour)
		b.Meta = "m2"
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		got, err := db.GetBookmark("abc")
		if err != nil {
			t.Fatalf("failed to get bookmark: %v", err)
		}
		if got.Title != "Renamed" {
			t.Errorf("expected refreshed title, got %q", got.Title)
		}
		if got.Meta != "m2" {
			t.Errorf("expected refreshed meta, got %q", got.Meta)
		}
		if !got.CreatedAt.Equal(testBookmark("abc", "").CreatedAt) {
			t.Errorf("expected created_at preserved, got %v", got.CreatedAt)
		}

		all, err := db.ListBookmarks(0)
		if err != nil {
			t.Fatalf("failed to list bookmarks: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 bookmark after upsert, got %d", len(all))
		}
	})

	t.Run("rejects invalid URL", func(t *testing.T) {
		db := newTestDB(t)

		b := testBookmark("abc", "not-a-url")
		err := db.UpsertBookmark(b)
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL, got %v", err)
		}
	})

	t.Run("rejects empty ID", func(t *testing.T) {
		db := newTestDB(t)

		b := testBookmark("", "https://example.com")
		if err := db.UpsertBookmark(b); err == nil {
			t.Error("expected error for empty ID, got nil")
		}
	})

	t.Run("emits created event only on first insert", func(t *testing.T) {
		db := newTestDB(t)

		var created []bool
		db.RegisterEventListener(OnBookmarkUpsertedEvent, func(event Event) error {
			created = append(created, event.(BookmarkUpsertedEvent).Created)
			return nil
		})

		b := testBookmark("abc", "https://example.com")
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		if len(created) != 2 || !created[0] || created[1] {
			t.Errorf("expected [true false], got %v", created)
		}
	})
}

func TestGetBookmark_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetBookmark("missing"); err == nil {
		t.Error("expected error for missing bookmark, got nil")
	}
}

func TestUpdateBookmarkTitle(t *testing.T) {
	db := newTestDB(t)

	b := testBookmark("abc", "https://example.com")
	b.Title = ""
	if err := db.UpsertBookmark(b); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := db.UpdateBookmarkTitle("abc", "Recovered Title"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := db.GetBookmark("abc")
	if err != nil {
		t.Fatalf("failed to get bookmark: %v", err)
	}
	if got.Title != "Recovered Title" {
		t.Errorf("expected recovered title, got %q", got.Title)
	}

	if err := db.UpdateBookmarkTitle("missing", "x"); err == nil {
		t.Error("expected error for missing bookmark, got nil")
	}
}

func TestListBookmarks(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		b := testBookmark(id, "https://example.com/"+id)
		b.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	t.Run("lists newest first", func(t *testing.T) {
		all, err := db.ListBookmarks(0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 bookmarks, got %d", len(all))
		}
		if all[0].ID != "c" {
			t.Errorf("expected newest bookmark first, got %s", all[0].ID)
		}
	})

	t.Run("honors limit", func(t *testing.T) {
		limited, err := db.ListBookmarks(2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 bookmarks, got %d", len(limited))
		}
	})
}

func TestListTags(t *testing.T) {
	db := newTestDB(t)

	tagged := map[string][]string{
		"a": {"go", "systems"},
		"b": {"go"},
		"c": nil,
	}
	for id, tags := range tagged {
		b := testBookmark(id, "https://example.com/"+id)
		b.Tags = tags
		if err := db.UpsertBookmark(b); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	got, err := db.ListTags()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []TagCount{{Tag: "go", Count: 2}, {Tag: "systems", Count: 1}}
	if len(got) != len(want) {
		t.Fatalf("expected %d tags, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tag %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDeleteBookmark(t *testing.T) {
	db := newTestDB(t)

	b := testBookmark("abc", "https://example.com")
	if err := db.UpsertBookmark(b); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := db.SaveLink(ArchiveLink{BookmarkID: "abc", Status: StatusPending, AttemptedAt: time.Now()}); err != nil {
		t.Fatalf("save link failed: %v", err)
	}

	if err := db.DeleteBookmark("abc"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := db.GetBookmark("abc"); err == nil {
		t.Error("expected bookmark to be gone")
	}
	if _, err := db.GetLink("abc"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected link to be gone, got %v", err)
	}

	if err := db.DeleteBookmark("abc"); err == nil {
		t.Error("expected error deleting missing bookmark, got nil")
	}
}
