package pinboard

import (
	"strings"
	"testing"
	"time"
)

const samplePostsJSON = `[
  {
    "href": "https://github.com/janestreet/magic-trace",
    "description": "janestreet/magic-trace",
    "extended": "trace and analyze program execution",
    "meta": "92959a96fd69146c5fe7cbde6e5720f2",
    "hash": "a63a03f9b967f0e1d16cdd122b1177a6",
    "time": "2022-04-26T09:04:32Z",
    "shared": "no",
    "toread": "yes",
    "tags": "performance tracing"
  },
  {
    "href": "https://www.intel.com/content/www/us/en/developer/tools/oneapi/vtune-profiler.html",
    "description": "Intel VTune Profiler",
    "extended": "",
    "meta": "1f1b77cd5e3f50880d7b52b967b77119",
    "hash": "0bb57fb2e0e1532b786b4b9a24e3ab54",
    "time": "2022-04-26T09:05:10Z",
    "shared": "yes",
    "toread": "no",
    "tags": ""
  }
]`

func TestPostsFromJSON(t *testing.T) {
	posts, err := PostsFromJSON(strings.NewReader(samplePostsJSON))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	first := posts[0]
	if first.Href != "https://github.com/janestreet/magic-trace" {
		t.Errorf("unexpected href: %s", first.Href)
	}
	if first.Description != "janestreet/magic-trace" {
		t.Errorf("unexpected description: %s", first.Description)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "performance" || first.Tags[1] != "tracing" {
		t.Errorf("unexpected tags: %v", first.Tags)
	}
	if first.Shared {
		t.Error("expected shared=no to decode false")
	}
	if !first.ToRead {
		t.Error("expected toread=yes to decode true")
	}
	if first.Meta != "92959a96fd69146c5fe7cbde6e5720f2" {
		t.Errorf("unexpected meta: %s", first.Meta)
	}

	second := posts[1]
	if second.Tags != nil {
		t.Errorf("expected empty tags field to decode nil, got %v", second.Tags)
	}
	if !second.Shared || second.ToRead {
		t.Errorf("unexpected flags: shared=%v toread=%v", second.Shared, second.ToRead)
	}
}

func TestPostsFromJSON_InvalidBoolean(t *testing.T) {
	_, err := PostsFromJSON(strings.NewReader(`[{"href":"https://a","shared":"maybe","toread":"no"}]`))
	if err == nil {
		t.Error("expected error for non yes/no boolean, got nil")
	}
}

const samplePostsXML = `<?xml version="1.0" encoding="UTF-8"?>
<posts user="alice">
  <post href="https://github.com/KDAB/hotspot" time="2022-04-26T09:06:22Z"
        description="KDAB/hotspot" extended="GUI for perf"
        tag="performance linux" hash="20b9e74034bbdfdb161e9e4211cd6bcf"
        meta="0af1cd09dacc176b44f99b93ab84ebe3" shared="yes" toread="no" />
  <post href="https://kcachegrind.github.io/html/Home.html" time="2022-04-26T09:07:01Z"
        description="KCachegrind" extended=""
        tag="" hash="f344scf4e6deb7259b5f8b38formb731" shared="no" toread="yes" />
</posts>`

func TestPostsFromXML(t *testing.T) {
	t.Run("parses export attributes", func(t *testing.T) {
		posts, err := PostsFromXML(strings.NewReader(samplePostsXML))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %d", len(posts))
		}

		first := posts[0]
		if first.Href != "https://github.com/KDAB/hotspot" {
			t.Errorf("unexpected href: %s", first.Href)
		}
		if len(first.Tags) != 2 || first.Tags[0] != "performance" {
			t.Errorf("unexpected tags: %v", first.Tags)
		}
		if !first.Shared || first.ToRead {
			t.Errorf("unexpected flags: shared=%v toread=%v", first.Shared, first.ToRead)
		}
		if first.Meta != "0af1cd09dacc176b44f99b93ab84ebe3" {
			t.Errorf("unexpected meta: %s", first.Meta)
		}

		second := posts[1]
		if second.Tags != nil {
			t.Errorf("expected empty tag attribute to decode nil, got %v", second.Tags)
		}
		if second.Shared || !second.ToRead {
			t.Errorf("unexpected flags: shared=%v toread=%v", second.Shared, second.ToRead)
		}
	})

	t.Run("empty input yields no posts", func(t *testing.T) {
		posts, err := PostsFromXML(strings.NewReader("   \n"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if posts != nil {
			t.Errorf("expected nil posts, got %v", posts)
		}
	})

	t.Run("malformed input is an error", func(t *testing.T) {
		if _, err := PostsFromXML(strings.NewReader("<posts><post")); err == nil {
			t.Error("expected error for malformed XML, got nil")
		}
	})
}

func TestParseTime(t *testing.T) {
	t.Run("RFC3339 with zone", func(t *testing.T) {
		got, err := ParseTime("2022-04-26T09:04:32Z")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := time.Date(2022, 4, 26, 9, 4, 32, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("zoneless export timestamp is UTC", func(t *testing.T) {
		got, err := ParseTime("2022-04-26T09:04:32")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := time.Date(2022, 4, 26, 9, 4, 32, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("garbage is an error", func(t *testing.T) {
		if _, err := ParseTime("last tuesday"); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestPostID(t *testing.T) {
	t.Run("uses the source hash when present", func(t *testing.T) {
		id := PostID(Post{Href: "https://example.com", Hash: "abc123"})
		if id != "abc123" {
			t.Errorf("expected abc123, got %s", id)
		}
	})

	t.Run("derives MD5 of the URL otherwise", func(t *testing.T) {
		id := PostID(Post{Href: "https://example.com"})
		// md5("https://example.com")
		if id != "c984d06aafbecf6bc55569f964148ea3" {
			t.Errorf("unexpected derived ID: %s", id)
		}
	})
}

func TestToBookmarks(t *testing.T) {
	posts := []Post{
		{Href: "https://b", Hash: "b", Time: "2022-04-26T09:05:00Z"},
		{Href: "https://a", Hash: "a", Time: "2022-04-26T09:04:00Z"},
	}

	bookmarks, err := ToBookmarks(posts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(bookmarks) != 2 {
		t.Fatalf("expected 2 bookmarks, got %d", len(bookmarks))
	}
	if bookmarks[0].ID != "a" || bookmarks[1].ID != "b" {
		t.Errorf("expected oldest first, got %s then %s", bookmarks[0].ID, bookmarks[1].ID)
	}

	if _, err := ToBookmarks([]Post{{Href: "https://c", Time: "bad"}}); err == nil {
		t.Error("expected error for unparseable time, got nil")
	}
}
