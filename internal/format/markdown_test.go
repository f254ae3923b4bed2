package format

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMarkdown(t *testing.T) {
	nov15 := time.Date(2023, time.November, 15, 0, 0, 0, 0, time.UTC)

	t.Run("empty input yields no bookmarks", func(t *testing.T) {
		got, err := Markdown(strings.NewReader(""))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no bookmarks, got %d", len(got))
		}
	})

	t.Run("link before any date heading is an error", func(t *testing.T) {
		_, err := Markdown(strings.NewReader("[Example](https://example.com)\n"))
		if !errors.Is(err, ErrMissingDate) {
			t.Errorf("expected ErrMissingDate, got %v", err)
		}
	})

	t.Run("date heading alone yields no bookmarks", func(t *testing.T) {
		got, err := Markdown(strings.NewReader("# November 15, 2023\n"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no bookmarks, got %d", len(got))
		}
	})

	t.Run("heading that is not a date is an error", func(t *testing.T) {
		_, err := Markdown(strings.NewReader("# My Bookmarks\n"))
		if err == nil {
			t.Error("expected error for non-date heading, got nil")
		}
	})

	t.Run("links under a date become bookmarks on that date", func(t *testing.T) {
		input := `# November 15, 2023

- [First](https://first.example)
- [Second](https://second.example)
`
		got, err := Markdown(strings.NewReader(input))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 bookmarks, got %d", len(got))
		}
		if got[0].URL != "https://first.example" || got[0].Title != "First" {
			t.Errorf("unexpected first bookmark: %+v", got[0])
		}
		if !got[0].CreatedAt.Equal(nov15) || !got[1].UpdatedAt.Equal(nov15) {
			t.Errorf("expected bookmarks dated %v, got %v and %v", nov15, got[0].CreatedAt, got[1].UpdatedAt)
		}
		if len(got[0].Tags) != 0 {
			t.Errorf("expected no tags without section headings, got %v", got[0].Tags)
		}
	})

	t.Run("autolink yields an untitled bookmark", func(t *testing.T) {
		input := "# November 15, 2023\n\n<https://bare.example>\n"
		got, err := Markdown(strings.NewReader(input))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 bookmark, got %d", len(got))
		}
		if got[0].URL != "https://bare.example" || got[0].Title != "" {
			t.Errorf("unexpected bookmark: %+v", got[0])
		}
	})

	t.Run("section headings tag the links below them", func(t *testing.T) {
		input := `# November 15, 2023

## Programming

- [Go](https://go.dev)

### Compilers

- [SSA](https://ssa.example)

## Cooking

- [Bread](https://bread.example)
`
		got, err := Markdown(strings.NewReader(input))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 bookmarks, got %d", len(got))
		}
		want := [][]string{
			{"Programming"},
			{"Programming", "Compilers"},
			{"Cooking"},
		}
		for i, tags := range want {
			if !reflect.DeepEqual(got[i].Tags, tags) {
				t.Errorf("bookmark %d: expected tags %v, got %v", i, tags, got[i].Tags)
			}
		}
	})

	t.Run("a new date heading clears the section labels", func(t *testing.T) {
		input := `# November 15, 2023

## Programming

- [Go](https://go.dev)

# November 16, 2023

- [Plain](https://plain.example)
`
		got, err := Markdown(strings.NewReader(input))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 bookmarks, got %d", len(got))
		}
		if len(got[1].Tags) != 0 {
			t.Errorf("expected second bookmark untagged, got %v", got[1].Tags)
		}
		nov16 := time.Date(2023, time.November, 16, 0, 0, 0, 0, time.UTC)
		if !got[1].CreatedAt.Equal(nov16) {
			t.Errorf("expected second bookmark dated %v, got %v", nov16, got[1].CreatedAt)
		}
	})

	t.Run("items without links are ignored", func(t *testing.T) {
		input := `# November 15, 2023

- just a note with no link
- [Linked](https://linked.example)
`
		got, err := Markdown(strings.NewReader(input))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].URL != "https://linked.example" {
			t.Errorf("expected only the linked item, got %+v", got)
		}
	})

	t.Run("derives the same ID for the same URL", func(t *testing.T) {
		input := "# November 15, 2023\n\n[A](https://example.com)\n"
		got, err := Markdown(strings.NewReader(input))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		// MD5 of the URL, the same scheme Pinboard uses for post hashes.
		if got[0].ID != "c984d06aafbecf6bc55569f964148ea3" {
			t.Errorf("unexpected ID %q", got[0].ID)
		}
	})
}
