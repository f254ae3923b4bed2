package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/henrytill/hbt/internal/core/db"
)

// Netscape parses a NETSCAPE-Bookmark-file-1 export, the DT/DD list format
// written by browsers and by Pinboard's HTML export. Folder headings (DT>H3)
// become tags on every bookmark inside their DL, alongside the anchor's own
// comma-separated tags attribute.
//
// The format leaves DT and DD elements unclosed, so this runs on the
// tokenizer rather than a parsed tree.
func Netscape(r io.Reader) ([]db.Bookmark, error) {
	z := html.NewTokenizer(r)

	var (
		bookmarks []db.Bookmark
		folders   []string
		current   *db.Bookmark

		capture              *strings.Builder
		title, folder, notes strings.Builder
	)

	// flush commits the bookmark being built, attaching any description
	// text collected from its DD.
	flush := func() {
		capture = nil
		if current != nil {
			if ext := strings.TrimSpace(notes.String()); ext != "" {
				current.Extended = ext
			}
			bookmarks = append(bookmarks, *current)
			current = nil
		}
		notes.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to parse bookmark file: %w", err)
			}
			flush()
			return bookmarks, nil

		case html.TextToken:
			if capture != nil {
				capture.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "a":
				flush()
				current = anchorBookmark(tok.Attr, folders)
				title.Reset()
				capture = &title
			case "h3":
				flush()
				folder.Reset()
				capture = &folder
			case "dl":
				// The H3 seen since the last DL names this folder; the
				// top-level DL has none and contributes no tag.
				flush()
				folders = append(folders, strings.TrimSpace(folder.String()))
				folder.Reset()
			case "dd":
				capture = &notes
			case "dt":
				flush()
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.Data {
			case "a":
				if current != nil {
					current.Title = strings.TrimSpace(title.String())
				}
				capture = nil
			case "h3":
				capture = nil
			case "dl":
				flush()
				if len(folders) > 0 {
					folders = folders[:len(folders)-1]
				}
			}
		}
	}
}

// anchorBookmark builds a bookmark from a DT>A element's attributes.
// Anchors without an href carry no bookmark and are dropped.
func anchorBookmark(attrs []html.Attribute, folders []string) *db.Bookmark {
	var href, addDate, lastModified, tagsAttr, private, toread string
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "href":
			href = a.Val
		case "add_date":
			addDate = a.Val
		case "last_modified":
			lastModified = a.Val
		case "tags":
			tagsAttr = a.Val
		case "private":
			private = a.Val
		case "toread":
			toread = a.Val
		}
	}
	if href == "" {
		return nil
	}

	b := &db.Bookmark{
		ID:     bookmarkID(href),
		URL:    href,
		Shared: private != "1",
		ToRead: toread == "1",
	}
	b.CreatedAt = epochTime(addDate)
	b.UpdatedAt = epochTime(lastModified)
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}

	var tags []string
	for _, f := range folders {
		if f != "" {
			tags = append(tags, f)
		}
	}
	for _, t := range strings.Split(tagsAttr, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		// Pinboard exports the read-later flag as a literal tag.
		if strings.EqualFold(t, "toread") {
			b.ToRead = true
			continue
		}
		tags = append(tags, t)
	}
	b.Tags = tags
	return b
}

// epochTime parses the format's unix-seconds timestamp attributes.
// Missing or malformed values yield the zero time.
func epochTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
