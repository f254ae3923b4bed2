// Package format parses bookmark collection files into index records:
// Markdown link lists organized under date headings, and Netscape-style
// HTML exports as written by browsers and Pinboard.
package format

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/henrytill/hbt/internal/core/db"
)

// ErrMissingDate is returned when a link appears before any date heading.
var ErrMissingDate = errors.New("missing date")

// dateLayout is the required form of a level-1 heading, e.g.
// "November 15, 2023".
const dateLayout = "January 2, 2006"

// The parser configuration never changes and goldmark parsers are safe to
// share; Parse creates per-call state.
var markdownParser = goldmark.New()

// Markdown parses a date-structured bookmark file. Level-1 headings are
// dates; every link under one is a bookmark saved on that date. Deeper
// headings tag the links that follow them: a level-N heading replaces all
// labels from its own depth down, so sibling sections do not inherit each
// other's labels. Text without a link is ignored.
func Markdown(r io.Reader) ([]db.Bookmark, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmark file: %w", err)
	}
	doc := markdownParser.Parser().Parse(text.NewReader(src))

	var (
		bookmarks []db.Bookmark
		date      time.Time
		dated     bool
		labels    []string
	)

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			heading := nodeText(node, src)
			if node.Level == 1 {
				t, err := time.Parse(dateLayout, heading)
				if err != nil {
					return ast.WalkStop, fmt.Errorf("heading %q is not a date like %q", heading, dateLayout)
				}
				date = t
				dated = true
				labels = labels[:0]
				return ast.WalkSkipChildren, nil
			}
			depth := node.Level - 2
			if depth > len(labels) {
				depth = len(labels)
			}
			labels = append(labels[:depth], heading)
			return ast.WalkSkipChildren, nil

		case *ast.Link:
			url := string(node.Destination)
			if !dated {
				return ast.WalkStop, fmt.Errorf("link %s: %w", url, ErrMissingDate)
			}
			bookmarks = append(bookmarks, dateBookmark(url, nodeText(node, src), labels, date))
			return ast.WalkSkipChildren, nil

		case *ast.AutoLink:
			url := string(node.URL(src))
			if !dated {
				return ast.WalkStop, fmt.Errorf("link %s: %w", url, ErrMissingDate)
			}
			bookmarks = append(bookmarks, dateBookmark(url, "", labels, date))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return bookmarks, nil
}

func dateBookmark(url, title string, labels []string, at time.Time) db.Bookmark {
	return db.Bookmark{
		ID:        bookmarkID(url),
		URL:       url,
		Title:     title,
		Tags:      append([]string(nil), labels...),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// nodeText collects the plain text under a node, dropping inline markup.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(src))
			case *ast.String:
				b.Write(t.Value)
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// bookmarkID derives the stable identifier for an imported URL: the MD5 of
// the URL, matching how Pinboard assigns post hashes. Re-importing the same
// URL updates the existing row instead of duplicating it.
func bookmarkID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
