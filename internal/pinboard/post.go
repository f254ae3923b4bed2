// Package pinboard is a thin typed wrapper over the Pinboard v1 REST API
// and its export formats. The sync engine consumes it only through the
// Source adapter.
package pinboard

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Post is a bookmark as Pinboard reports it, in either the JSON API
// encoding or the XML export encoding.
//
// Wire quirks handled here: booleans are the strings "yes"/"no", tags are a
// single whitespace-separated string, and absent optional fields arrive as
// empty strings. Hash is the stable post identifier; Meta changes whenever
// any field of the post changes.
type Post struct {
	Href        string   `json:"href"`
	Time        string   `json:"time"`
	Description string   `json:"description"`
	Extended    string   `json:"extended"`
	Tags        []string `json:"-"`
	Hash        string   `json:"hash"`
	Meta        string   `json:"meta"`
	Shared      bool     `json:"-"`
	ToRead      bool     `json:"-"`
}

type yesNo bool

func (b *yesNo) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "yes":
		*b = true
	case "no":
		*b = false
	default:
		return fmt.Errorf("expected 'yes' or 'no', got %q", s)
	}
	return nil
}

// jsonPost is the raw JSON shape; Post's UnmarshalJSON normalizes it.
type jsonPost struct {
	Href        string `json:"href"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Tags        string `json:"tags"`
	Hash        string `json:"hash"`
	Meta        string `json:"meta"`
	Shared      yesNo  `json:"shared"`
	ToRead      yesNo  `json:"toread"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var raw jsonPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Post{
		Href:        raw.Href,
		Time:        raw.Time,
		Description: raw.Description,
		Extended:    raw.Extended,
		Tags:        splitTags(raw.Tags),
		Hash:        raw.Hash,
		Meta:        raw.Meta,
		Shared:      bool(raw.Shared),
		ToRead:      bool(raw.ToRead),
	}
	return nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}

// PostsFromJSON decodes a JSON array of posts, the shape returned by
// posts/all and written by Pinboard's JSON export.
func PostsFromJSON(r io.Reader) ([]Post, error) {
	var posts []Post
	if err := json.NewDecoder(r).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to parse posts JSON: %w", err)
	}
	return posts, nil
}

// xmlPost mirrors the attributes of a <post .../> element in the XML
// export: href, time, description, extended, tag, hash, meta, shared, toread.
type xmlPost struct {
	Href        string `xml:"href,attr"`
	Time        string `xml:"time,attr"`
	Description string `xml:"description,attr"`
	Extended    string `xml:"extended,attr"`
	Tag         string `xml:"tag,attr"`
	Hash        string `xml:"hash,attr"`
	Meta        string `xml:"meta,attr"`
	Shared      string `xml:"shared,attr"`
	ToRead      string `xml:"toread,attr"`
}

type xmlPosts struct {
	XMLName xml.Name  `xml:"posts"`
	Posts   []xmlPost `xml:"post"`
}

// PostsFromXML decodes Pinboard's XML export (<posts><post .../></posts>).
// Empty input yields no posts, matching an empty export.
func PostsFromXML(r io.Reader) ([]Post, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read posts XML: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var doc xmlPosts
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse posts XML: %w", err)
	}

	posts := make([]Post, 0, len(doc.Posts))
	for _, x := range doc.Posts {
		posts = append(posts, Post{
			Href:        x.Href,
			Time:        x.Time,
			Description: x.Description,
			Extended:    x.Extended,
			Tags:        splitTags(x.Tag),
			Hash:        x.Hash,
			Meta:        x.Meta,
			Shared:      strings.EqualFold(x.Shared, "yes"),
			ToRead:      strings.EqualFold(x.ToRead, "yes"),
		})
	}
	return posts, nil
}

// ParseTime parses a post timestamp. Pinboard emits RFC3339 with a Z
// suffix; exports from other tools occasionally omit the zone.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse post time %q: %w", s, err)
	}
	return t.UTC(), nil
}
