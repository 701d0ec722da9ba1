package parser

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ParseAtom decodes an Atom feed into one RawRecord per entry. published/
// updated are RFC-3339 already. The link is the first alternate (or
// rel-less) <link>, else the first <link> of any rel; <id> becomes the
// ExternalID and is never used as the link.
func ParseAtom(data []byte) ([]RawRecord, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parser: atom: %w", err)
	}

	out := make([]RawRecord, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		rec := RawRecord{
			ExternalID: e.ID,
			Title:      strings.TrimSpace(e.Title),
			Summary:    strings.TrimSpace(e.Summary),
			Content:    strings.TrimSpace(e.Content),
			Link:       pickAtomLink(e.Links),
			Fields:     map[string]any{},
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
			rec.PublishedAt = t.UTC()
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated)); err == nil {
			rec.UpdatedAt = t.UTC()
		}
		if rec.PublishedAt.IsZero() {
			rec.PublishedAt = rec.UpdatedAt
		}
		out = append(out, rec)
	}
	return out, nil
}

func pickAtomLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}
