package parser

import (
	"encoding/xml"
	"fmt"
)

// xmlItemDoc covers ad-hoc "item list" XML feeds that are neither RSS nor
// Atom (e.g. some aviation/maritime bulletin boards): a repeated <item> or
// <record> element directly under the root, with loosely-named children.
type xmlItemDoc struct {
	Items   []xmlGenericItem `xml:"item"`
	Records []xmlGenericItem `xml:"record"`
}

type xmlGenericItem struct {
	ID          string `xml:"id"`
	Title       string `xml:"title"`
	Headline    string `xml:"headline"`
	Summary     string `xml:"summary"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	URL         string `xml:"url"`
	Date        string `xml:"date"`
	Point       string `xml:"point"`
	Polygon     string `xml:"polygon"`
}

// ParseXMLItems decodes a generic XML item-list feed into RawRecords. It
// tries several common field-name aliases per element since these feeds
// don't follow a fixed schema, then falls back to RFC-2822/RFC-3339 date
// parsing in that order.
func ParseXMLItems(data []byte) ([]RawRecord, error) {
	var doc xmlItemDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parser: xmlitem: %w", err)
	}

	items := doc.Items
	if len(items) == 0 {
		items = doc.Records
	}

	out := make([]RawRecord, 0, len(items))
	for _, it := range items {
		rec := RawRecord{
			ExternalID: it.ID,
			Title:      firstNonEmpty(it.Title, it.Headline),
			Summary:    firstNonEmpty(it.Summary, it.Description),
			Link:       firstNonEmpty(it.Link, it.URL),
			Fields:     map[string]any{},
		}
		if t, ok := parseRFC2822(it.Date); ok {
			rec.PublishedAt = t
		} else if t, ok := parseCAPTime(it.Date); ok {
			rec.PublishedAt = t
		}
		if geom := geoRSSGeometry(it.Point, it.Polygon); geom != "" {
			rec.GeomGeoJSON = geom
		}
		out = append(out, rec)
	}
	return out, nil
}
