package parser

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GeoRSSPoint string `xml:"point"`
	GeoRSSPoly  string `xml:"polygon"`
}

// rfc2822Layouts covers the common pubDate variants seen across RSS feeds.
var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
}

// ParseRSS decodes an RSS 2.0 channel into one RawRecord per item. Dates are
// normalized from RFC-2822 to UTC; a GeoRSS point or polygon, when present,
// is converted to a GeoJSON geometry.
func ParseRSS(data []byte) ([]RawRecord, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parser: rss: %w", err)
	}

	out := make([]RawRecord, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		rec := RawRecord{
			ExternalID: firstNonEmpty(item.GUID, item.Link),
			Title:      strings.TrimSpace(item.Title),
			Summary:    strings.TrimSpace(item.Description),
			Link:       strings.TrimSpace(item.Link),
			Fields:     map[string]any{},
		}
		if t, ok := parseRFC2822(item.PubDate); ok {
			rec.PublishedAt = t
		}
		if geom := geoRSSGeometry(item.GeoRSSPoint, item.GeoRSSPoly); geom != "" {
			rec.GeomGeoJSON = geom
		}
		out = append(out, rec)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// flexibleDateLayouts covers the plain-date and date-time formats seen in
// CSV exports (e.g. FIRMS acq_date) that are not RFC-2822.
var flexibleDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseFlexibleDate tries RFC-2822 first (RSS's native format), then the
// plain date/date-time layouts common in CSV exports.
func parseFlexibleDate(s string) (time.Time, bool) {
	if t, ok := parseRFC2822(s); ok {
		return t, ok
	}
	s = strings.TrimSpace(s)
	for _, layout := range flexibleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseRFC2822(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range rfc2822Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// geoRSSGeometry converts a GeoRSS "lat lon" point or space-separated
// polygon ring into a GeoJSON geometry object. GeoRSS orders coordinates
// lat,lon; GeoJSON requires lon,lat.
func geoRSSGeometry(point, polygon string) string {
	if p := strings.Fields(point); len(p) == 2 {
		return fmt.Sprintf(`{"type":"Point","coordinates":[%s,%s]}`, p[1], p[0])
	}
	if fields := strings.Fields(polygon); len(fields) >= 6 && len(fields)%2 == 0 {
		var coords []string
		for i := 0; i+1 < len(fields); i += 2 {
			coords = append(coords, fmt.Sprintf("[%s,%s]", fields[i+1], fields[i]))
		}
		if coords[0] != coords[len(coords)-1] {
			coords = append(coords, coords[0])
		}
		return fmt.Sprintf(`{"type":"Polygon","coordinates":[[%s]]}`, strings.Join(coords, ","))
	}
	return ""
}
