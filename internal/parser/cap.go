package parser

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// capAlertDoc covers both a bare <alert> document and an <cap:feed>/<alerts>
// wrapper some tsunami and weather warning centers use to batch several
// alerts in one response.
type capAlertDoc struct {
	XMLName xml.Name   `xml:"-"`
	Alerts  []capAlert `xml:"alert"`
}

type capAlert struct {
	Identifier string    `xml:"identifier"`
	Sent       string    `xml:"sent"`
	Info       []capInfo `xml:"info"`
}

type capInfo struct {
	Event       string   `xml:"event"`
	Headline    string   `xml:"headline"`
	Description string   `xml:"description"`
	Severity    string   `xml:"severity"`
	Urgency     string   `xml:"urgency"`
	Certainty   string   `xml:"certainty"`
	Effective   string   `xml:"effective"`
	Onset       string   `xml:"onset"`
	Web         string   `xml:"web"`
	Areas       []capArea `xml:"area"`
}

type capArea struct {
	AreaDesc string   `xml:"areaDesc"`
	Polygons []string `xml:"polygon"`
	Circles  []string `xml:"circle"`
}

// ParseCAP decodes a Common Alerting Protocol document (a single <alert>, or
// several wrapped in a feed) into one RawRecord per alert. Multiple <info>
// blocks on one alert (e.g. multi-language) use the first. Area polygons are
// composed into a GeoJSON Polygon/MultiPolygon, ring closed per spec §4.4.
func ParseCAP(data []byte) ([]RawRecord, error) {
	var doc capAlertDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parser: cap: %w", err)
	}

	alerts := doc.Alerts
	if len(alerts) == 0 {
		// Not a wrapper; try decoding as a bare single alert.
		var single capAlert
		if err := xml.Unmarshal(data, &single); err == nil && single.Identifier != "" {
			alerts = []capAlert{single}
		}
	}

	out := make([]RawRecord, 0, len(alerts))
	for _, a := range alerts {
		if len(a.Info) == 0 {
			continue
		}
		info := a.Info[0]

		rec := RawRecord{
			ExternalID: a.Identifier,
			Title:      firstNonEmpty(info.Headline, info.Event),
			Summary:    strings.TrimSpace(info.Description),
			Link:       strings.TrimSpace(info.Web),
			Fields: map[string]any{
				"event":     info.Event,
				"severity":  info.Severity,
				"urgency":   info.Urgency,
				"certainty": info.Certainty,
			},
		}
		if t, ok := parseCAPTime(firstNonEmpty(info.Effective, info.Onset, a.Sent)); ok {
			rec.PublishedAt = t
		}
		if geom := capGeometry(info.Areas); geom != "" {
			rec.GeomGeoJSON = geom
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseCAPTime parses CAP's RFC-3339-with-offset timestamp format.
func parseCAPTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// capGeometry composes one or more space-separated "lat,lon ..." polygon
// rings into a GeoJSON Polygon (one ring in total) or MultiPolygon (several
// rings, from one area or many),
// closing any ring whose first and last points differ.
func capGeometry(areas []capArea) string {
	var rings [][]string
	for _, area := range areas {
		for _, poly := range area.Polygons {
			if ring := capRing(poly); len(ring) > 0 {
				rings = append(rings, ring)
			}
		}
	}
	if len(rings) == 0 {
		return ""
	}
	if len(rings) == 1 {
		return fmt.Sprintf(`{"type":"Polygon","coordinates":[[%s]]}`, strings.Join(rings[0], ","))
	}
	var polys []string
	for _, ring := range rings {
		polys = append(polys, fmt.Sprintf(`[[%s]]`, strings.Join(ring, ",")))
	}
	return fmt.Sprintf(`{"type":"MultiPolygon","coordinates":[%s]}`, strings.Join(polys, ","))
}

// capRing parses CAP's "lat1,lon1 lat2,lon2 ..." point list into GeoJSON
// [lon,lat] coordinate pairs, closing the ring if needed.
func capRing(poly string) []string {
	pairs := strings.Fields(strings.TrimSpace(poly))
	if len(pairs) < 3 {
		return nil
	}
	var coords []string
	for _, p := range pairs {
		parts := strings.SplitN(p, ",", 2)
		if len(parts) != 2 {
			return nil
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return nil
		}
		coords = append(coords, fmt.Sprintf("[%v,%v]", lon, lat))
	}
	if coords[0] != coords[len(coords)-1] {
		coords = append(coords, coords[0])
	}
	return coords
}
