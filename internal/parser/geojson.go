package parser

import (
	"encoding/json"
	"fmt"
	"time"
)

type geoJSONFeatureCollection struct {
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	ID         any            `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// ParseGeoJSON decodes a GeoJSON FeatureCollection (e.g. USGS earthquake
// feeds, FIRMS hotspot feeds republished as GeoJSON) into one RawRecord per
// feature. Geometry passes through unmodified, per spec §4.5.
func ParseGeoJSON(data []byte) ([]RawRecord, error) {
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parser: geojson: %w", err)
	}

	out := make([]RawRecord, 0, len(fc.Features))
	for _, f := range fc.Features {
		rec := RawRecord{
			Fields:  f.Properties,
			Content: "",
		}
		if f.ID != nil {
			rec.ExternalID = fmt.Sprintf("%v", f.ID)
		}
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			rec.GeomGeoJSON = string(f.Geometry)
		}
		if title, ok := f.Properties["title"].(string); ok {
			rec.Title = title
		} else if place, ok := f.Properties["place"].(string); ok {
			rec.Title = place
		}
		if summary, ok := f.Properties["description"].(string); ok {
			rec.Summary = summary
		}
		if url, ok := f.Properties["url"].(string); ok {
			rec.Link = url
		}
		if ms, ok := numericField(f.Properties, "time"); ok {
			rec.PublishedAt = time.UnixMilli(int64(ms)).UTC()
		}
		if ms, ok := numericField(f.Properties, "updated"); ok {
			rec.UpdatedAt = time.UnixMilli(int64(ms)).UTC()
		}
		out = append(out, rec)
	}
	return out, nil
}

func numericField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
