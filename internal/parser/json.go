package parser

import (
	"encoding/json"
	"fmt"
)

// jsonArrayKeys lists the well-known top-level keys under which a JSON API
// response wraps its array of records, tried in order (spec §4.4: "one of
// the well-known array-shaped payloads").
var jsonArrayKeys = []string{"destinations", "countries", "items", "events", "vulnerabilities", "data"}

// ParseJSON decodes an arbitrary JSON record list: either a bare top-level
// array, or an object with one of the well-known wrapper keys. Each element
// becomes a RawRecord with every top-level object field preserved in Fields
// for the normalizer to read; the record's own ExternalID, Title, Summary and
// Link are taken from "id", "title"/"name", "summary"/"description" and
// "url"/"link" when present.
func ParseJSON(data []byte) ([]RawRecord, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parser: json: %w", err)
	}

	records, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		var fields map[string]any
		if err := json.Unmarshal(r, &fields); err != nil {
			continue // skip non-object entries rather than fail the whole batch
		}
		rec := RawRecord{Fields: fields}
		if v, ok := fields["id"].(string); ok {
			rec.ExternalID = v
		} else if v, ok := fields["id"].(float64); ok {
			rec.ExternalID = fmt.Sprintf("%v", v)
		}
		if v, ok := fields["title"].(string); ok {
			rec.Title = v
		} else if v, ok := fields["name"].(string); ok {
			rec.Title = v
		}
		if v, ok := fields["summary"].(string); ok {
			rec.Summary = v
		} else if v, ok := fields["description"].(string); ok {
			rec.Summary = v
		}
		if v, ok := fields["url"].(string); ok {
			rec.Link = v
		} else if v, ok := fields["link"].(string); ok {
			rec.Link = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// extractJSONArray returns the top-level array, whether the payload is a
// bare array or an object wrapping one under a well-known key.
func extractJSONArray(raw json.RawMessage) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parser: json: not an array or object")
	}
	for _, key := range jsonArrayKeys {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, &arr); err == nil {
				return arr, nil
			}
		}
	}
	return nil, nil
}
