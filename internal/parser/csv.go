package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// wellKnownCSVTimestampHeaders lists header names checked (case-insensitive)
// for a parseable timestamp, in preference order, across the CSV feeds seen
// in the wild (FIRMS hotspot exports use acq_date/acq_time separately).
var wellKnownCSVTimestampHeaders = []string{"published_at", "timestamp", "date", "acq_date"}

// ParseCSV decodes a header-row CSV into one RawRecord per data row, field
// names taken verbatim from the header (casefolded) and stashed in Fields
// for the normalizer to read (spec §4.4: "CSV -> ordered list of named-field
// records"). Geometry is left for the normalizer, which knows the source's
// lat/lon column names.
func ParseCSV(data []byte) ([]RawRecord, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parser: csv: read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []RawRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser: csv: read row: %w", err)
		}

		fields := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(row) {
				fields[h] = row[i]
			}
		}

		rec := RawRecord{Fields: fields}
		if v, ok := fields["id"].(string); ok {
			rec.ExternalID = v
		}
		if v, ok := fields["title"].(string); ok {
			rec.Title = v
		} else if v, ok := fields["name"].(string); ok {
			rec.Title = v
		}
		for _, key := range wellKnownCSVTimestampHeaders {
			if v, ok := fields[key].(string); ok && v != "" {
				if t, ok := parseFlexibleDate(v); ok {
					rec.PublishedAt = t
					break
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// floatField reads a named column from a CSV row's Fields as a float64,
// tolerant of the string encoding every column arrives in.
func floatField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FloatField is the exported form of floatField, used by normalizers to
// read a numeric CSV column (e.g. FIRMS brightness/FRP, lat/lon).
func FloatField(fields map[string]any, key string) (float64, bool) {
	return floatField(fields, key)
}
