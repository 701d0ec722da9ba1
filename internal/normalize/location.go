package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// location is the resolved output of the confidence ladder (spec §4.5).
type location struct {
	geomGeoJSON string
	lat, lon    *float64
	name        string
	confidence  model.LocationConfidence
	rationale   string
}

// decimalCoordRe matches a loose "lat, lon" decimal-degree pair in free
// text, e.g. "35.68, 139.69" or "35.68 139.69".
var decimalCoordRe = regexp.MustCompile(`(-?\d{1,2}(?:\.\d+)?),?\s+(-?\d{1,3}(?:\.\d+)?)`)

// sourceDefaults maps a substring of a source_id to a static fallback
// centroid, used by regional centers that issue alerts without geometry
// (spec §4.5, C_source_default; spec §8 scenario 5: an "ntwc"-id source).
var sourceDefaults = []struct {
	substr string
	lat    float64
	lon    float64
	name   string
}{
	{"ntwc", 61.0, -150.0, "National Tsunami Warning Center, Anchorage"},
	{"ptwc", 21.3, -157.8, "Pacific Tsunami Warning Center, Honolulu"},
	{"jma", 35.68, 139.69, "Japan Meteorological Agency, Tokyo"},
}

// locate runs the location-confidence ladder: explicit geometry, then
// coordinates found in text, then a gazetteer place match, then a country
// match, then a static per-source default, else unknown.
func (d Deps) locate(ctx context.Context, sourceID string, rec parser.RawRecord, title, summary string) (location, error) {
	if rec.GeomGeoJSON != "" {
		lat, lon, err := centroidOf(rec.GeomGeoJSON)
		if err != nil {
			return location{}, err
		}
		return location{
			geomGeoJSON: rec.GeomGeoJSON,
			lat:         &lat,
			lon:         &lon,
			confidence:  model.ConfidenceExact,
			rationale:   "explicit geometry from source",
		}, nil
	}

	text := title + " " + summary
	if lat, lon, ok := decimalCoordsInText(text); ok {
		return location{
			lat:        &lat,
			lon:        &lon,
			confidence: model.ConfidenceCoordsInText,
			rationale:  "decimal-degree pair matched in text",
		}, nil
	}

	if d.Gazetteer != nil {
		if place, ok, err := d.Gazetteer.Match(ctx, title); err != nil {
			return location{}, err
		} else if ok {
			lat, lon := place.Lat, place.Lon
			return location{
				name:       place.Name,
				lat:        &lat,
				lon:        &lon,
				confidence: model.ConfidencePlaceMatch,
				rationale:  fmt.Sprintf("gazetteer match on %q", place.Name),
			}, nil
		}

		if country, matchedCountry, err := matchCountryInText(ctx, d.Gazetteer, text); err != nil {
			return location{}, err
		} else if matchedCountry {
			// Guarded per spec §9(a): the country centroid is only ever
			// assigned when a country was actually matched in this branch.
			lat, lon := country.Lat, country.Lon
			return location{
				name:       country.Name,
				lat:        &lat,
				lon:        &lon,
				confidence: model.ConfidenceCountry,
				rationale:  fmt.Sprintf("country name %q matched in text", country.Name),
			}, nil
		}
	}

	for _, sd := range sourceDefaults {
		if strings.Contains(strings.ToLower(sourceID), sd.substr) {
			lat, lon := sd.lat, sd.lon
			return location{
				name:       sd.name,
				lat:        &lat,
				lon:        &lon,
				confidence: model.ConfidenceSourceDefault,
				rationale:  fmt.Sprintf("static fallback centroid for source %q", sourceID),
			}, nil
		}
	}

	return location{confidence: model.ConfidenceUnknown, rationale: "no location signal found"}, nil
}

// decimalCoordsInText scans s for a lat,lon decimal-degree pair whose values
// fall within valid ranges.
func decimalCoordsInText(s string) (lat, lon float64, ok bool) {
	for _, m := range decimalCoordRe.FindAllStringSubmatch(s, -1) {
		latV, err1 := strconv.ParseFloat(m[1], 64)
		lonV, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if latV < -90 || latV > 90 || lonV < -180 || lonV > 180 {
			continue
		}
		return latV, lonV, true
	}
	return 0, 0, false
}

// matchCountryInText tries each whitespace-delimited run of capitalized
// words in s as a country name, returning the first gazetteer hit.
func matchCountryInText(ctx context.Context, gz gazetteerMatcher, s string) (model.Place, bool, error) {
	for _, candidate := range capitalizedPhrases(s) {
		place, ok, err := gz.MatchCountry(ctx, candidate)
		if err != nil {
			return model.Place{}, false, err
		}
		if ok {
			return place, true, nil
		}
	}
	return model.Place{}, false, nil
}

// gazetteerMatcher is the subset of *gazetteer.Gazetteer this file depends
// on, kept narrow for testability.
type gazetteerMatcher interface {
	MatchCountry(ctx context.Context, name string) (model.Place, bool, error)
}

// capitalizedPhrases extracts runs of 1-3 consecutive capitalized words from
// s, the cheap heuristic used to find candidate place/country names without
// full NLP (spec Non-goals: "fuzzy multilingual NLP").
func capitalizedPhrases(s string) []string {
	words := strings.Fields(s)
	var phrases []string
	for i := 0; i < len(words); i++ {
		if !startsUpper(words[i]) {
			continue
		}
		for n := 1; n <= 3 && i+n <= len(words); n++ {
			if n > 1 && !startsUpper(words[i+n-1]) {
				break
			}
			phrases = append(phrases, strings.Join(words[i:i+n], " "))
		}
	}
	return phrases
}

func startsUpper(w string) bool {
	w = strings.TrimFunc(w, func(r rune) bool { return !('A' <= r && r <= 'Z') && !('a' <= r && r <= 'z') })
	if w == "" {
		return false
	}
	return w[0] >= 'A' && w[0] <= 'Z'
}

// centroidOf computes a representative (lat, lon) for a GeoJSON geometry:
// the point itself, or the average of a polygon's (deduplicated) ring
// vertices.
func centroidOf(geomJSON string) (lat, lon float64, err error) {
	var geom struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal([]byte(geomJSON), &geom); err != nil {
		return 0, 0, fmt.Errorf("centroid: %w", err)
	}

	switch geom.Type {
	case "Point":
		var c [2]float64
		if err := json.Unmarshal(geom.Coordinates, &c); err != nil {
			return 0, 0, fmt.Errorf("centroid: point: %w", err)
		}
		return c[1], c[0], nil
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return 0, 0, fmt.Errorf("centroid: polygon: %w", err)
		}
		return ringCentroid(rings)
	case "MultiPolygon":
		var polys [][][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &polys); err != nil {
			return 0, 0, fmt.Errorf("centroid: multipolygon: %w", err)
		}
		var allRings [][][2]float64
		for _, p := range polys {
			allRings = append(allRings, p...)
		}
		return ringCentroid(allRings)
	default:
		return 0, 0, fmt.Errorf("centroid: unsupported geometry type %q", geom.Type)
	}
}

func ringCentroid(rings [][][2]float64) (lat, lon float64, err error) {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return 0, 0, fmt.Errorf("centroid: empty polygon")
	}
	pts := rings[0]
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1] // drop the closing vertex that repeats the first
	}
	var sumLat, sumLon float64
	n := 0
	for _, pt := range pts {
		sumLon += pt[0]
		sumLat += pt[1]
		n++
	}
	return sumLat / float64(n), sumLon / float64(n), nil
}
