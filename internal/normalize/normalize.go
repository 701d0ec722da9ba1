// Package normalize maps per-source-family raw records into the canonical
// Item schema: title/summary shaping, URL canonicalization, the hash/simhash
// triad, and the location-confidence ladder (spec §4.5). One function per
// source family; all share the ladder and hashing logic in this package.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sigwatch/internal/gazetteer"
	"github.com/couchcryptid/sigwatch/internal/hashutil"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// MaxSummaryLen is the ellipsis-truncation length for Item.Summary (spec §4.5).
const MaxSummaryLen = 300

// simHashTextLen bounds the summary portion fed into SimHash64, per spec
// §4.5: "simhash = SimHash64(title + ' ' + summary[:280])".
const simHashTextLen = 280

// Func is the shape every source-family normalizer implements: a pure
// mapping from one raw record to one canonical Item. Implementations may
// close over a Gazetteer and a SourceDefault table but touch no clock, store,
// or network beyond what's already in rec.
type Func func(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error)

// Deps bundles the shared collaborators every family normalizer needs.
type Deps struct {
	Gazetteer *gazetteer.Gazetteer
}

// base fills in every field common across families: identity, URL, title,
// summary, timestamps, category, hashes, simhash, and the location fields
// from the confidence ladder. Callers then set Tags and Raw on top.
func (d Deps) base(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time, category model.Category) (model.Item, error) {
	title := firstNonEmpty(rec.Title, "(untitled)")
	summary := hashutil.Summarize(rec.Summary, MaxSummaryLen)
	normalizedTitle := hashutil.NormalizeTitle(title)

	publishedAt := rec.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = fetchedAt
	}

	item := model.Item{
		ItemID:      uuid.NewString(),
		SourceID:    sourceID,
		ExternalID:  rec.ExternalID,
		URL:         hashutil.CanonicalizeURL(rec.Link),
		Title:       title,
		Summary:     summary,
		Content:     rec.Content,
		PublishedAt: publishedAt,
		FetchedAt:   fetchedAt,
		Category:    category,
		HashTitle:   hashutil.HashTitle(normalizedTitle),
		HashContent: hashutil.HashContent(normalizedTitle, summary, rec.Content),
	}
	if !rec.UpdatedAt.IsZero() {
		item.UpdatedAt = rec.UpdatedAt
	}

	simText := title + " " + truncateRunes(summary, simHashTextLen)
	item.SimHash = hashutil.SimHash64(simText)

	loc, err := d.locate(ctx, sourceID, rec, title, summary)
	if err != nil {
		return model.Item{}, fmt.Errorf("normalize: locate: %w", err)
	}
	item.GeomGeoJSON = loc.geomGeoJSON
	item.Lat = loc.lat
	item.Lon = loc.lon
	item.LocationName = loc.name
	item.LocationConfidence = loc.confidence
	item.LocationRationale = loc.rationale

	return item, nil
}

// setRaw marshals extra fields (adapter-specific payload) into Item.Raw,
// merging rec.Fields underneath so the full source record rides along.
func setRaw(item *model.Item, rec parser.RawRecord, extra map[string]any) {
	merged := make(map[string]any, len(rec.Fields)+len(extra))
	for k, v := range rec.Fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		item.Raw = "{}"
		return
	}
	item.Raw = string(b)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// clip bounds v to [lo, hi].
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
