package normalize

import (
	"context"
	"time"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// AviationDisruption maps an FAA-style XML/JSON delay feed record into a
// canonical Item, preserving the delay kind (ground_stop, gdp, closure) for
// severity scoring.
func (d Deps) AviationDisruption(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryAviationDisrupt)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"aviation_disruption"}
	if kind, ok := rec.Fields["delay_kind"].(string); ok && kind != "" {
		item.Tags = append(item.Tags, kind)
	}
	setRaw(&item, rec, nil)
	return item, nil
}

// MaritimeWarning maps a NAVTEX/maritime safety-information bulletin (XML
// item feed) into a canonical Item.
func (d Deps) MaritimeWarning(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryMaritimeWarning)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"maritime_warning"}
	setRaw(&item, rec, nil)
	return item, nil
}

// News maps a generic RSS/Atom news item into a canonical Item. The
// (source_id, external_id) key is typically the GUID or entry id, used by
// the Store's news-specific dedup rule (spec §4.6: "category=news and
// external_id is non-null").
func (d Deps) News(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryNews)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"news"}
	setRaw(&item, rec, nil)
	return item, nil
}

// Social maps one timeline post (e.g. a Bluesky firehose entry, fetched
// through the cursored work-unit path) into a canonical Item.
func (d Deps) Social(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	if rec.Title == "" {
		rec.Title = rec.Summary
	}
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategorySocial)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"social"}
	if handle, ok := rec.Fields["author"].(string); ok && handle != "" {
		item.Tags = append(item.Tags, handle)
	}
	setRaw(&item, rec, nil)
	return item, nil
}
