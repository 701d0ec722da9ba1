package normalize

import (
	"context"
	"time"

	"github.com/couchcryptid/sigwatch/internal/hashutil"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// WeatherAlert maps a CAP severe-weather alert into a canonical Item.
// Weather alerts prefer the alert summary/description over the often
// boilerplate headline for Item.Title shaping at the incident level (spec
// §4.7: "weather alerts prefer the summary"); the item title itself still
// carries the original headline.
func (d Deps) WeatherAlert(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryWeatherAlert)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"weather_alert"}
	if ev, ok := rec.Fields["event"].(string); ok && ev != "" {
		item.Tags = append(item.Tags, hashutil.NormalizeTitle(ev))
	}
	setRaw(&item, rec, nil)
	return item, nil
}

// TropicalCyclone maps a tropical-cyclone bulletin (NHC/JTWC-style RSS or
// XML) into a canonical Item.
func (d Deps) TropicalCyclone(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryTropicalCyclone)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"tropical_cyclone"}
	setRaw(&item, rec, nil)
	return item, nil
}
