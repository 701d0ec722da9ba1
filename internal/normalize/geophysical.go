package normalize

import (
	"context"
	"time"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// Earthquake maps a USGS-style GeoJSON feature into a canonical Item. The
// full title (e.g. "M 5.1 - 10km SSE of Tokyo, Japan") is kept verbatim per
// spec §4.7 ("earthquakes take the full title").
func (d Deps) Earthquake(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryEarthquake)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"earthquake"}
	setRaw(&item, rec, nil)
	return item, nil
}

// Tsunami maps a CAP tsunami bulletin into a canonical Item. Warning centers
// frequently omit geometry on basin-wide advisories; the location ladder
// falls back to the issuing center's static centroid in that case (spec §8
// scenario 5).
func (d Deps) Tsunami(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryTsunami)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"tsunami"}
	setRaw(&item, rec, nil)
	return item, nil
}

// Volcano maps an elevated-volcano RSS entry (one per active volcano, see
// spec §4.6 step 10) into a canonical Item, preserving the aviation color
// code and alert level in Raw for severity scoring.
func (d Deps) Volcano(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryVolcano)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"volcano"}
	setRaw(&item, rec, nil)
	return item, nil
}

// Wildfire maps a FIRMS hotspot CSV row into a canonical Item. FRP (fire
// radiative power) feeds the severity formula; brightness and FRP both ride
// along in Raw.
func (d Deps) Wildfire(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	if rec.Title == "" {
		rec.Title = "Wildfire hotspot detected"
	}
	if rec.GeomGeoJSON == "" {
		if lat, ok := parser.FloatField(rec.Fields, "latitude"); ok {
			if lon, ok := parser.FloatField(rec.Fields, "longitude"); ok {
				rec.GeomGeoJSON = pointGeoJSON(lat, lon)
			}
		}
	}
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryWildfire)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"wildfire"}
	setRaw(&item, rec, nil)
	return item, nil
}

func pointGeoJSON(lat, lon float64) string {
	return `{"type":"Point","coordinates":[` + formatFloat(lon) + "," + formatFloat(lat) + `]}`
}
