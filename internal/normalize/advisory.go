package normalize

import (
	"context"
	"time"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// TravelAdvisory maps a state-department-style JSON record into a canonical
// Item, tagging the numeric advisory level when present.
func (d Deps) TravelAdvisory(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryTravelAdvisory)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"travel_advisory"}
	if country, ok := rec.Fields["country"].(string); ok && country != "" && item.LocationName == "" {
		item.LocationName = country
	}
	setRaw(&item, rec, nil)
	return item, nil
}

// HealthAdvisory maps a public-health advisory feed record (WHO/CDC-style
// RSS or JSON) into a canonical Item.
func (d Deps) HealthAdvisory(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryHealthAdvisory)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"health_advisory"}
	setRaw(&item, rec, nil)
	return item, nil
}

// CyberCVE maps an NVD-style CVE JSON record into a canonical Item. The
// title uses the CVE identifier and summary verbatim per spec §4.7 ("cyber
// uses the title").
func (d Deps) CyberCVE(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	if rec.Title == "" {
		rec.Title = rec.ExternalID
	}
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryCyberCVE)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"cyber_cve"}
	setRaw(&item, rec, nil)
	return item, nil
}

// CyberKEV maps a CISA Known Exploited Vulnerabilities catalog row into a
// canonical Item.
func (d Deps) CyberKEV(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	if rec.Title == "" {
		rec.Title = rec.ExternalID
	}
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryCyberKEV)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"cyber_kev", "known_exploited"}
	setRaw(&item, rec, nil)
	return item, nil
}

// Disaster maps a general relief-report record (ReliefWeb-style RSS/JSON)
// into a canonical Item.
func (d Deps) Disaster(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
	item, err := d.base(ctx, sourceID, rec, fetchedAt, model.CategoryDisaster)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = []string{"disaster"}
	setRaw(&item, rec, nil)
	return item, nil
}
