package cluster

import "github.com/couchcryptid/sigwatch/internal/model"

// shapeTitleSummary picks the incident-level title/summary from a matched or
// founding item, per spec §4.7: "category-specific shaping: earthquakes take
// the full title; weather alerts prefer the summary; cyber uses the title".
func shapeTitleSummary(category model.Category, item model.Item) (title, summary string) {
	switch category {
	case model.CategoryEarthquake:
		return item.Title, item.Summary
	case model.CategoryWeatherAlert, model.CategoryTropicalCyclone:
		if item.Summary != "" {
			return item.Summary, item.Summary
		}
		return item.Title, item.Summary
	case model.CategoryCyberCVE, model.CategoryCyberKEV:
		return item.Title, item.Summary
	default:
		return item.Title, item.Summary
	}
}
