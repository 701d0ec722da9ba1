package normalize

import "github.com/couchcryptid/sigwatch/internal/model"

// ForCategory returns the family normalizer for category, used by plugin
// registration to bind a Plugin's declared category to a Func without every
// plugin definition needing to import this package's method set directly.
func (d Deps) ForCategory(category model.Category) Func {
	switch category {
	case model.CategoryEarthquake:
		return d.Earthquake
	case model.CategoryTsunami:
		return d.Tsunami
	case model.CategoryVolcano:
		return d.Volcano
	case model.CategoryWildfire:
		return d.Wildfire
	case model.CategoryWeatherAlert:
		return d.WeatherAlert
	case model.CategoryTropicalCyclone:
		return d.TropicalCyclone
	case model.CategoryTravelAdvisory:
		return d.TravelAdvisory
	case model.CategoryHealthAdvisory:
		return d.HealthAdvisory
	case model.CategoryCyberCVE:
		return d.CyberCVE
	case model.CategoryCyberKEV:
		return d.CyberKEV
	case model.CategoryDisaster:
		return d.Disaster
	case model.CategoryAviationDisrupt:
		return d.AviationDisruption
	case model.CategoryMaritimeWarning:
		return d.MaritimeWarning
	case model.CategorySocial:
		return d.Social
	default:
		return d.News
	}
}
