package normalize

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// SeverityRules computes an item's severity_score in [0,100] from its
// category and raw payload, per spec §4.7.1. This generalizes the teacher's
// one-function-per-source normalizeMagnitude/deriveSeverity pair into one
// table-driven function per category, since this system has many more
// categories than the teacher's three event types.
func SeverityRules(category model.Category, fields map[string]any) float64 {
	switch category {
	case model.CategoryEarthquake:
		return earthquakeSeverity(fields)
	case model.CategoryWeatherAlert:
		return weatherAlertSeverity(fields)
	case model.CategoryTropicalCyclone:
		return 75
	case model.CategoryTravelAdvisory:
		return travelAdvisorySeverity(fields)
	case model.CategoryTsunami:
		return 90
	case model.CategoryVolcano:
		return volcanoSeverity(fields)
	case model.CategoryWildfire:
		return wildfireSeverity(fields)
	case model.CategoryAviationDisrupt:
		return aviationSeverity(fields)
	case model.CategoryHealthAdvisory:
		return 55
	case model.CategoryCyberKEV:
		return 75
	case model.CategoryCyberCVE:
		return 60
	case model.CategoryDisaster:
		return 60
	case model.CategoryMaritimeWarning:
		return 50
	case model.CategoryNews, model.CategorySocial:
		return 40
	default:
		return 40
	}
}

func earthquakeSeverity(fields map[string]any) float64 {
	mag, ok := floatField(fields, "mag")
	if !ok {
		return 40
	}
	return clip((mag-3.0)*20, 0, 100)
}

func weatherAlertSeverity(fields map[string]any) float64 {
	switch strings.ToLower(stringField(fields, "severity")) {
	case "extreme":
		return 95
	case "severe":
		return 80
	case "moderate":
		return 55
	case "minor":
		return 35
	default:
		return 50
	}
}

func travelAdvisorySeverity(fields map[string]any) float64 {
	level, ok := intField(fields, "level")
	if !ok {
		return 65
	}
	switch {
	case level >= 4:
		return 85
	case level == 3:
		return 65
	default:
		return 50
	}
}

func volcanoSeverity(fields map[string]any) float64 {
	level, ok := intField(fields, "alert_level")
	if !ok {
		return 70
	}
	return clip(float64(level)*20, 0, 100)
}

func wildfireSeverity(fields map[string]any) float64 {
	frp, ok := floatField(fields, "frp")
	if !ok {
		return 55
	}
	return clip(frp*3, 0, 100)
}

// WildfireDensityBonus adds a per-incident bonus of item_count/10, capped at
// 20 (spec §4.7: "Category-specific density bonuses"). Exported for the
// clusterer, which applies it on top of the max(old, new) severity step
// during an incident update and clips the resulting score to 100.
func WildfireDensityBonus(itemCount int) float64 {
	bonus := float64(itemCount) / 10
	if bonus > 20 {
		bonus = 20
	}
	return bonus
}

func aviationSeverity(fields map[string]any) float64 {
	switch strings.ToLower(stringField(fields, "delay_kind")) {
	case "closure":
		return 90
	case "ground_stop":
		return 80
	case "gdp":
		return 65
	}
	if avg, ok := floatField(fields, "avg_delay_min"); ok {
		return clip(avg, 40, 80)
	}
	return 50
}

func floatField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intField(fields map[string]any, key string) (int, bool) {
	f, ok := floatField(fields, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
