package cluster

import "github.com/couchcryptid/sigwatch/internal/model"

// thresholds bundles a category's candidate-search lookback and its
// tight/loose match thresholds (spec §4.7, "Match thresholds" and
// "Candidate search").
type thresholds struct {
	lookback  lookbackKind
	tightDist int
	looseDist int
	jaccard   float64
	mergeKM   float64
	mergeDist int
}

type lookbackKind int

const (
	lookback24h lookbackKind = iota
	lookback48h
)

// forCategory returns the match thresholds for category, defaulting to the
// "other" row of the spec §4.7 table.
func forCategory(category model.Category) thresholds {
	switch category {
	case model.CategoryNews:
		return thresholds{lookback: lookback24h, tightDist: 4, looseDist: 10, jaccard: 0.60, mergeKM: 40, mergeDist: 2}
	case model.CategoryEarthquake, model.CategoryVolcano:
		return thresholds{lookback: lookback48h, tightDist: 8, looseDist: 14, jaccard: 0.40, mergeKM: 120, mergeDist: 4}
	case model.CategoryTsunami:
		return thresholds{lookback: lookback48h, tightDist: 8, looseDist: 14, jaccard: 0.40, mergeKM: 2500, mergeDist: 4}
	case model.CategoryWildfire:
		return thresholds{lookback: lookback48h, tightDist: 6, looseDist: 12, jaccard: 0.45, mergeKM: 50, mergeDist: 3}
	case model.CategoryAviationDisrupt:
		return thresholds{lookback: lookback48h, tightDist: 6, looseDist: 12, jaccard: 0.45, mergeKM: 30, mergeDist: 3}
	case model.CategoryWeatherAlert:
		return thresholds{lookback: lookback48h, tightDist: 6, looseDist: 12, jaccard: 0.45, mergeKM: 120, mergeDist: 3}
	case model.CategoryTropicalCyclone:
		return thresholds{lookback: lookback48h, tightDist: 6, looseDist: 12, jaccard: 0.45, mergeKM: 500, mergeDist: 3}
	default:
		return thresholds{lookback: lookback48h, tightDist: 6, looseDist: 12, jaccard: 0.45, mergeKM: 150, mergeDist: 3}
	}
}

func (t thresholds) lookbackHours() int {
	if t.lookback == lookback24h {
		return 24
	}
	return 48
}

// matchKind classifies a candidate incident's distance against the item.
type matchKind int

const (
	matchNone matchKind = iota
	matchTight
	matchLoose
)

// classify applies the tight/loose/none decision from spec §4.7: a tight
// Hamming distance always matches; a loose distance matches only if the
// token-set Jaccard of title+summary also clears the category's floor.
func (t thresholds) classify(dist int, jaccard float64) matchKind {
	switch {
	case dist <= t.tightDist:
		return matchTight
	case dist <= t.looseDist && jaccard >= t.jaccard:
		return matchLoose
	default:
		return matchNone
	}
}
