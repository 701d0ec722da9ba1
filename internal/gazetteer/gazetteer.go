// Package gazetteer loads the country/admin1/populated-place corpus once at
// startup and offers name -> (lat, lon, country) matching and prefix
// suggestion, used by the normalizers' location-confidence ladder (spec
// §4.5, B_place_match and C_country).
package gazetteer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// placeStore is the subset of store.Store the gazetteer depends on, kept
// narrow so package tests can fake it without a real database.
type placeStore interface {
	SeedPlaces(ctx context.Context, places []model.Place) error
	FindPlace(ctx context.Context, normalizedName string) (model.Place, bool, error)
	FindCountry(ctx context.Context, normalizedName string) (model.Place, bool, error)
	SuggestPlaces(ctx context.Context, prefix string, limit int) ([]model.Place, error)
}

// Gazetteer answers name lookups against the seeded place corpus, caching
// hits and misses with a bounded LRU in front of the store.
type Gazetteer struct {
	store placeStore
	cache *lruCache
}

// New wraps a store with an LRU cache of the given size.
func New(s placeStore, cacheSize int) *Gazetteer {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	return &Gazetteer{store: s, cache: newLRUCache(cacheSize)}
}

// LoadCorpusCSV reads rows of `kind,name,country,lat,lon` from path and
// seeds them into the store. Malformed rows are skipped; the corpus is
// expected to be curated offline.
func LoadCorpusCSV(ctx context.Context, s placeStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("gazetteer: open corpus: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var places []model.Place
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("gazetteer: read corpus: %w", err)
		}
		if len(record) < 5 {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		name := strings.TrimSpace(record[1])
		places = append(places, model.Place{
			Kind:           model.PlaceKind(strings.TrimSpace(record[0])),
			Name:           name,
			NormalizedName: NormalizeName(name),
			Country:        strings.TrimSpace(record[2]),
			Lat:            lat,
			Lon:            lon,
		})
	}

	if len(places) == 0 {
		return 0, nil
	}
	if err := s.SeedPlaces(ctx, places); err != nil {
		return 0, err
	}
	return len(places), nil
}

// NormalizeName casefolds and collapses whitespace, the same normalization
// the store uses as the (kind, normalized_name) key.
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

// Match looks up name against the populated/admin1/country corpus, caching
// both hits and misses.
func (g *Gazetteer) Match(ctx context.Context, name string) (model.Place, bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return model.Place{}, false, nil
	}

	if p, ok, cached := g.cache.get(key); cached {
		return p, ok, nil
	}

	p, ok, err := g.store.FindPlace(ctx, key)
	if err != nil {
		return model.Place{}, false, err
	}
	g.cache.put(key, p, ok)
	return p, ok, nil
}

// MatchCountry looks up name specifically among country-kind places, used
// for the C_country confidence rung.
func (g *Gazetteer) MatchCountry(ctx context.Context, name string) (model.Place, bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return model.Place{}, false, nil
	}
	return g.store.FindCountry(ctx, key)
}

// Suggest returns up to limit places whose normalized name starts with
// prefix, for the external API's autocomplete endpoint.
func (g *Gazetteer) Suggest(ctx context.Context, prefix string, limit int) ([]model.Place, error) {
	return g.store.SuggestPlaces(ctx, NormalizeName(prefix), limit)
}
