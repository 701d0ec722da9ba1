package gazetteer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/gazetteer"
	"github.com/couchcryptid/sigwatch/internal/model"
)

type fakeStore struct {
	places map[string]model.Place
	lookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{places: make(map[string]model.Place)}
}

func (f *fakeStore) SeedPlaces(ctx context.Context, places []model.Place) error {
	for _, p := range places {
		f.places[p.NormalizedName] = p
	}
	return nil
}

func (f *fakeStore) FindPlace(ctx context.Context, normalizedName string) (model.Place, bool, error) {
	f.lookups++
	p, ok := f.places[normalizedName]
	return p, ok, nil
}

func (f *fakeStore) FindCountry(ctx context.Context, normalizedName string) (model.Place, bool, error) {
	p, ok := f.places[normalizedName]
	if !ok || p.Kind != model.PlaceKindCountry {
		return model.Place{}, false, nil
	}
	return p, true, nil
}

func (f *fakeStore) SuggestPlaces(ctx context.Context, prefix string, limit int) ([]model.Place, error) {
	var out []model.Place
	for _, p := range f.places {
		if len(p.NormalizedName) >= len(prefix) && p.NormalizedName[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestGazetteer_MatchCachesHitsAndMisses(t *testing.T) {
	fs := newFakeStore()
	fs.places["tokyo"] = model.Place{Kind: model.PlaceKindPopulated, Name: "Tokyo", NormalizedName: "tokyo", Country: "JP", Lat: 35.6, Lon: 139.7}
	g := gazetteer.New(fs, 16)

	ctx := context.Background()
	p, ok, err := g.Match(ctx, "  Tokyo  ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "JP", p.Country)
	assert.Equal(t, 1, fs.lookups)

	_, ok, err = g.Match(ctx, "Tokyo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fs.lookups, "second lookup should hit the cache, not the store")

	_, ok, err = g.Match(ctx, "Nowhereville")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, fs.lookups)

	_, ok, err = g.Match(ctx, "Nowhereville")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, fs.lookups, "cached miss should not re-query the store")
}

func TestGazetteer_MatchCountry(t *testing.T) {
	fs := newFakeStore()
	fs.places["japan"] = model.Place{Kind: model.PlaceKindCountry, Name: "Japan", NormalizedName: "japan"}
	g := gazetteer.New(fs, 16)

	p, ok, err := g.MatchCountry(context.Background(), "Japan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Japan", p.Name)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "san francisco", gazetteer.NormalizeName("  San    Francisco "))
}
