package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigwatch.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleItem(id string, publishedAt time.Time) model.Item {
	return model.Item{
		ItemID:             id,
		SourceID:           "usgs",
		SourceType:         model.SourceTypeGeoJSON,
		URL:                "https://example.com/item/" + id,
		Title:              "M 5.1 earthquake near Tokyo",
		Summary:            "A magnitude 5.1 earthquake struck near Tokyo.",
		PublishedAt:        publishedAt,
		FetchedAt:          publishedAt,
		Category:           model.CategoryEarthquake,
		LocationConfidence: model.ConfidenceExact,
		HashTitle:          "hash-title-" + id,
		HashContent:        "hash-content-" + id,
		SimHash:            123456,
	}
}

func TestStore_MigratesOnOpen(t *testing.T) {
	newTestStore(t) // Open already ran migrate(); a second Open must be idempotent.
	path := filepath.Join(t.TempDir(), "sigwatch.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()
}

func TestStore_InsertItem_DedupsByURLConstraintAsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixed := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.Set(fixed)
	t.Cleanup(func() { clock.Set(nil) })

	require.NoError(t, s.RegisterSource(ctx, model.Source{SourceID: "usgs", Name: "USGS", SourceType: model.SourceTypeGeoJSON, URL: "https://example.com", PollIntervalSeconds: 60, Enabled: true}))

	now := fixed.Now()
	item := sampleItem("item-1", now)
	require.NoError(t, s.InsertItem(ctx, item))

	dup := item
	dup.ItemID = "item-2"
	dup.HashTitle = "hash-title-item-2" // distinct title hash, so only the URL rule can match
	dup.URL = item.URL                  // same URL -> unique violation -> duplicate
	err := s.InsertItem(ctx, dup)
	assert.ErrorIs(t, err, store.ErrDuplicateItem)
}

func TestStore_InsertItem_DedupsByHashTitleWithin24h(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RegisterSource(ctx, model.Source{SourceID: "usgs", Name: "USGS", SourceType: model.SourceTypeGeoJSON, URL: "https://example.com", PollIntervalSeconds: 60, Enabled: true}))

	first := sampleItem("item-1", now)
	require.NoError(t, s.InsertItem(ctx, first))

	second := sampleItem("item-2", now.Add(2*time.Hour))
	second.URL = "https://example.com/item/item-2-distinct"
	err := s.InsertItem(ctx, second)
	assert.ErrorIs(t, err, store.ErrDuplicateItem)

	third := sampleItem("item-3", now.Add(25*time.Hour))
	third.URL = "https://example.com/item/item-3-distinct"
	assert.NoError(t, s.InsertItem(ctx, third))
}

func TestStore_RecordSuccessAndError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixed := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.Set(fixed)
	t.Cleanup(func() { clock.Set(nil) })

	require.NoError(t, s.RegisterSource(ctx, model.Source{SourceID: "usgs", Name: "USGS", SourceType: model.SourceTypeGeoJSON, URL: "https://example.com", PollIntervalSeconds: 60, Enabled: true}))

	require.NoError(t, s.RecordSuccess(ctx, "usgs", 200, 120, "etag-1", "", 60))
	src, err := s.GetSource(ctx, "usgs")
	require.NoError(t, err)
	assert.Equal(t, 0, src.ConsecutiveFailures)
	assert.Equal(t, "etag-1", src.ETag)
	assert.Equal(t, int64(1), src.SuccessCount)

	backoff, err := s.RecordError(ctx, "usgs", nil, nil, "timeout")
	require.NoError(t, err)
	assert.Equal(t, 120, backoff) // poll_interval(60) * 2^1

	src, err = s.GetSource(ctx, "usgs")
	require.NoError(t, err)
	assert.Equal(t, 1, src.ConsecutiveFailures)
	assert.Equal(t, int64(1), src.ErrorCount)
}

func TestStore_DueSources_OrdersByNextFetchAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	clock.Set(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { clock.Set(nil) })

	require.NoError(t, s.RegisterSource(ctx, model.Source{SourceID: "a", Name: "A", SourceType: model.SourceTypeRSS, URL: "https://a.example.com", PollIntervalSeconds: 60, Enabled: true}))
	require.NoError(t, s.RegisterSource(ctx, model.Source{SourceID: "b", Name: "B", SourceType: model.SourceTypeRSS, URL: "https://b.example.com", PollIntervalSeconds: 60, Enabled: true}))
	// Push "a" 30 minutes out so "b", due at now, sorts first.
	require.NoError(t, s.RecordSuccess(ctx, "a", 200, 0, "", "", 1800))

	due, err := s.DueSources(ctx, now.Add(time.Hour), 12)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "b", due[0].SourceID)
	assert.Equal(t, "a", due[1].SourceID)
}

func TestStore_IncidentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.RegisterSource(ctx, model.Source{SourceID: "usgs", Name: "USGS", SourceType: model.SourceTypeGeoJSON, URL: "https://example.com", PollIntervalSeconds: 60, Enabled: true}))
	item := sampleItem("item-1", now)
	require.NoError(t, s.InsertItem(ctx, item))

	inc := model.Incident{
		IncidentID:         "inc-1",
		Title:              item.Title,
		Summary:            item.Summary,
		Category:           item.Category,
		FirstSeenAt:        now,
		LastSeenAt:         now,
		LastItemAt:         now,
		Status:             model.StatusActive,
		LocationConfidence: item.LocationConfidence,
		ItemCount:          1,
		SourceCount:        1,
	}
	require.NoError(t, s.InsertIncident(ctx, inc, item.ItemID))

	candidates, err := s.CandidateIncidents(ctx, model.CategoryEarthquake, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "inc-1", candidates[0].IncidentID)

	itemCount, sourceCount, err := s.CountDistinctSources(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, itemCount)
	assert.Equal(t, 1, sourceCount)
}

func TestStore_PollingEnabledDefaultsTrue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	enabled, err := s.PollingEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, s.ConfigSet(ctx, "polling_enabled", "false"))
	enabled, err = s.PollingEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}
