package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/fetcher"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/observability"
	"github.com/couchcryptid/sigwatch/internal/parser"
	"github.com/couchcryptid/sigwatch/internal/plugin"
	"github.com/couchcryptid/sigwatch/internal/scheduler"
	"github.com/couchcryptid/sigwatch/internal/store"
)

type fakeStore struct {
	polling         bool
	due             []model.Source
	overrideCalled  bool
	overrideAt      time.Time
	cursorSet       string
	insertErr       error
	inserted        []model.Item
}

func (f *fakeStore) PollingEnabled(ctx context.Context) (bool, error) { return f.polling, nil }
func (f *fakeStore) RegisterSource(ctx context.Context, src model.Source) error { return nil }
func (f *fakeStore) SetEnabled(ctx context.Context, sourceID string, enabled bool) error { return nil }
func (f *fakeStore) DueSources(ctx context.Context, now time.Time, limit int) ([]model.Source, error) {
	due := f.due
	f.due = nil
	return due, nil
}
func (f *fakeStore) GetSource(ctx context.Context, sourceID string) (model.Source, error) {
	return model.Source{SourceID: sourceID}, nil
}
func (f *fakeStore) OverrideNextFetchAt(ctx context.Context, sourceID string, at time.Time) error {
	f.overrideCalled = true
	f.overrideAt = at
	return nil
}
func (f *fakeStore) SetCursor(ctx context.Context, sourceID, cursor string) error {
	f.cursorSet = cursor
	return nil
}
func (f *fakeStore) InsertItem(ctx context.Context, item model.Item) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, item)
	return nil
}
func (f *fakeStore) RunRetention(ctx context.Context, itemsRetentionDays, incidentsRetentionDays int) error {
	return nil
}

type fakeHealth struct {
	successes int
	errors    []string
}

func (f *fakeHealth) RecordSuccess(ctx context.Context, src model.Source, status int, elapsedMS int64, etag, lastModified, outcome string, maxAgeSeconds int) {
	f.successes++
}
func (f *fakeHealth) RecordError(ctx context.Context, src model.Source, status *int, elapsedMS *int64, errorKind string) int {
	f.errors = append(f.errors, errorKind)
	return 30
}

type fakeClusterer struct {
	calls int
}

func (f *fakeClusterer) Cluster(ctx context.Context, item model.Item) (model.Incident, model.EventType, error) {
	f.calls++
	return model.Incident{IncidentID: "inc-1"}, model.EventIncidentCreated, nil
}

type fakeBus struct {
	published []model.Event
}

func (f *fakeBus) Publish(evt model.Event) { f.published = append(f.published, evt) }

func samplePlugin(sourceID, url string) plugin.Plugin {
	return plugin.Plugin{
		SourceID:            sourceID,
		Name:                "Test Source",
		URL:                 url,
		SourceType:          model.SourceTypeRSS,
		PollIntervalSeconds: 60,
		DefaultEnabled:      true,
		Parse: func(data []byte) ([]parser.RawRecord, error) {
			return []parser.RawRecord{{ExternalID: "1", Title: "quake near coast"}}, nil
		},
		Normalize: func(ctx context.Context, sourceID string, rec parser.RawRecord, fetchedAt time.Time) (model.Item, error) {
			return model.Item{ItemID: rec.ExternalID, SourceID: sourceID, Category: model.CategoryEarthquake}, nil
		},
	}
}

func newTestScheduler(t *testing.T, st *fakeStore, h *fakeHealth, cl *fakeClusterer, bus *fakeBus, p plugin.Plugin) *scheduler.Scheduler {
	t.Helper()
	clock.Set(clockwork.NewFakeClockAt(time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { clock.Set(clockwork.NewRealClock()) })

	registry := plugin.NewRegistry()
	require.NoError(t, registry.Register(p))

	f := fetcher.New("sigwatch-test/1.0", 50, 10)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scheduler.New(st, registry, f, h, cl, bus, logger, observability.NewMetricsForTesting(), scheduler.Config{})
}

func TestScheduler_WorkUnitParsesAndClustersOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<rss></rss>"))
	}))
	defer srv.Close()

	st := &fakeStore{polling: true, due: []model.Source{{SourceID: "rss-1", SourceType: model.SourceTypeRSS}}}
	h := &fakeHealth{}
	cl := &fakeClusterer{}
	bus := &fakeBus{}
	sch := newTestScheduler(t, st, h, cl, bus, samplePlugin("rss-1", srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runOnePass(t, sch, ctx)

	assert.Equal(t, 1, h.successes)
	assert.Len(t, st.inserted, 1)
	assert.Equal(t, 1, cl.calls)
	require.Len(t, bus.published, 1)
}

func TestScheduler_WorkUnit304SkipsParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	st := &fakeStore{polling: true, due: []model.Source{{SourceID: "rss-1", SourceType: model.SourceTypeRSS}}}
	h := &fakeHealth{}
	cl := &fakeClusterer{}
	bus := &fakeBus{}
	sch := newTestScheduler(t, st, h, cl, bus, samplePlugin("rss-1", srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runOnePass(t, sch, ctx)

	assert.Equal(t, 1, h.successes)
	assert.Empty(t, st.inserted)
	assert.Zero(t, cl.calls)
}

func TestScheduler_WorkUnit429RecordsErrorAndOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	st := &fakeStore{polling: true, due: []model.Source{{SourceID: "rss-1", SourceType: model.SourceTypeRSS}}}
	h := &fakeHealth{}
	cl := &fakeClusterer{}
	bus := &fakeBus{}
	sch := newTestScheduler(t, st, h, cl, bus, samplePlugin("rss-1", srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runOnePass(t, sch, ctx)

	require.Len(t, h.errors, 1)
	assert.Equal(t, "http_429", h.errors[0])
	assert.True(t, st.overrideCalled)
}

func TestScheduler_WorkUnitDuplicateItemIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<rss></rss>"))
	}))
	defer srv.Close()

	st := &fakeStore{polling: true, due: []model.Source{{SourceID: "rss-1", SourceType: model.SourceTypeRSS}}, insertErr: store.ErrDuplicateItem}
	h := &fakeHealth{}
	cl := &fakeClusterer{}
	bus := &fakeBus{}
	sch := newTestScheduler(t, st, h, cl, bus, samplePlugin("rss-1", srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runOnePass(t, sch, ctx)

	assert.Empty(t, st.inserted)
	assert.Zero(t, cl.calls)
}

func TestScheduler_WorkUnitParseErrorRecordsHealthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not xml"))
	}))
	defer srv.Close()

	p := samplePlugin("rss-1", srv.URL)
	p.Parse = func(data []byte) ([]parser.RawRecord, error) { return nil, errors.New("boom") }

	st := &fakeStore{polling: true, due: []model.Source{{SourceID: "rss-1", SourceType: model.SourceTypeRSS}}}
	h := &fakeHealth{}
	cl := &fakeClusterer{}
	bus := &fakeBus{}
	sch := newTestScheduler(t, st, h, cl, bus, p)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runOnePass(t, sch, ctx)

	require.Len(t, h.errors, 1)
	assert.Equal(t, "parse_error", h.errors[0])
}

// runOnePass lets Run's loop pick up the single seeded due source and then
// cancels, since fakeStore.DueSources only yields its batch once.
func runOnePass(t *testing.T, sch *scheduler.Scheduler, ctx context.Context) {
	t.Helper()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sch.Run(runCtx) }()

	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
