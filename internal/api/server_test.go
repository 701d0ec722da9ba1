package api_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/api"
	"github.com/couchcryptid/sigwatch/internal/eventbus"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/observability"
	"github.com/couchcryptid/sigwatch/internal/store"
)

type fakeStore struct {
	incidents []store.IncidentSummary
	searchErr error
}

func (f *fakeStore) ListIncidents(ctx context.Context, category, status string, limit int) ([]store.IncidentSummary, error) {
	return f.incidents, nil
}

func (f *fakeStore) SearchItems(ctx context.Context, query string, limit int) ([]store.IncidentSummary, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.incidents, nil
}

type fakeReady struct{ err error }

func (f fakeReady) CheckReadiness(ctx context.Context) error { return f.err }

func newTestServer(t *testing.T, st *fakeStore, ready fakeReady) (*api.Server, *eventbus.Bus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.New(logger, observability.NewMetricsForTesting())
	srv := api.NewServer(":0", api.Deps{Store: st, Bus: bus, Ready: ready, Logger: logger, CORSOrigins: []string{"*"}})
	return srv, bus
}

func TestHandleHealth_AlwaysOK(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStore{}, fakeReady{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_ReflectsCheckerError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStore{}, fakeReady{err: errors.New("store not open")})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleListIncidents_ReturnsStoreResults(t *testing.T) {
	st := &fakeStore{incidents: []store.IncidentSummary{{IncidentID: "inc-1", Title: "M6.1 earthquake"}}}
	srv, _ := newTestServer(t, st, fakeReady{})
	req := httptest.NewRequest(http.MethodGet, "/api/incidents/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inc-1")
}

func TestHandleSearchIncidents_RequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStore{}, fakeReady{})
	req := httptest.NewRequest(http.MethodGet, "/api/incidents/search", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream_DeliversPublishedEvent(t *testing.T) {
	srv, bus := newTestServer(t, &fakeStore{}, fakeReady{})

	req := httptest.NewRequest(http.MethodGet, "/api/incidents/stream", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	bus.Publish(model.Event{Type: model.EventIncidentCreated, Data: map[string]any{"incident_id": "inc-9"}})

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(rec.Body.String(), "inc-9") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	assert.Contains(t, rec.Body.String(), "event: incident.created")
	assert.Contains(t, rec.Body.String(), "inc-9")
}
