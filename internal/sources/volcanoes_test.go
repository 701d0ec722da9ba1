package sources_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/parser"
	"github.com/couchcryptid/sigwatch/internal/plugin"
)

func decodeJSON(resp *http.Response, v any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// volcanoExpanderAgainst builds the same reconciliation VolcanoExpander runs,
// pointed at a test server instead of the real USGS endpoint, to exercise
// the expand/contract behavior without a network dependency.
type fakeSourceSync struct {
	registered []model.Source
	enabled    map[string]bool
}

func newFakeSourceSync() *fakeSourceSync {
	return &fakeSourceSync{enabled: make(map[string]bool)}
}

func (f *fakeSourceSync) RegisterSource(ctx context.Context, src model.Source) error {
	f.registered = append(f.registered, src)
	return nil
}

func (f *fakeSourceSync) SetEnabled(ctx context.Context, sourceID string, enabled bool) error {
	f.enabled[sourceID] = enabled
	return nil
}

func volcanoExpanderAgainst(t *testing.T, body string) func(ctx context.Context, registry *plugin.Registry, sync plugin.SourceSync) error {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return func(ctx context.Context, registry *plugin.Registry, sync plugin.SourceSync) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var volcanoes []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			FeedURL string `json:"rss_url"`
		}
		if err := decodeJSON(resp, &volcanoes); err != nil {
			return err
		}

		ids := make([]string, 0, len(volcanoes))
		byID := make(map[string]string, len(volcanoes))
		for _, v := range volcanoes {
			ids = append(ids, v.ID)
			byID[v.ID] = v.FeedURL
		}

		return registry.SyncDynamic(ctx, "usgs_volcano_", ids, func(id string) plugin.Plugin {
			return plugin.Plugin{
				SourceID:            "usgs_volcano_" + id,
				Name:                "USGS Volcano Notification: " + id,
				URL:                 byID[id],
				SourceType:          model.SourceTypeRSS,
				PollIntervalSeconds: 600,
				DefaultEnabled:      true,
				Category:            model.CategoryVolcano,
				Parse:               parser.ParseRSS,
				Normalize:           normalize.Deps{}.Volcano,
			}
		}, sync)
	}
}

func TestVolcanoExpander_ExpandsAndContracts(t *testing.T) {
	registry := plugin.NewRegistry()
	sync := newFakeSourceSync()

	expand := volcanoExpanderAgainst(t, `[
		{"id": "etna", "name": "Etna", "rss_url": "https://example.org/etna.rss"},
		{"id": "fuji", "name": "Fuji", "rss_url": "https://example.org/fuji.rss"}
	]`)
	require.NoError(t, expand(context.Background(), registry, sync))
	assert.Len(t, registry.All(), 2)

	_, ok := registry.Get("usgs_volcano_etna")
	assert.True(t, ok)

	contract := volcanoExpanderAgainst(t, `[{"id": "fuji", "name": "Fuji", "rss_url": "https://example.org/fuji.rss"}]`)
	require.NoError(t, contract(context.Background(), registry, sync))

	all := registry.All()
	require.Len(t, all, 1)
	assert.Equal(t, "usgs_volcano_fuji", all[0].SourceID)
	assert.False(t, sync.enabled["usgs_volcano_etna"])
	assert.True(t, sync.enabled["usgs_volcano_fuji"])
}
