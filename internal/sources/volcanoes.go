package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/parser"
	"github.com/couchcryptid/sigwatch/internal/plugin"
)

// volcanoPluginPrefix namespaces dynamically-registered per-volcano RSS
// plugins so SyncDynamic can tell them apart from everything else in the
// registry.
const volcanoPluginPrefix = "usgs_volcano_"

// elevatedVolcanoesURL lists volcanoes currently above normal/green alert
// level. The feed wraps each with its own per-volcano RSS notification URL.
const elevatedVolcanoesURL = "https://volcanoes.usgs.gov/vns/api/elevated.json"

type elevatedVolcano struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FeedURL string `json:"rss_url"`
}

// VolcanoExpander fetches the current elevated-volcano list and reconciles
// the registry against it, registering one RSS plugin per volcano and
// disabling any whose id has dropped off the list (spec §4.6 step 10: "a
// list of currently elevated volcanoes expands into per-volcano RSS
// plugins; newly missing IDs are disabled").
func VolcanoExpander(deps normalize.Deps) func(ctx context.Context, registry *plugin.Registry, sync plugin.SourceSync) error {
	return func(ctx context.Context, registry *plugin.Registry, sync plugin.SourceSync) error {
		volcanoes, err := fetchElevatedVolcanoes(ctx)
		if err != nil {
			return fmt.Errorf("sources: volcano expander: %w", err)
		}

		byID := make(map[string]elevatedVolcano, len(volcanoes))
		ids := make([]string, 0, len(volcanoes))
		for _, v := range volcanoes {
			byID[v.ID] = v
			ids = append(ids, v.ID)
		}

		return registry.SyncDynamic(ctx, volcanoPluginPrefix, ids, func(id string) plugin.Plugin {
			v := byID[id]
			return plugin.Plugin{
				SourceID:            volcanoPluginPrefix + id,
				Name:                "USGS Volcano Notification: " + v.Name,
				URL:                 v.FeedURL,
				SourceType:          model.SourceTypeRSS,
				PollIntervalSeconds: 600,
				DefaultEnabled:      true,
				Category:            model.CategoryVolcano,
				Parse:               parser.ParseRSS,
				Normalize:           deps.Volcano,
			}
		}, sync)
	}
}

func fetchElevatedVolcanoes(ctx context.Context) ([]elevatedVolcano, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, elevatedVolcanoesURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var volcanoes []elevatedVolcano
	if err := json.Unmarshal(data, &volcanoes); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return volcanoes, nil
}
