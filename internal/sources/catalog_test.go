package sources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/config"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/sources"
)

func baseConfig() *config.Config {
	return &config.Config{}
}

func TestCatalog_CoreSourcesAlwaysPresent(t *testing.T) {
	plugins := sources.Catalog(baseConfig(), normalize.Deps{})

	ids := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		ids[p.SourceID] = true
	}

	for _, want := range []string{
		"usgs_earthquakes_significant",
		"usgs_earthquakes_m25plus",
		"nws_alerts_active",
		"nhc_atlantic_tropical",
		"nhc_epac_tropical",
		"ptwc_pacific_bulletins",
		"ntwc_alaska_bulletins",
		"travel_advisories_global",
		"who_disease_outbreak_news",
		"cisa_known_exploited_vulnerabilities",
		"reliefweb_disasters",
		"navarea_maritime_safety",
		"faa_nas_status",
	} {
		assert.True(t, ids[want], "expected source %q in catalog", want)
	}
}

func TestCatalog_FIRMSDisabledWithoutKey(t *testing.T) {
	plugins := sources.Catalog(baseConfig(), normalize.Deps{})
	for _, p := range plugins {
		if p.SourceID == "firms_modis_global_24h" {
			assert.False(t, p.DefaultEnabled)
			return
		}
	}
	t.Fatal("firms_modis_global_24h not found in catalog")
}

func TestCatalog_FIRMSBuildURLInjectsKey(t *testing.T) {
	cfg := baseConfig()
	cfg.FIRMSKey = "supersecretkey"
	plugins := sources.Catalog(cfg, normalize.Deps{})

	for _, p := range plugins {
		if p.SourceID != "firms_modis_global_24h" {
			continue
		}
		require.True(t, p.DefaultEnabled)
		got, err := p.BuildURL(context.Background(), time.Now())
		require.NoError(t, err)
		assert.Contains(t, got, "supersecretkey")
		assert.NotContains(t, p.URL, "supersecretkey")
		return
	}
	t.Fatal("firms_modis_global_24h not found in catalog")
}

func TestCatalog_NVDCVEDisabledWithoutServiceKey(t *testing.T) {
	plugins := sources.Catalog(baseConfig(), normalize.Deps{})
	for _, p := range plugins {
		if p.SourceID == "nvd_cve_recent" {
			assert.False(t, p.DefaultEnabled)
			assert.Nil(t, p.Headers)
			return
		}
	}
	t.Fatal("nvd_cve_recent not found in catalog")
}

func TestCatalog_NVDCVEBuildURLWindowsByTwoHours(t *testing.T) {
	cfg := baseConfig()
	cfg.CVEServiceKey = "apikey123"
	plugins := sources.Catalog(cfg, normalize.Deps{})

	for _, p := range plugins {
		if p.SourceID != "nvd_cve_recent" {
			continue
		}
		require.True(t, p.DefaultEnabled)
		require.Equal(t, "apikey123", p.Headers["apiKey"])

		now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
		got, err := p.BuildURL(context.Background(), now)
		require.NoError(t, err)
		assert.Contains(t, got, "lastModStartDate=2026-03-01T10%3A00%3A00.000")
		assert.Contains(t, got, "lastModEndDate=2026-03-01T12%3A00%3A00.000")
		return
	}
	t.Fatal("nvd_cve_recent not found in catalog")
}

func TestCatalog_SocialTimelineSkippedWithoutCredentials(t *testing.T) {
	plugins := sources.Catalog(baseConfig(), normalize.Deps{})
	for _, p := range plugins {
		assert.NotEqual(t, "bluesky_disaster_response_feed", p.SourceID)
	}
}

func TestCatalog_SocialTimelineRegisteredWithCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.SocialHandle = "watchdog.bsky.social"
	cfg.SocialPassword = "app-password"
	plugins := sources.Catalog(cfg, normalize.Deps{})

	for _, p := range plugins {
		if p.SourceID == "bluesky_disaster_response_feed" {
			require.NotNil(t, p.Authenticate)
			return
		}
	}
	t.Fatal("bluesky_disaster_response_feed not registered despite credentials")
}
