// Package sources is the concrete plugin catalog (spec §6): static Plugin
// definitions for the earthquake, weather, cyclone, tsunami, wildfire,
// travel, health, CVE/KEV, relief, maritime, aviation and social families,
// wired to the parser and normalizer each family needs, plus the
// per-volcano expander in volcanoes.go. News feeds are not defined here;
// they come from feed packs (package plugin). Registration only; the
// scheduler and plugin.Registry do the polling.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/sigwatch/internal/config"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/parser"
	"github.com/couchcryptid/sigwatch/internal/plugin"
)

// Catalog builds every statically-known Plugin (everything except feed-pack
// news sources and the dynamically-expanded per-volcano RSS plugins, which
// are assembled separately by the caller).
func Catalog(cfg *config.Config, deps normalize.Deps) []plugin.Plugin {
	var out []plugin.Plugin
	out = append(out, earthquakes(deps)...)
	out = append(out, weatherAlerts(deps)...)
	out = append(out, tropicalCyclones(deps)...)
	out = append(out, tsunamis(deps)...)
	out = append(out, wildfires(cfg, deps)...)
	out = append(out, travelAdvisories(deps)...)
	out = append(out, healthAdvisories(deps)...)
	out = append(out, cyberFeeds(cfg, deps)...)
	out = append(out, disasterReports(deps)...)
	out = append(out, maritimeWarnings(deps)...)
	out = append(out, aviationDisruptions(deps)...)
	out = append(out, socialTimelines(cfg, deps)...)
	for i := range out {
		out[i].Parse = wrapParse(out[i].Parse)
	}
	return out
}

// wrapParse is a no-op passthrough kept as the single seam every plugin's
// Parse funnels through, so a future cross-cutting concern (size limits,
// content-type sniffing) has one place to land instead of one per plugin.
func wrapParse(p plugin.ParseFunc) plugin.ParseFunc {
	return p
}

func earthquakes(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "usgs_earthquakes_significant",
			Name:                "USGS Significant Earthquakes, past day",
			URL:                 "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/significant_day.geojson",
			SourceType:          model.SourceTypeGeoJSON,
			PollIntervalSeconds: 60,
			DefaultEnabled:      true,
			Category:            model.CategoryEarthquake,
			Parse:               parser.ParseGeoJSON,
			Normalize:           deps.Earthquake,
		},
		{
			SourceID:            "usgs_earthquakes_m25plus",
			Name:                "USGS M2.5+ Earthquakes, past day",
			URL:                 "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson",
			SourceType:          model.SourceTypeGeoJSON,
			PollIntervalSeconds: 120,
			DefaultEnabled:      true,
			Category:            model.CategoryEarthquake,
			Parse:               parser.ParseGeoJSON,
			Normalize:           deps.Earthquake,
		},
	}
}

func weatherAlerts(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "nws_alerts_active",
			Name:                "NWS Active Alerts (CAP)",
			URL:                 "https://api.weather.gov/alerts/active.atom",
			SourceType:          model.SourceTypeRSS,
			PollIntervalSeconds: 120,
			DefaultEnabled:      true,
			Category:            model.CategoryWeatherAlert,
			Headers:             map[string]string{"Accept": "application/atom+xml"},
			Parse:               parser.ParseAtom,
			Normalize:           deps.WeatherAlert,
		},
	}
}

func tropicalCyclones(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "nhc_atlantic_tropical",
			Name:                "NHC Atlantic Tropical Weather Outlook",
			URL:                 "https://www.nhc.noaa.gov/index-at.xml",
			SourceType:          model.SourceTypeRSS,
			PollIntervalSeconds: 600,
			DefaultEnabled:      true,
			Category:            model.CategoryTropicalCyclone,
			Parse:               parser.ParseRSS,
			Normalize:           deps.TropicalCyclone,
		},
		{
			SourceID:            "nhc_epac_tropical",
			Name:                "NHC Eastern Pacific Tropical Weather Outlook",
			URL:                 "https://www.nhc.noaa.gov/index-ep.xml",
			SourceType:          model.SourceTypeRSS,
			PollIntervalSeconds: 600,
			DefaultEnabled:      true,
			Category:            model.CategoryTropicalCyclone,
			Parse:               parser.ParseRSS,
			Normalize:           deps.TropicalCyclone,
		},
	}
}

// tsunamis registers both Pacific bulletin centers. Their ids deliberately
// contain "ptwc"/"ntwc" so the location ladder's C_source_default rung
// (spec §8 scenario 5) picks up the right centroid when a bulletin omits
// geometry.
func tsunamis(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "ptwc_pacific_bulletins",
			Name:                "Pacific Tsunami Warning Center Bulletins",
			URL:                 "https://www.tsunami.gov/events/xml/PAAQAtom.xml",
			SourceType:          model.SourceTypeXML,
			PollIntervalSeconds: 300,
			DefaultEnabled:      true,
			Category:            model.CategoryTsunami,
			Parse:               parser.ParseCAP,
			Normalize:           deps.Tsunami,
		},
		{
			SourceID:            "ntwc_alaska_bulletins",
			Name:                "National Tsunami Warning Center Bulletins",
			URL:                 "https://www.tsunami.gov/events/xml/AKAQAtom.xml",
			SourceType:          model.SourceTypeXML,
			PollIntervalSeconds: 300,
			DefaultEnabled:      true,
			Category:            model.CategoryTsunami,
			Parse:               parser.ParseCAP,
			Normalize:           deps.Tsunami,
		},
	}
}

// wildfires builds the FIRMS hotspot CSV plugin. The key is injected via
// BuildURL rather than baked into the static URL so an empty/placeholder
// key never leaks into the registered Source row's URL column.
func wildfires(cfg *config.Config, deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "firms_modis_global_24h",
			Name:                "FIRMS MODIS Global Hotspots, 24h",
			URL:                 "https://firms.modaps.eosdis.nasa.gov/api/area/csv/KEY/MODIS_NRT/world/1",
			SourceType:          model.SourceTypeCSV,
			PollIntervalSeconds: 900,
			DefaultEnabled:      cfg.FIRMSKey != "",
			Category:            model.CategoryWildfire,
			Parse:               parser.ParseCSV,
			Normalize:           deps.Wildfire,
			BuildURL: func(ctx context.Context, now time.Time) (string, error) {
				key := cfg.FIRMSKey
				if key == "" {
					key = "DEMO_KEY"
				}
				return fmt.Sprintf("https://firms.modaps.eosdis.nasa.gov/api/area/csv/%s/MODIS_NRT/world/1", key), nil
			},
		},
	}
}

func travelAdvisories(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "travel_advisories_global",
			Name:                "Travel Advisories, all countries",
			URL:                 "https://www.travel-advisory.info/api",
			SourceType:          model.SourceTypeJSON,
			PollIntervalSeconds: 3600,
			DefaultEnabled:      true,
			Category:            model.CategoryTravelAdvisory,
			Parse:               parser.ParseJSON,
			Normalize:           deps.TravelAdvisory,
		},
	}
}

func healthAdvisories(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "who_disease_outbreak_news",
			Name:                "WHO Disease Outbreak News",
			URL:                 "https://www.who.int/feeds/entity/csr/don/en/rss.xml",
			SourceType:          model.SourceTypeRSS,
			PollIntervalSeconds: 1800,
			DefaultEnabled:      true,
			Category:            model.CategoryHealthAdvisory,
			Parse:               parser.ParseRSS,
			Normalize:           deps.HealthAdvisory,
		},
	}
}

// cyberFeeds registers NVD CVE (date-windowed via BuildURL, per spec §4.6
// step 1's "date windows") and CISA KEV. CVE polling is skipped when no
// service key is configured, matching NVD's strict unauthenticated rate
// limit.
func cyberFeeds(cfg *config.Config, deps normalize.Deps) []plugin.Plugin {
	plugins := []plugin.Plugin{
		{
			SourceID:            "cisa_known_exploited_vulnerabilities",
			Name:                "CISA Known Exploited Vulnerabilities Catalog",
			URL:                 "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json",
			SourceType:          model.SourceTypeJSON,
			PollIntervalSeconds: 3600,
			DefaultEnabled:      true,
			Category:            model.CategoryCyberKEV,
			Parse:               parser.ParseJSON,
			Normalize:           deps.CyberKEV,
		},
	}

	plugins = append(plugins, plugin.Plugin{
		SourceID:            "nvd_cve_recent",
		Name:                "NVD CVE, recently modified",
		URL:                 "https://services.nvd.nist.gov/rest/json/cves/2.0",
		SourceType:          model.SourceTypeJSON,
		PollIntervalSeconds: 900,
		DefaultEnabled:      cfg.CVEServiceKey != "",
		Category:            model.CategoryCyberCVE,
		Headers:             cveHeaders(cfg.CVEServiceKey),
		Parse:               parser.ParseJSON,
		Normalize:           deps.CyberCVE,
		BuildURL: func(ctx context.Context, now time.Time) (string, error) {
			start := now.Add(-2 * time.Hour).UTC().Format("2006-01-02T15:04:05.000")
			end := now.UTC().Format("2006-01-02T15:04:05.000")
			q := url.Values{}
			q.Set("lastModStartDate", start)
			q.Set("lastModEndDate", end)
			return "https://services.nvd.nist.gov/rest/json/cves/2.0?" + q.Encode(), nil
		},
	})
	return plugins
}

func cveHeaders(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"apiKey": key}
}

func disasterReports(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "reliefweb_disasters",
			Name:                "ReliefWeb Disasters",
			URL:                 "https://api.reliefweb.int/v1/disasters?appname=sigwatch&profile=list&sort[]=date:desc",
			SourceType:          model.SourceTypeJSON,
			PollIntervalSeconds: 1800,
			DefaultEnabled:      true,
			Category:            model.CategoryDisaster,
			Parse:               parser.ParseJSON,
			Normalize:           deps.Disaster,
		},
	}
}

func maritimeWarnings(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "navarea_maritime_safety",
			Name:                "NAVAREA Maritime Safety Information",
			URL:                 "https://msi.nga.mil/api/publications/broadcast-warn?output=json",
			SourceType:          model.SourceTypeXML,
			PollIntervalSeconds: 1800,
			DefaultEnabled:      true,
			Category:            model.CategoryMaritimeWarning,
			Parse:               parser.ParseXMLItems,
			Normalize:           deps.MaritimeWarning,
		},
	}
}

func aviationDisruptions(deps normalize.Deps) []plugin.Plugin {
	return []plugin.Plugin{
		{
			SourceID:            "faa_nas_status",
			Name:                "FAA National Airspace System Status",
			URL:                 "https://nasstatus.faa.gov/api/airport-status-information",
			SourceType:          model.SourceTypeXML,
			PollIntervalSeconds: 300,
			DefaultEnabled:      true,
			Category:            model.CategoryAviationDisrupt,
			Parse:               parser.ParseXMLItems,
			Normalize:           deps.AviationDisruption,
		},
	}
}

// socialTimelines registers the Bluesky author-feed plugin. It is cursored
// (spec §4.6 step 9) and authenticated (step 2): Authenticate exchanges the
// configured handle/app-password for a session token each cycle, which the
// work unit sends as a Bearer header.
func socialTimelines(cfg *config.Config, deps normalize.Deps) []plugin.Plugin {
	if cfg.SocialHandle == "" || cfg.SocialPassword == "" {
		return nil
	}
	return []plugin.Plugin{
		{
			SourceID:            "bluesky_disaster_response_feed",
			Name:                "Bluesky firehose, disaster-response handles",
			URL:                 "https://bsky.social/xrpc/app.bsky.feed.getTimeline",
			SourceType:          model.SourceTypeSocial,
			PollIntervalSeconds: 60,
			DefaultEnabled:      true,
			Category:            model.CategorySocial,
			Parse:               parser.ParseJSON,
			Normalize:           deps.Social,
			Authenticate:        blueskyAuthenticate(cfg.SocialHandle, cfg.SocialPassword),
		},
	}
}

func blueskyAuthenticate(handle, password string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		body, err := json.Marshal(map[string]string{"identifier": handle, "password": password})
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"https://bsky.social/xrpc/com.atproto.server.createSession", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("sources: bluesky auth: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("sources: bluesky auth: status %d", resp.StatusCode)
		}

		var session struct {
			AccessJwt string `json:"accessJwt"`
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if err := json.Unmarshal(data, &session); err != nil {
			return "", fmt.Errorf("sources: bluesky auth: decode: %w", err)
		}
		if session.AccessJwt == "" {
			return "", fmt.Errorf("sources: bluesky auth: empty token")
		}
		return session.AccessJwt, nil
	}
}
