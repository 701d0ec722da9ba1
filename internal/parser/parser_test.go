package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/parser"
)

func TestParseGeoJSON(t *testing.T) {
	data := []byte(`{
		"features": [
			{
				"id": "us7000abcd",
				"geometry": {"type": "Point", "coordinates": [139.69, 35.68]},
				"properties": {"title": "M 5.1 - near Tokyo, Japan", "place": "near Tokyo, Japan", "time": 1700000000000, "mag": 5.1}
			}
		]
	}`)
	recs, err := parser.ParseGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "us7000abcd", recs[0].ExternalID)
	assert.Equal(t, "M 5.1 - near Tokyo, Japan", recs[0].Title)
	assert.Contains(t, recs[0].GeomGeoJSON, "Point")
	assert.False(t, recs[0].PublishedAt.IsZero())
}

func TestParseRSS(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<rss><channel>
<item>
	<guid>item-1</guid>
	<title>Wildfire reported near Ridgecrest</title>
	<link>https://example.com/1</link>
	<description>A wildfire was reported.</description>
	<pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
	<point>35.6 -117.6</point>
</item>
</channel></rss>`)
	recs, err := parser.ParseRSS(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "item-1", recs[0].ExternalID)
	assert.Equal(t, "Wildfire reported near Ridgecrest", recs[0].Title)
	assert.Contains(t, recs[0].GeomGeoJSON, "Point")
	assert.False(t, recs[0].PublishedAt.IsZero())
}

func TestParseAtom(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<feed>
<entry>
	<id>urn:entry:1</id>
	<title>Travel advisory updated</title>
	<summary>Level 3 advisory issued.</summary>
	<published>2026-01-01T00:00:00Z</published>
	<link rel="alternate" href="https://example.com/advisory/1"/>
</entry>
</feed>`)
	recs, err := parser.ParseAtom(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://example.com/advisory/1", recs[0].Link)
	assert.Equal(t, "Travel advisory updated", recs[0].Title)
}

func TestParseXMLItems(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<bulletins>
<item>
	<id>b-1</id>
	<headline>Maritime warning issued</headline>
	<description>Small craft advisory.</description>
	<url>https://example.com/bulletin/1</url>
	<date>Mon, 02 Jan 2006 15:04:05 -0700</date>
</item>
</bulletins>`)
	recs, err := parser.ParseXMLItems(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b-1", recs[0].ExternalID)
	assert.Equal(t, "Maritime warning issued", recs[0].Title)
}

func TestParseCAP_SinglePolygon(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<alert>
	<identifier>ntwc-alert-1</identifier>
	<sent>2026-01-01T00:00:00-00:00</sent>
	<info>
		<event>Tsunami Warning</event>
		<headline>Tsunami Warning for coastal areas</headline>
		<description>A tsunami warning is in effect.</description>
		<severity>Extreme</severity>
		<urgency>Immediate</urgency>
		<certainty>Observed</certainty>
		<effective>2026-01-01T00:00:00-00:00</effective>
		<area>
			<areaDesc>Coastal zone</areaDesc>
			<polygon>60.0,-150.0 61.0,-150.0 61.0,-149.0 60.0,-149.0</polygon>
		</area>
	</info>
</alert>`)
	recs, err := parser.ParseCAP(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ntwc-alert-1", recs[0].ExternalID)
	assert.Equal(t, "Tsunami Warning for coastal areas", recs[0].Title)
	assert.Contains(t, recs[0].GeomGeoJSON, "Polygon")
	assert.Equal(t, "Extreme", recs[0].Fields["severity"])
}

func TestParseCSV(t *testing.T) {
	data := []byte("id,title,latitude,longitude,brightness,frp,acq_date\n" +
		"fire-1,Hotspot near Ridgecrest,35.6,-117.6,330.2,12.5,2026-01-01\n")
	recs, err := parser.ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "fire-1", recs[0].ExternalID)
	assert.Equal(t, "Hotspot near Ridgecrest", recs[0].Title)
	assert.False(t, recs[0].PublishedAt.IsZero())

	lat, ok := parser.FloatField(recs[0].Fields, "latitude")
	require.True(t, ok)
	assert.InDelta(t, 35.6, lat, 1e-9)
}

func TestParseJSON_BareArray(t *testing.T) {
	data := []byte(`[{"id": 1, "title": "CVE-2026-0001 disclosed", "description": "A critical vulnerability."}]`)
	recs, err := parser.ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0].ExternalID)
	assert.Equal(t, "CVE-2026-0001 disclosed", recs[0].Title)
}

func TestParseJSON_WrappedArray(t *testing.T) {
	data := []byte(`{"vulnerabilities": [{"id": "CVE-2026-0002", "title": "Another CVE"}], "total": 1}`)
	recs, err := parser.ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "CVE-2026-0002", recs[0].ExternalID)
}
