// Package parser turns raw feed bytes into RawRecord values — pure
// functions with no store, network, or clock access (spec §4.4). One file
// per format family; each format's quirks (timestamp layout, geometry
// encoding, field naming) stay local to its own parser.
package parser

import "time"

// RawRecord is the sum-typed carrier handed to the normalizers: every format
// decodes into the same shape so downstream code never branches on source
// format again after this package.
type RawRecord struct {
	ExternalID string
	Title      string
	Summary    string
	Content    string
	Link       string

	PublishedAt time.Time
	UpdatedAt   time.Time

	// GeomGeoJSON is a GeoJSON geometry object (Point/Polygon/MultiPolygon),
	// already-serialized, when the source record carries explicit geometry.
	GeomGeoJSON string

	// Fields carries format-specific payload (earthquake magnitude, CAP
	// severity/urgency/certainty, FAA delay kind, FIRMS brightness/FRP,
	// volcano aviation_color_code/alert_level, ...) for the normalizer to
	// read and for serialization into Item.Raw.
	Fields map[string]any
}
