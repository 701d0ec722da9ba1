package cluster

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/couchcryptid/sigwatch/internal/model"
)

const earthRadiusKM = 6371.0

// haversineKM returns the great-circle distance between two points in
// kilometers, used by the post-update merge pass's geographic proximity
// check (spec §4.7, "Post-update merge").
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// extentsFromGeoJSON derives a bounding box from a geometry's vertices, used
// when a brand-new incident is created from an item's geometry (spec §4.7:
// "bbox derived from geometry extents").
func extentsFromGeoJSON(geomJSON string) (*model.BBox, error) {
	if geomJSON == "" {
		return nil, nil
	}
	var geom struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal([]byte(geomJSON), &geom); err != nil {
		return nil, fmt.Errorf("cluster: extents: %w", err)
	}

	var pts [][2]float64
	switch geom.Type {
	case "Point":
		var c [2]float64
		if err := json.Unmarshal(geom.Coordinates, &c); err != nil {
			return nil, fmt.Errorf("cluster: extents: point: %w", err)
		}
		pts = [][2]float64{c}
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("cluster: extents: polygon: %w", err)
		}
		for _, r := range rings {
			pts = append(pts, r...)
		}
	case "MultiPolygon":
		var polys [][][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("cluster: extents: multipolygon: %w", err)
		}
		for _, p := range polys {
			for _, r := range p {
				pts = append(pts, r...)
			}
		}
	default:
		return nil, fmt.Errorf("cluster: extents: unsupported geometry type %q", geom.Type)
	}
	if len(pts) == 0 {
		return nil, nil
	}

	bbox := model.BBox{MinLon: pts[0][0], MinLat: pts[0][1], MaxLon: pts[0][0], MaxLat: pts[0][1]}
	for _, p := range pts[1:] {
		bbox.MinLon = math.Min(bbox.MinLon, p[0])
		bbox.MinLat = math.Min(bbox.MinLat, p[1])
		bbox.MaxLon = math.Max(bbox.MaxLon, p[0])
		bbox.MaxLat = math.Max(bbox.MaxLat, p[1])
	}
	return &bbox, nil
}

// mergeBBox returns the element-wise extent of two bounding boxes (spec
// §4.7, "Bbox merge").
func mergeBBox(a, b *model.BBox) *model.BBox {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &model.BBox{
		MinLon: math.Min(a.MinLon, b.MinLon),
		MinLat: math.Min(a.MinLat, b.MinLat),
		MaxLon: math.Max(a.MaxLon, b.MaxLon),
		MaxLat: math.Max(a.MaxLat, b.MaxLat),
	}
}

// centroidOfBBox returns the bounding box's midpoint.
func centroidOfBBox(b *model.BBox) (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}
