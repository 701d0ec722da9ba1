// Package cluster implements the clustering engine (spec §4.7): it assigns
// a freshly-normalized item to an incident using a SimHash-bucketed
// candidate search, category-dependent Hamming/Jaccard thresholds, and a
// Haversine-distance post-update merge pass, keeping each incident's
// aggregate title/summary/geometry/severity current as items arrive.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/hashutil"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/observability"
)

// Store is the subset of *store.Store the clusterer needs. Each method here
// already runs in its own transaction on the store side (spec §4.7: "entire
// operation runs in a single store transaction" is honored per-write, since
// the candidate search itself is read-only and doesn't need serialization
// with the eventual write).
type Store interface {
	CandidateIncidents(ctx context.Context, category model.Category, since time.Time) ([]model.Incident, error)
	AllIncidentsInCategory(ctx context.Context, category model.Category, excludeID string, since time.Time) ([]model.Incident, error)
	InsertIncident(ctx context.Context, inc model.Incident, itemID string) error
	UpdateIncidentAndLink(ctx context.Context, inc model.Incident, itemID string) (model.Incident, error)
	MergeIncidents(ctx context.Context, survivor model.Incident, loserID string) (model.Incident, error)
}

// Clusterer assigns items to incidents.
type Clusterer struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New builds a Clusterer.
func New(store Store, logger *slog.Logger, metrics *observability.Metrics) *Clusterer {
	return &Clusterer{store: store, logger: logger, metrics: metrics}
}

// Cluster assigns item to an incident — an existing one on a tight or loose
// match, or a newly created one otherwise — and runs the post-update merge
// pass. It returns the resulting incident and which event type the caller
// should publish on the event bus.
func (c *Clusterer) Cluster(ctx context.Context, item model.Item) (model.Incident, model.EventType, error) {
	start := clock.Get().Now()
	defer func() {
		c.metrics.ClusterDuration.Observe(clock.Get().Now().Sub(start).Seconds())
	}()

	th := forCategory(item.Category)
	fields := rawFields(item.Raw)
	itemSeverity := normalize.SeverityRules(item.Category, fields)
	itemText := item.Title + " " + item.Summary

	since := clock.Get().Now().Add(-time.Duration(th.lookbackHours()) * time.Hour)
	candidates, err := c.store.CandidateIncidents(ctx, item.Category, since)
	if err != nil {
		return model.Incident{}, "", fmt.Errorf("cluster: candidate search: %w", err)
	}

	best, bestDist, kind := c.bestCandidate(candidates, item, th, itemText)

	if kind == matchNone {
		inc, err := c.createIncident(ctx, item, itemSeverity)
		if err != nil {
			return model.Incident{}, "", err
		}
		c.metrics.ClusterMatches.WithLabelValues("new").Inc()
		return c.postUpdateMerge(ctx, inc, th)
	}

	if kind == matchTight {
		c.metrics.ClusterMatches.WithLabelValues("tight").Inc()
	} else {
		c.metrics.ClusterMatches.WithLabelValues("loose").Inc()
	}
	c.logger.Debug("cluster: matched incident", "incident_id", best.IncidentID, "distance", bestDist, "kind", kind)

	updated, err := c.updateIncident(ctx, best, item, itemSeverity)
	if err != nil {
		return model.Incident{}, "", err
	}
	return c.postUpdateMerge(ctx, updated, th)
}

// bestCandidate narrows candidates to those sharing the item's SimHash
// bucket (spec §4.7: "Candidate search") and returns the one with minimum
// Hamming distance, classified as tight/loose/none.
func (c *Clusterer) bestCandidate(candidates []model.Incident, item model.Item, th thresholds, itemText string) (model.Incident, int, matchKind) {
	bucket := hashutil.Bucket16(item.SimHash)

	var best model.Incident
	bestDist := -1
	for _, cand := range candidates {
		if hashutil.Bucket16(cand.IncidentSimHash) != bucket {
			continue
		}
		dist := hashutil.Hamming(item.SimHash, cand.IncidentSimHash)
		if bestDist == -1 || dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	if bestDist == -1 {
		return model.Incident{}, -1, matchNone
	}

	candText := best.Title + " " + best.Summary
	jaccard := hashutil.JaccardTokens(itemText, candText)
	return best, bestDist, th.classify(bestDist, jaccard)
}

func (c *Clusterer) createIncident(ctx context.Context, item model.Item, severity float64) (model.Incident, error) {
	title, summary := shapeTitleSummary(item.Category, item)
	bbox, err := extentsFromGeoJSON(item.GeomGeoJSON)
	if err != nil {
		return model.Incident{}, fmt.Errorf("cluster: new incident bbox: %w", err)
	}

	now := clock.Get().Now().UTC()
	inc := model.Incident{
		IncidentID:         uuid.NewString(),
		Title:              title,
		Summary:            summary,
		Category:           item.Category,
		FirstSeenAt:        now,
		LastSeenAt:         now,
		LastItemAt:         item.PublishedAt,
		Status:             model.StatusActive,
		SeverityScore:      severity,
		GeomGeoJSON:        item.GeomGeoJSON,
		Lat:                item.Lat,
		Lon:                item.Lon,
		BBox:               bbox,
		LocationConfidence: item.LocationConfidence,
		LocationRationale:  item.LocationRationale,
		IncidentSimHash:    item.SimHash,
		TokenSignature:     hashutil.TokenSignature(title+" "+summary, 6),
		ItemCount:          1,
		SourceCount:        1,
	}
	if err := c.store.InsertIncident(ctx, inc, item.ItemID); err != nil {
		return model.Incident{}, fmt.Errorf("cluster: insert incident: %w", err)
	}
	return inc, nil
}

func (c *Clusterer) updateIncident(ctx context.Context, inc model.Incident, item model.Item, itemSeverity float64) (model.Incident, error) {
	title, summary := shapeTitleSummary(inc.Category, item)
	inc.Title, inc.Summary = title, summary

	now := clock.Get().Now().UTC()
	inc.LastSeenAt = now
	if item.PublishedAt.After(inc.LastItemAt) {
		inc.LastItemAt = item.PublishedAt
	}

	inc.SeverityScore = maxFloat(inc.SeverityScore, itemSeverity)
	if inc.Category == model.CategoryWildfire {
		inc.SeverityScore = clipMax(inc.SeverityScore+normalize.WildfireDensityBonus(inc.ItemCount+1), 100)
	}

	// Location promotion: the item's confidence only replaces the incident's
	// when it ranks strictly higher on the ladder (spec §4.7).
	if item.LocationConfidence.Rank() > inc.LocationConfidence.Rank() {
		inc.GeomGeoJSON = item.GeomGeoJSON
		inc.Lat = item.Lat
		inc.Lon = item.Lon
		inc.LocationConfidence = item.LocationConfidence
		inc.LocationRationale = item.LocationRationale
	}

	if itemBBox, err := extentsFromGeoJSON(item.GeomGeoJSON); err != nil {
		return model.Incident{}, fmt.Errorf("cluster: update incident bbox: %w", err)
	} else if itemBBox != nil {
		inc.BBox = mergeBBox(inc.BBox, itemBBox)
		if inc.BBox != nil {
			lat, lon := centroidOfBBox(inc.BBox)
			inc.Lat, inc.Lon = &lat, &lon
		}
	}

	inc.IncidentSimHash = hashutil.SimHash64(title + " " + summary)
	inc.TokenSignature = hashutil.TokenSignature(title+" "+summary, 6)

	updated, err := c.store.UpdateIncidentAndLink(ctx, inc, item.ItemID)
	if err != nil {
		return model.Incident{}, fmt.Errorf("cluster: update incident: %w", err)
	}
	return updated, nil
}

// postUpdateMerge looks for another same-category incident close enough in
// space, SimHash, and recency to be the same real-world event, merging the
// newer incident into the one first seen earlier, which survives (spec
// §4.7, "Post-update merge"). At
// most one merge is applied per call: a merged survivor is re-evaluated by
// the caller's next item, which keeps each pass O(candidates) instead of
// cascading within a single transaction.
func (c *Clusterer) postUpdateMerge(ctx context.Context, inc model.Incident, th thresholds) (model.Incident, model.EventType, error) {
	eventType := model.EventIncidentUpdated
	if inc.ItemCount == 1 && inc.SourceCount == 1 {
		eventType = model.EventIncidentCreated
	}

	if inc.Lat == nil || inc.Lon == nil {
		return inc, eventType, nil
	}

	since := clock.Get().Now().Add(-time.Duration(th.lookbackHours()) * time.Hour)
	siblings, err := c.store.AllIncidentsInCategory(ctx, inc.Category, inc.IncidentID, since)
	if err != nil {
		return model.Incident{}, "", fmt.Errorf("cluster: merge candidates: %w", err)
	}

	for _, sib := range siblings {
		if sib.Lat == nil || sib.Lon == nil {
			continue
		}
		km := haversineKM(*inc.Lat, *inc.Lon, *sib.Lat, *sib.Lon)
		if km > th.mergeKM {
			continue
		}
		if hashutil.Hamming(inc.IncidentSimHash, sib.IncidentSimHash) > th.mergeDist {
			continue
		}

		survivor, loserID := inc, sib.IncidentID
		if sib.FirstSeenAt.Before(inc.FirstSeenAt) {
			survivor, loserID = sib, inc.IncidentID
			survivor.Title, survivor.Summary = inc.Title, inc.Summary
			survivor.SeverityScore = maxFloat(survivor.SeverityScore, inc.SeverityScore)
			survivor.LastSeenAt = inc.LastSeenAt
			survivor.LastItemAt = maxTime(survivor.LastItemAt, inc.LastItemAt)
			survivor.BBox = mergeBBox(survivor.BBox, inc.BBox)
			if inc.LocationConfidence.Rank() > survivor.LocationConfidence.Rank() {
				survivor.GeomGeoJSON, survivor.Lat, survivor.Lon = inc.GeomGeoJSON, inc.Lat, inc.Lon
				survivor.LocationConfidence, survivor.LocationRationale = inc.LocationConfidence, inc.LocationRationale
			}
		} else {
			survivor.BBox = mergeBBox(survivor.BBox, sib.BBox)
		}

		merged, err := c.store.MergeIncidents(ctx, survivor, loserID)
		if err != nil {
			return model.Incident{}, "", fmt.Errorf("cluster: merge incidents: %w", err)
		}
		c.metrics.ClusterMatches.WithLabelValues("merge").Inc()
		c.logger.Info("cluster: merged incidents", "survivor", merged.IncidentID, "absorbed", loserID, "distance_km", km)
		return merged, model.EventIncidentUpdated, nil
	}

	return inc, eventType, nil
}

// rawFields decodes an item's Raw JSON blob back into the field map the
// severity rules index into. A malformed or empty blob yields an empty map
// rather than an error — severity falls back to the category default.
func rawFields(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil
	}
	return fields
}

func maxFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

func clipMax(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
