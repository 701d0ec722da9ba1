// Package health implements the source health tracker (spec §4.3): it wraps
// the store's record_success/record_error operations, classifies fetch
// outcomes for metrics, and publishes source.health events so the API layer
// can surface per-source status without polling the store directly.
package health

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/observability"
)

// Store is the subset of *store.Store the tracker needs.
type Store interface {
	RecordSuccess(ctx context.Context, sourceID string, status int, elapsedMS int64, etag, lastModified string, nextInSeconds int) error
	RecordError(ctx context.Context, sourceID string, status *int, elapsedMS *int64, errorKind string) (int, error)
}

// Publisher is the narrow event-bus dependency: one method, so this package
// never needs to import eventbus's subscription machinery.
type Publisher interface {
	Publish(evt model.Event)
}

// Tracker records fetch outcomes against a source's schedule state.
type Tracker struct {
	store   Store
	bus     Publisher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New builds a Tracker.
func New(store Store, bus Publisher, logger *slog.Logger, metrics *observability.Metrics) *Tracker {
	return &Tracker{store: store, bus: bus, logger: logger, metrics: metrics}
}

// RecordSuccess clears a source's failure streak and schedules the next
// poll interval seconds out, honoring the conditional-cache validators the
// fetcher observed. outcome labels the fetch-level metric: "success" for a
// fresh 200, "not_modified" for a 304. nextInSeconds is the Cache-Control
// max-age when the response carried one (maxAgeSeconds >= 0), else the
// source's own poll interval (spec §4.6 steps 5 and 11).
func (t *Tracker) RecordSuccess(ctx context.Context, src model.Source, status int, elapsedMS int64, etag, lastModified, outcome string, maxAgeSeconds int) {
	t.metrics.FetchTotal.WithLabelValues(src.SourceID, outcome).Inc()
	t.metrics.FetchDuration.WithLabelValues(src.SourceID).Observe(float64(elapsedMS) / 1000)

	nextInSeconds := src.PollIntervalSeconds
	if maxAgeSeconds >= 0 {
		nextInSeconds = maxAgeSeconds
	}

	if err := t.store.RecordSuccess(ctx, src.SourceID, status, elapsedMS, etag, lastModified, nextInSeconds); err != nil {
		t.logger.Error("health: record success failed", "source_id", src.SourceID, "error", err)
		return
	}
	t.bus.Publish(model.SourceHealthPayload(src.SourceID, &status, nil))
}

// RecordError classifies the failure, advances the exponential backoff, and
// publishes a source.health event carrying the backoff applied so operators
// watching the stream see a source going quiet before its next_fetch_at
// lapses into total silence.
func (t *Tracker) RecordError(ctx context.Context, src model.Source, status *int, elapsedMS *int64, errorKind string) int {
	outcome := errorKind
	if outcome == "" {
		outcome = "unknown_error"
	}
	t.metrics.FetchTotal.WithLabelValues(src.SourceID, outcome).Inc()
	if elapsedMS != nil {
		t.metrics.FetchDuration.WithLabelValues(src.SourceID).Observe(float64(*elapsedMS) / 1000)
	}

	backoff, err := t.store.RecordError(ctx, src.SourceID, status, elapsedMS, errorKind)
	if err != nil {
		t.logger.Error("health: record error failed", "source_id", src.SourceID, "error", err)
		return 0
	}
	t.logger.Warn("source fetch failed", "source_id", src.SourceID, "kind", errorKind, "backoff_seconds", backoff)
	t.bus.Publish(model.SourceHealthPayload(src.SourceID, status, &backoff))
	return backoff
}

// ClassifyError maps a raw fetch outcome into a coarse error class: timeout,
// parse_error, rate_limited, http_5xx, http_4xx, network_error or
// http_error. The scheduler's work unit does not call it; the error kinds it
// passes to RecordError (and so the FetchTotal outcomes) are its own, such
// as http_429 and http_<status>.
func ClassifyError(status int, timedOut bool, parseErr bool) string {
	switch {
	case timedOut:
		return "timeout"
	case parseErr:
		return "parse_error"
	case status == 429:
		return "rate_limited"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	case status == 0:
		return "network_error"
	default:
		return "http_error"
	}
}
