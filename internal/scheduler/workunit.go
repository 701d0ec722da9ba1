package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/fetcher"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/plugin"
	"github.com/couchcryptid/sigwatch/internal/store"
)

// runWorkUnit carries one source through the steps of spec §4.6, "Work
// unit". It never returns an error: every failure path records itself
// against the source's health state and returns, so one source's trouble
// never stops the others (spec §7: "Partial failure of one work unit never
// affects others").
func (s *Scheduler) runWorkUnit(ctx context.Context, src model.Source, p plugin.Plugin) {
	headers := make(map[string]string, len(p.Headers)+1)
	for k, v := range p.Headers {
		headers[k] = v
	}

	if p.Authenticate != nil {
		token, err := p.Authenticate(ctx)
		if err != nil {
			s.health.RecordError(ctx, src, nil, nil, "auth_error")
			return
		}
		headers["Authorization"] = "Bearer " + token
	}

	rawURL, err := p.ResolveURL(ctx, clock.Get().Now())
	if err != nil {
		s.health.RecordError(ctx, src, nil, nil, "build_url_error")
		return
	}

	hostSem := s.hostSemaphore(rawURL)
	if err := hostSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer hostSem.Release(1)

	cb := s.breakerFor(src.SourceID)
	result, err := cb.Execute(func() (fetcher.Result, error) {
		return s.fetcher.Fetch(ctx, rawURL, src.ETag, src.LastModified, headers)
	})
	if err != nil {
		s.health.RecordError(ctx, src, nil, nil, classifyTransportErr(err))
		return
	}

	switch result.Status {
	case 304:
		s.health.RecordSuccess(ctx, src, 304, result.ElapsedMS, result.ETag, result.LastModified, "not_modified", result.MaxAgeSeconds)
		return
	case 429:
		status := 429
		backoff := s.health.RecordError(ctx, src, &status, &result.ElapsedMS, "http_429")
		if result.RetryAfterSeconds > 0 && result.RetryAfterSeconds > backoff {
			_ = s.store.OverrideNextFetchAt(ctx, src.SourceID, clock.Get().Now().Add(time.Duration(result.RetryAfterSeconds)*time.Second))
		}
		return
	}

	if result.Status != 200 || len(result.Body) == 0 {
		status := result.Status
		s.health.RecordError(ctx, src, &status, &result.ElapsedMS, parseStatusCode(result.Status))
		return
	}

	records, err := p.Parse(result.Body)
	if err != nil {
		status := result.Status
		s.health.RecordError(ctx, src, &status, &result.ElapsedMS, "parse_error")
		return
	}

	if src.SourceType == model.SourceTypeSocial && len(records) > 0 {
		if last := records[len(records)-1]; last.ExternalID != "" {
			_ = s.store.SetCursor(ctx, src.SourceID, last.ExternalID)
		}
	}

	s.health.RecordSuccess(ctx, src, result.Status, result.ElapsedMS, result.ETag, result.LastModified, "success", result.MaxAgeSeconds)
	_ = s.nextPollOverride(ctx, src, p, result, len(records))

	for _, rec := range records {
		item, err := p.Normalize(ctx, src.SourceID, rec, clock.Get().Now())
		if err != nil {
			s.metrics.NormalizeErrors.WithLabelValues(src.SourceID).Inc()
			s.logger.Warn("scheduler: normalize failed", "source_id", src.SourceID, "error", err)
			continue
		}

		if err := s.store.InsertItem(ctx, item); err != nil {
			if errors.Is(err, store.ErrDuplicateItem) {
				s.metrics.ItemsDeduplicated.Inc()
				continue
			}
			s.logger.Error("scheduler: insert item failed", "source_id", src.SourceID, "error", err)
			continue
		}
		s.metrics.ItemsInserted.Inc()

		inc, evtType, err := s.clusterer.Cluster(ctx, item)
		if err != nil {
			s.logger.Error("scheduler: cluster failed", "item_id", item.ItemID, "error", err)
			continue
		}
		s.bus.Publish(model.IncidentEventPayload(evtType, inc))
	}
}

// nextPollOverride applies the tsunami special-case of spec §4.6 step 11:
// CAP tsunami feeds poll every 90s while a message is active and back off to
// every 300s once it clears, overriding whatever Cache-Control or the
// plugin's own interval would otherwise set.
func (s *Scheduler) nextPollOverride(ctx context.Context, src model.Source, p plugin.Plugin, result fetcher.Result, recordCount int) error {
	if p.Category != model.CategoryTsunami {
		return nil
	}
	nextIn := 300
	if recordCount > 0 {
		nextIn = 90
	}
	return s.store.OverrideNextFetchAt(ctx, src.SourceID, clock.Get().Now().Add(time.Duration(nextIn)*time.Second))
}
