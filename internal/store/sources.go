package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/model"
)

// RegisterSource inserts a source if absent. For an existing row it refreshes
// name, source_type, url and poll_interval_seconds and leaves enabled and the
// schedule/health state untouched — registration never resets history.
func (s *Store) RegisterSource(ctx context.Context, src model.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := clock.Get().Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `INSERT INTO sources
		(source_id, name, source_type, url, poll_interval_seconds, enabled, next_fetch_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name, source_type = excluded.source_type,
			url = excluded.url, poll_interval_seconds = excluded.poll_interval_seconds`,
		src.SourceID, src.Name, string(src.SourceType), src.URL, src.PollIntervalSeconds, src.Enabled, now)
	if err != nil {
		return fmt.Errorf("store: register source: %w", err)
	}
	return nil
}

// SetEnabled flips a source row's enabled flag, used by the plugin registry
// to disable a source once its plugin drops out of a dynamic expansion
// (spec §4.6 step 10: "newly missing IDs are disabled") without deleting its
// schedule/health history.
func (s *Store) SetEnabled(ctx context.Context, sourceID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET enabled = ? WHERE source_id = ?`, enabled, sourceID)
	if err != nil {
		return fmt.Errorf("store: set enabled: %w", err)
	}
	return nil
}

// DueSources returns up to limit enabled sources whose next_fetch_at has
// passed, ordered by next_fetch_at ascending (spec §4.6 step 2).
func (s *Store) DueSources(ctx context.Context, now time.Time, limit int) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_id, name, source_type, url, poll_interval_seconds,
		enabled, etag, last_modified, next_fetch_at, last_fetch_at, last_success_at, last_error_at,
		consecutive_failures, last_status_code, last_fetch_ms, last_error, success_count, error_count, cursor
		FROM sources WHERE enabled = 1 AND next_fetch_at <= ? ORDER BY next_fetch_at ASC LIMIT ?`,
		now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("store: due sources: %w", err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(rs rowScanner) (model.Source, error) {
	var src model.Source
	var sourceType string
	var nextFetchAt, lastFetchAt, lastSuccessAt, lastErrorAt string
	err := rs.Scan(&src.SourceID, &src.Name, &sourceType, &src.URL, &src.PollIntervalSeconds,
		&src.Enabled, &src.ETag, &src.LastModified, &nextFetchAt, &lastFetchAt, &lastSuccessAt, &lastErrorAt,
		&src.ConsecutiveFailures, &src.LastStatusCode, &src.LastFetchMS, &src.LastError,
		&src.SuccessCount, &src.ErrorCount, &src.Cursor)
	if err != nil {
		return model.Source{}, err
	}
	src.SourceType = model.SourceType(sourceType)
	src.NextFetchAt = parseTimeOrZero(nextFetchAt)
	src.LastFetchAt = parseTimeOrZero(lastFetchAt)
	src.LastSuccessAt = parseTimeOrZero(lastSuccessAt)
	src.LastErrorAt = parseTimeOrZero(lastErrorAt)
	return src, nil
}

func parseTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetSource fetches one source row by id.
func (s *Store) GetSource(ctx context.Context, sourceID string) (model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT source_id, name, source_type, url, poll_interval_seconds,
		enabled, etag, last_modified, next_fetch_at, last_fetch_at, last_success_at, last_error_at,
		consecutive_failures, last_status_code, last_fetch_ms, last_error, success_count, error_count, cursor
		FROM sources WHERE source_id = ?`, sourceID)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Source{}, fmt.Errorf("store: source %q: %w", sourceID, sql.ErrNoRows)
	}
	return src, err
}

// RecordSuccess implements the Health tracker's record_success operation
// (spec §4.3): clears consecutive_failures, advances next_fetch_at, and
// persists the conditional-cache headers for the next poll.
func (s *Store) RecordSuccess(ctx context.Context, sourceID string, status int, elapsedMS int64, etag, lastModified string, nextInSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := clock.Get().Now().UTC()
	nextFetchAt := now.Add(time.Duration(nextInSeconds) * time.Second)
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET
		last_fetch_at = ?, last_success_at = ?, last_status_code = ?, last_fetch_ms = ?,
		etag = ?, last_modified = ?, consecutive_failures = 0, next_fetch_at = ?,
		success_count = success_count + 1
		WHERE source_id = ?`,
		now.Format(time.RFC3339), now.Format(time.RFC3339), status, elapsedMS,
		etag, lastModified, nextFetchAt.Format(time.RFC3339), sourceID)
	if err != nil {
		return fmt.Errorf("store: record success: %w", err)
	}
	return nil
}

// RecordError implements record_error (spec §4.3): increments failure
// counters and schedules the next attempt using exponential backoff capped
// at one hour. Returns the backoff applied, in seconds.
func (s *Store) RecordError(ctx context.Context, sourceID string, status *int, elapsedMS *int64, errorKind string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.getSourceLocked(ctx, sourceID)
	if err != nil {
		return 0, err
	}

	failures := src.ConsecutiveFailures + 1
	backoff := backoffSeconds(src.PollIntervalSeconds, failures)
	now := clock.Get().Now().UTC()
	nextFetchAt := now.Add(time.Duration(backoff) * time.Second)

	statusCode := 0
	if status != nil {
		statusCode = *status
	}
	ms := int64(0)
	if elapsedMS != nil {
		ms = *elapsedMS
	}

	_, err = s.db.ExecContext(ctx, `UPDATE sources SET
		last_fetch_at = ?, last_error_at = ?, last_status_code = ?, last_fetch_ms = ?,
		consecutive_failures = ?, next_fetch_at = ?, last_error = ?,
		error_count = error_count + 1
		WHERE source_id = ?`,
		now.Format(time.RFC3339), now.Format(time.RFC3339), statusCode, ms,
		failures, nextFetchAt.Format(time.RFC3339), errorKind, sourceID)
	if err != nil {
		return 0, fmt.Errorf("store: record error: %w", err)
	}
	return backoff, nil
}

// OverrideNextFetchAt forces next_fetch_at forward, used when Retry-After
// exceeds the computed backoff (spec §4.6 step 6).
func (s *Store) OverrideNextFetchAt(ctx context.Context, sourceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET next_fetch_at = ? WHERE source_id = ?`,
		at.UTC().Format(time.RFC3339), sourceID)
	return err
}

// SetCursor persists a cursored source's opaque continuation marker.
func (s *Store) SetCursor(ctx context.Context, sourceID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET cursor = ? WHERE source_id = ?`, cursor, sourceID)
	return err
}

func backoffSeconds(pollInterval, failures int) int {
	backoff := pollInterval
	for i := 0; i < failures; i++ {
		backoff *= 2
	}
	if backoff > 3600 {
		backoff = 3600
	}
	return backoff
}

func (s *Store) getSourceLocked(ctx context.Context, sourceID string) (model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT source_id, name, source_type, url, poll_interval_seconds,
		enabled, etag, last_modified, next_fetch_at, last_fetch_at, last_success_at, last_error_at,
		consecutive_failures, last_status_code, last_fetch_ms, last_error, success_count, error_count, cursor
		FROM sources WHERE source_id = ?`, sourceID)
	return scanSource(row)
}
