// Package store is the single-writer embedded relational store: SQLite with
// WAL journaling, a full-text index over item title/summary/content, and
// migrations applied in numeric order at startup. All writes are serialized
// through one process-wide mutex; reads run concurrently, grounded on the
// same single-writer discipline the teacher's pipeline used for Kafka
// offsets, applied here to SQLite instead.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/model"
)

// Store wraps a SQLite connection pool and the write mutex.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path, applies pending migrations,
// and configures WAL mode, a 5s busy timeout, and foreign-key enforcement.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return err
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	sorted := append([]migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if applied[m.Version] {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, clock.Get().Now().UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// ErrDuplicateItem is returned by InsertItem when the item is a duplicate
// under the rules in spec §4.6 ("Deduplication on insert").
var ErrDuplicateItem = fmt.Errorf("store: duplicate item")

// InsertItem inserts a normalized item, applying the dedup rules: news items
// with a non-null external_id dedup on (source_id, external_id); everything
// else dedups on (source_id, hash_title) within a 24h published_at window.
// Unique-index violations are also caught and folded into ErrDuplicateItem.
func (s *Store) InsertItem(ctx context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dup, err := isDuplicate(tx, item)
	if err != nil {
		return err
	}
	if dup {
		return ErrDuplicateItem
	}

	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("store: marshal tags: %w", err)
	}

	var updatedAt any
	if !item.UpdatedAt.IsZero() {
		updatedAt = item.UpdatedAt.UTC().Format(time.RFC3339)
	}
	var externalID any
	if item.ExternalID != "" {
		externalID = item.ExternalID
	}

	_, err = tx.Exec(`INSERT INTO items
		(item_id, source_id, source_type, external_id, url, title, summary, content,
		 published_at, updated_at, fetched_at, category, tags,
		 geom_geojson, lat, lon, location_name, location_confidence, location_rationale,
		 raw, hash_title, hash_content, simhash, incident_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NULL)`,
		item.ItemID, item.SourceID, string(item.SourceType), externalID, item.URL,
		item.Title, item.Summary, item.Content,
		item.PublishedAt.UTC().Format(time.RFC3339), updatedAt, item.FetchedAt.UTC().Format(time.RFC3339),
		string(item.Category), string(tags),
		nullableString(item.GeomGeoJSON), item.Lat, item.Lon, item.LocationName,
		string(item.LocationConfidence), item.LocationRationale,
		nonEmptyOr(item.Raw, "{}"), item.HashTitle, item.HashContent, item.SimHash)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateItem
		}
		return fmt.Errorf("store: insert item: %w", err)
	}

	return tx.Commit()
}

func isDuplicate(tx *sql.Tx, item model.Item) (bool, error) {
	if item.Category == model.CategoryNews && item.ExternalID != "" {
		var n int
		err := tx.QueryRow(`SELECT COUNT(*) FROM items WHERE source_id = ? AND external_id = ?`,
			item.SourceID, item.ExternalID).Scan(&n)
		return n > 0, err
	}

	window := item.PublishedAt.Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM items WHERE source_id = ? AND hash_title = ? AND published_at >= ?`,
		item.SourceID, item.HashTitle, window).Scan(&n)
	return n > 0, err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonEmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
