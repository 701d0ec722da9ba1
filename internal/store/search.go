package store

import (
	"context"
	"database/sql"
	"fmt"
)

// IncidentSummary is the read-model shape returned to the external API.
type IncidentSummary struct {
	IncidentID    string
	Title         string
	Summary       string
	Category      string
	Status        string
	SeverityScore float64
	Lat, Lon      *float64
	LastSeenAt    string
	ItemCount     int
	SourceCount   int
}

// SearchItems runs an FTS5 MATCH query over title/summary/content and
// returns the matching incidents, most recently active first.
func (s *Store) SearchItems(ctx context.Context, query string, limit int) ([]IncidentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT i.incident_id, i.title, i.summary, i.category, i.status,
			i.severity_score, i.lat, i.lon, i.last_seen_at, i.item_count, i.source_count
		FROM items_fts
		JOIN items ON items.rowid = items_fts.rowid
		JOIN incidents i ON i.incident_id = items.incident_id
		WHERE items_fts MATCH ?
		ORDER BY i.last_seen_at DESC
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search items: %w", err)
	}
	defer rows.Close()
	return scanIncidentSummaries(rows)
}

// ListIncidents returns recent incidents optionally filtered by category and
// status, for the external read API.
func (s *Store) ListIncidents(ctx context.Context, category, status string, limit int) ([]IncidentSummary, error) {
	query := `SELECT incident_id, title, summary, category, status, severity_score, lat, lon,
		last_seen_at, item_count, source_count FROM incidents WHERE 1=1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY last_seen_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list incidents: %w", err)
	}
	defer rows.Close()
	return scanIncidentSummaries(rows)
}

func scanIncidentSummaries(rows *sql.Rows) ([]IncidentSummary, error) {
	var out []IncidentSummary
	for rows.Next() {
		var sum IncidentSummary
		if err := rows.Scan(&sum.IncidentID, &sum.Title, &sum.Summary, &sum.Category, &sum.Status,
			&sum.SeverityScore, &sum.Lat, &sum.Lon, &sum.LastSeenAt, &sum.ItemCount, &sum.SourceCount); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
