package store

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/sigwatch/internal/clock"
)

// RunRetention applies the hourly sweep from spec §4.6.3: ages active
// incidents to cooling, cooling to resolved, then deletes items and
// incidents past their retention windows.
func (s *Store) RunRetention(ctx context.Context, itemsRetentionDays, incidentsRetentionDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := clock.Get().Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cooling := now.Add(-24 * time.Hour).Format(time.RFC3339)
	if _, err := tx.Exec(`UPDATE incidents SET status = 'cooling' WHERE status = 'active' AND last_seen_at <= ?`, cooling); err != nil {
		return fmt.Errorf("store: retention cooling: %w", err)
	}

	resolved := now.Add(-72 * time.Hour).Format(time.RFC3339)
	if _, err := tx.Exec(`UPDATE incidents SET status = 'resolved' WHERE status != 'resolved' AND last_seen_at <= ?`, resolved); err != nil {
		return fmt.Errorf("store: retention resolved: %w", err)
	}

	itemsCutoff := now.AddDate(0, 0, -itemsRetentionDays).Format(time.RFC3339)
	if _, err := tx.Exec(`DELETE FROM items WHERE published_at < ? AND incident_id IN (
		SELECT incident_id FROM incidents WHERE status NOT IN ('active', 'cooling')
	)`, itemsCutoff); err != nil {
		return fmt.Errorf("store: retention delete items: %w", err)
	}

	incidentsCutoff := now.AddDate(0, 0, -incidentsRetentionDays).Format(time.RFC3339)
	if _, err := tx.Exec(`DELETE FROM incidents WHERE status = 'resolved' AND last_seen_at < ?`, incidentsCutoff); err != nil {
		return fmt.Errorf("store: retention delete incidents: %w", err)
	}

	return tx.Commit()
}
