package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// SeedPlaces bulk-inserts gazetteer rows, ignoring rows that already exist —
// the corpus is loaded once at startup and never mutated afterward except by
// this kind of authoritative reseed (spec §3: "Place").
func (s *Store) SeedPlaces(ctx context.Context, places []model.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO places (kind, name, normalized_name, country, lat, lon)
		VALUES (?,?,?,?,?,?) ON CONFLICT(kind, normalized_name) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range places {
		if _, err := stmt.Exec(string(p.Kind), p.Name, p.NormalizedName, p.Country, p.Lat, p.Lon); err != nil {
			return fmt.Errorf("store: seed place %q: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

// FindPlace looks up a place by exact normalized name, preferring populated
// places over admin1 over country when multiple kinds share a name.
func (s *Store) FindPlace(ctx context.Context, normalizedName string) (model.Place, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT kind, name, normalized_name, country, lat, lon FROM places
		WHERE normalized_name = ?
		ORDER BY CASE kind WHEN 'populated' THEN 0 WHEN 'admin1' THEN 1 ELSE 2 END
		LIMIT 1`, normalizedName)

	var p model.Place
	var kind string
	if err := row.Scan(&kind, &p.Name, &p.NormalizedName, &p.Country, &p.Lat, &p.Lon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Place{}, false, nil
		}
		return model.Place{}, false, err
	}
	p.Kind = model.PlaceKind(kind)
	return p, true, nil
}

// SuggestPlaces returns up to limit places whose normalized name starts with
// prefix, for autocomplete use by the external API.
func (s *Store) SuggestPlaces(ctx context.Context, prefix string, limit int) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, name, normalized_name, country, lat, lon FROM places
		WHERE normalized_name LIKE ? ORDER BY normalized_name LIMIT ?`, prefix+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Place
	for rows.Next() {
		var p model.Place
		var kind string
		if err := rows.Scan(&kind, &p.Name, &p.NormalizedName, &p.Country, &p.Lat, &p.Lon); err != nil {
			return nil, err
		}
		p.Kind = model.PlaceKind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindCountry looks up a place of kind "country" by normalized name.
func (s *Store) FindCountry(ctx context.Context, normalizedName string) (model.Place, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT kind, name, normalized_name, country, lat, lon FROM places
		WHERE kind = 'country' AND normalized_name = ?`, normalizedName)
	var p model.Place
	var kind string
	if err := row.Scan(&kind, &p.Name, &p.NormalizedName, &p.Country, &p.Lat, &p.Lon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Place{}, false, nil
		}
		return model.Place{}, false, err
	}
	p.Kind = model.PlaceKind(kind)
	return p, true, nil
}
