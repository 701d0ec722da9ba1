package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// CandidateIncidents returns up to 200 same-category incidents whose
// last_seen_at is within the lookback window, ordered by last_seen_at desc —
// the clusterer narrows these further by SimHash bucket and Hamming distance
// (spec §4.7, "Candidate search").
func (s *Store) CandidateIncidents(ctx context.Context, category model.Category, since time.Time) ([]model.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT incident_id, title, summary, category, first_seen_at,
		last_seen_at, last_item_at, status, severity_score, geom_geojson, lat, lon,
		bbox_min_lon, bbox_min_lat, bbox_max_lon, bbox_max_lat,
		location_confidence, location_rationale, incident_simhash, token_signature, item_count, source_count
		FROM incidents WHERE category = ? AND last_seen_at >= ? ORDER BY last_seen_at DESC LIMIT 200`,
		string(category), since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: candidate incidents: %w", err)
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// AllIncidentsInCategory is used by the post-update merge pass (spec §4.7,
// "Post-update merge") to find geo/simhash-close siblings of the category.
func (s *Store) AllIncidentsInCategory(ctx context.Context, category model.Category, excludeID string, since time.Time) ([]model.Incident, error) {
	incs, err := s.CandidateIncidents(ctx, category, since)
	if err != nil {
		return nil, err
	}
	out := incs[:0]
	for _, inc := range incs {
		if inc.IncidentID != excludeID {
			out = append(out, inc)
		}
	}
	return out, nil
}

func scanIncident(rs rowScanner) (model.Incident, error) {
	var inc model.Incident
	var category, firstSeenAt, lastSeenAt, lastItemAt, status string
	var geom sql.NullString
	var lat, lon sql.NullFloat64
	var bMinLon, bMinLat, bMaxLon, bMaxLat sql.NullFloat64

	err := rs.Scan(&inc.IncidentID, &inc.Title, &inc.Summary, &category, &firstSeenAt,
		&lastSeenAt, &lastItemAt, &status, &inc.SeverityScore, &geom, &lat, &lon,
		&bMinLon, &bMinLat, &bMaxLon, &bMaxLat,
		&inc.LocationConfidence, &inc.LocationRationale, &inc.IncidentSimHash, &inc.TokenSignature,
		&inc.ItemCount, &inc.SourceCount)
	if err != nil {
		return model.Incident{}, err
	}

	inc.Category = model.Category(category)
	inc.Status = model.Status(status)
	inc.FirstSeenAt = parseTimeOrZero(firstSeenAt)
	inc.LastSeenAt = parseTimeOrZero(lastSeenAt)
	inc.LastItemAt = parseTimeOrZero(lastItemAt)
	if geom.Valid {
		inc.GeomGeoJSON = geom.String
	}
	if lat.Valid {
		v := lat.Float64
		inc.Lat = &v
	}
	if lon.Valid {
		v := lon.Float64
		inc.Lon = &v
	}
	if bMinLon.Valid && bMinLat.Valid && bMaxLon.Valid && bMaxLat.Valid {
		inc.BBox = &model.BBox{MinLon: bMinLon.Float64, MinLat: bMinLat.Float64, MaxLon: bMaxLon.Float64, MaxLat: bMaxLat.Float64}
	}
	return inc, nil
}

// InsertIncident creates a new incident row and links item_id to it, within
// its own transaction. Callers that need this atomic with other writes
// should use InsertIncidentTx.
func (s *Store) InsertIncident(ctx context.Context, inc model.Incident, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertIncidentTx(tx, inc); err != nil {
		return err
	}
	if err := linkItemTx(tx, itemID, inc.IncidentID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateIncidentAndLink persists an updated incident's aggregate fields and
// links a newly matched item to it, in one transaction (spec §4.7:
// "clustering must see its own writes"). item_count/source_count on inc are
// overwritten with a fresh recount from the junction table taken after the
// link, so the caller never has to reason about the count as of "now plus
// one more item".
func (s *Store) UpdateIncidentAndLink(ctx context.Context, inc model.Incident, itemID string) (model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Incident{}, err
	}
	defer tx.Rollback()

	if err := linkItemTx(tx, itemID, inc.IncidentID); err != nil {
		return model.Incident{}, err
	}
	itemCount, sourceCount, err := recountTx(tx, inc.IncidentID)
	if err != nil {
		return model.Incident{}, err
	}
	inc.ItemCount, inc.SourceCount = itemCount, sourceCount

	if err := updateIncidentTx(tx, inc); err != nil {
		return model.Incident{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Incident{}, err
	}
	return inc, nil
}

// MergeIncidents reparents all items from loserID onto survivor, recounts
// the survivor's aggregate from the junction table, and deletes the loser,
// in one transaction (spec §4.7: "Post-update merge").
func (s *Store) MergeIncidents(ctx context.Context, survivor model.Incident, loserID string) (model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Incident{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE items SET incident_id = ? WHERE incident_id = ?`, survivor.IncidentID, loserID); err != nil {
		return model.Incident{}, fmt.Errorf("store: reparent items: %w", err)
	}
	itemCount, sourceCount, err := recountTx(tx, survivor.IncidentID)
	if err != nil {
		return model.Incident{}, err
	}
	survivor.ItemCount, survivor.SourceCount = itemCount, sourceCount

	if err := updateIncidentTx(tx, survivor); err != nil {
		return model.Incident{}, err
	}
	if _, err := tx.Exec(`DELETE FROM incidents WHERE incident_id = ?`, loserID); err != nil {
		return model.Incident{}, fmt.Errorf("store: delete merged incident: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Incident{}, err
	}
	return survivor, nil
}

func recountTx(tx *sql.Tx, incidentID string) (itemCount, sourceCount int, err error) {
	err = tx.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT source_id) FROM items WHERE incident_id = ?`,
		incidentID).Scan(&itemCount, &sourceCount)
	return itemCount, sourceCount, err
}

func insertIncidentTx(tx *sql.Tx, inc model.Incident) error {
	bbox := bboxColumns(inc.BBox)
	_, err := tx.Exec(`INSERT INTO incidents
		(incident_id, title, summary, category, first_seen_at, last_seen_at, last_item_at, status,
		 severity_score, geom_geojson, lat, lon, bbox_min_lon, bbox_min_lat, bbox_max_lon, bbox_max_lat,
		 location_confidence, location_rationale, incident_simhash, token_signature, item_count, source_count)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inc.IncidentID, inc.Title, inc.Summary, string(inc.Category),
		inc.FirstSeenAt.UTC().Format(time.RFC3339), inc.LastSeenAt.UTC().Format(time.RFC3339), inc.LastItemAt.UTC().Format(time.RFC3339),
		string(inc.Status), inc.SeverityScore, nullableString(inc.GeomGeoJSON), inc.Lat, inc.Lon,
		bbox[0], bbox[1], bbox[2], bbox[3],
		string(inc.LocationConfidence), inc.LocationRationale, inc.IncidentSimHash, inc.TokenSignature,
		inc.ItemCount, inc.SourceCount)
	if err != nil {
		return fmt.Errorf("store: insert incident: %w", err)
	}
	return nil
}

func updateIncidentTx(tx *sql.Tx, inc model.Incident) error {
	bbox := bboxColumns(inc.BBox)
	_, err := tx.Exec(`UPDATE incidents SET
		title = ?, summary = ?, last_seen_at = ?, last_item_at = ?, status = ?,
		severity_score = ?, geom_geojson = ?, lat = ?, lon = ?,
		bbox_min_lon = ?, bbox_min_lat = ?, bbox_max_lon = ?, bbox_max_lat = ?,
		location_confidence = ?, location_rationale = ?, incident_simhash = ?, token_signature = ?,
		item_count = ?, source_count = ?
		WHERE incident_id = ?`,
		inc.Title, inc.Summary, inc.LastSeenAt.UTC().Format(time.RFC3339), inc.LastItemAt.UTC().Format(time.RFC3339), string(inc.Status),
		inc.SeverityScore, nullableString(inc.GeomGeoJSON), inc.Lat, inc.Lon,
		bbox[0], bbox[1], bbox[2], bbox[3],
		string(inc.LocationConfidence), inc.LocationRationale, inc.IncidentSimHash, inc.TokenSignature,
		inc.ItemCount, inc.SourceCount, inc.IncidentID)
	if err != nil {
		return fmt.Errorf("store: update incident: %w", err)
	}
	return nil
}

func linkItemTx(tx *sql.Tx, itemID, incidentID string) error {
	_, err := tx.Exec(`UPDATE items SET incident_id = ? WHERE item_id = ?`, incidentID, itemID)
	if err != nil {
		return fmt.Errorf("store: link item: %w", err)
	}
	return nil
}

func bboxColumns(b *model.BBox) [4]any {
	if b == nil {
		return [4]any{nil, nil, nil, nil}
	}
	return [4]any{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// CountDistinctSources returns the number of distinct source_ids among items
// linked to the given incident (spec §4.7: "Recount item_count and
// source_count from the junction").
func (s *Store) CountDistinctSources(ctx context.Context, incidentID string) (itemCount, sourceCount int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT source_id) FROM items WHERE incident_id = ?`,
		incidentID).Scan(&itemCount, &sourceCount)
	return itemCount, sourceCount, err
}

// ItemCoordinates returns (lat, lon) pairs for every item linked to an
// incident that carries a coordinate, used to validate bbox containment.
func (s *Store) ItemCoordinates(ctx context.Context, incidentID string) ([][2]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lat, lon FROM items WHERE incident_id = ? AND lat IS NOT NULL AND lon IS NOT NULL`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][2]float64
	for rows.Next() {
		var lat, lon float64
		if err := rows.Scan(&lat, &lon); err != nil {
			return nil, err
		}
		out = append(out, [2]float64{lat, lon})
	}
	return out, rows.Err()
}
