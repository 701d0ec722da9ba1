package store

import (
	"context"
	"database/sql"
	"errors"
)

// PollingEnabled reads the polling_enabled runtime flag, defaulting to true
// when unset (spec §4.6 step 1).
func (s *Store) PollingEnabled(ctx context.Context) (bool, error) {
	v, ok, err := s.ConfigGet(ctx, "polling_enabled")
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return v == "true", nil
}

// ConfigGet reads one AppConfig key.
func (s *Store) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// ConfigSet writes one AppConfig key, such as the runtime-mutable
// polling_enabled flag.
func (s *Store) ConfigSet(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO app_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
