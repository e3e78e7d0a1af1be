package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetOption returns a stored option value.
func (s *Store) GetOption(ctx context.Context, name string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT value FROM _options WHERE name = $1`), name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get option %s: %w", name, err)
	}
	return v, nil
}

// SetOption creates or replaces an option.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	_, err := s.DB.ExecContext(ctx, s.q(
		`INSERT INTO _options (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`), name, value)
	if err != nil {
		return fmt.Errorf("set option %s: %w", name, err)
	}
	return nil
}

// DeleteOption removes an option. Missing options are not an error.
func (s *Store) DeleteOption(ctx context.Context, name string) error {
	if _, err := s.DB.ExecContext(ctx, s.q(`DELETE FROM _options WHERE name = $1`), name); err != nil {
		return fmt.Errorf("delete option %s: %w", name, err)
	}
	return nil
}
