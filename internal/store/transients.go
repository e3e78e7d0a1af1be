package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TransientBackend persists cache entries in the _transients table so they
// survive restarts and are shared by processes using the same database.
type TransientBackend struct {
	store *Store
	now   func() time.Time
}

func NewTransientBackend(s *Store) *TransientBackend {
	return &TransientBackend{store: s, now: time.Now}
}

func (b *TransientBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	var expiresAt int64
	err := b.store.DB.QueryRowContext(ctx, b.store.q(
		`SELECT value, expires_at FROM _transients WHERE cache_key = $1`), key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get transient %s: %w", key, err)
	}
	if expiresAt > 0 && b.now().Unix() >= expiresAt {
		if err := b.Delete(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return []byte(value), true, nil
}

func (b *TransientBackend) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	_, err := b.store.DB.ExecContext(ctx, b.store.q(
		`INSERT INTO _transients (cache_key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`),
		key, string(value), exp)
	if err != nil {
		return fmt.Errorf("set transient %s: %w", key, err)
	}
	return nil
}

func (b *TransientBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pb := b.store.Dialect.NewParamBuilder()
	query := "DELETE FROM _transients WHERE " + InList("cache_key", pb, keys)
	if _, err := b.store.DB.ExecContext(ctx, query, pb.Params()...); err != nil {
		return fmt.Errorf("delete %d transients: %w", len(keys), err)
	}
	return nil
}

// Purge deletes every stored transient, including entries recorded by
// other processes.
func (b *TransientBackend) Purge(ctx context.Context) (int, error) {
	n, err := Exec(ctx, b.store.DB, `DELETE FROM _transients`)
	if err != nil {
		return 0, fmt.Errorf("purge transients: %w", err)
	}
	return int(n), nil
}
